package asyncexec

import (
	"context"
	"fmt"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/azargarov/asyncexec/workerpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Merge2 combines the results of two computations.
type Merge2[T, U, R any] func(T, U) (R, error)

// Merge3 combines the results of three computations.
type Merge3[T, U, V, R any] func(T, U, V) (R, error)

// MergeN combines the results of N computations, in submission order.
type MergeN[T, R any] func([]T) (R, error)

// Orchestrator fans computations out onto an Executor and fans their
// results back in. It holds no per-call state and is safe for concurrent use.
type Orchestrator struct {
	executor Executor
	tracer   trace.Tracer
	metrics  MetricsPolicy
}

// New creates an Orchestrator submitting to ex.
func New(ex Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		executor: ex,
		tracer:   defaultTracer(),
		metrics:  NoopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs c on the executor and returns its result unmodified.
func Execute[T any](ctx context.Context, o *Orchestrator, c Computation[T]) (T, error) {
	var zero T
	if c == nil {
		return zero, o.reject(ctx, opExecute, ErrNilComputation)
	}
	g, ctx := o.begin(ctx, opExecute, 1)
	h := spawn(g, c)
	if err := g.wait(); err != nil {
		return zero, g.end(ctx, err)
	}
	return h.value, g.end(ctx, nil)
}

// Execute2 runs c1 and c2 concurrently and merges their results.
func Execute2[T, U, R any](ctx context.Context, o *Orchestrator, c1 Computation[T], c2 Computation[U], merge Merge2[T, U, R]) (R, error) {
	var zero R
	if c1 == nil || c2 == nil {
		return zero, o.reject(ctx, opExecute2, ErrNilComputation)
	}
	if merge == nil {
		return zero, o.reject(ctx, opExecute2, ErrNilMerge)
	}
	g, ctx := o.begin(ctx, opExecute2, 2)
	h1 := spawn(g, c1)
	h2 := spawn(g, c2)
	if err := g.wait(); err != nil {
		return zero, g.end(ctx, err)
	}
	r, err := applyMerge(opExecute2, func() (R, error) { return merge(h1.value, h2.value) })
	return r, g.end(ctx, err)
}

// Execute3 runs c1, c2 and c3 concurrently and merges their results.
func Execute3[T, U, V, R any](ctx context.Context, o *Orchestrator, c1 Computation[T], c2 Computation[U], c3 Computation[V], merge Merge3[T, U, V, R]) (R, error) {
	var zero R
	if c1 == nil || c2 == nil || c3 == nil {
		return zero, o.reject(ctx, opExecute3, ErrNilComputation)
	}
	if merge == nil {
		return zero, o.reject(ctx, opExecute3, ErrNilMerge)
	}
	g, ctx := o.begin(ctx, opExecute3, 3)
	h1 := spawn(g, c1)
	h2 := spawn(g, c2)
	h3 := spawn(g, c3)
	if err := g.wait(); err != nil {
		return zero, g.end(ctx, err)
	}
	r, err := applyMerge(opExecute3, func() (R, error) { return merge(h1.value, h2.value, h3.value) })
	return r, g.end(ctx, err)
}

// ExecuteN runs every computation of cs concurrently and merges their
// results. merge receives them in the order of cs.
func ExecuteN[T, R any](ctx context.Context, o *Orchestrator, cs []Computation[T], merge MergeN[T, R]) (R, error) {
	var zero R
	for _, c := range cs {
		if c == nil {
			return zero, o.reject(ctx, opExecuteN, ErrNilComputation)
		}
	}
	if merge == nil {
		return zero, o.reject(ctx, opExecuteN, ErrNilMerge)
	}
	g, ctx := o.begin(ctx, opExecuteN, len(cs))
	handles := make([]*TaskHandle[T], len(cs))
	for i, c := range cs {
		handles[i] = spawn(g, c)
	}
	if err := g.wait(); err != nil {
		return zero, g.end(ctx, err)
	}
	results := make([]T, len(handles))
	for i, h := range handles {
		results[i] = h.value
	}
	r, err := applyMerge(opExecuteN, func() (R, error) { return merge(results) })
	return r, g.end(ctx, err)
}

// Run submits every action and waits for all of them. It fails if any
// action fails.
func (o *Orchestrator) Run(ctx context.Context, actions ...Action) error {
	for _, a := range actions {
		if a == nil {
			return o.reject(ctx, opRun, ErrNilComputation)
		}
	}
	g, ctx := o.begin(ctx, opRun, len(actions))
	for _, a := range actions {
		spawn(g, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a(ctx)
		})
	}
	return g.end(ctx, g.wait())
}

// reject reports a call refused before anything was submitted.
func (o *Orchestrator) reject(ctx context.Context, op string, err error) error {
	o.metrics.IncOrchestrations(op)
	o.metrics.IncFailures(op)
	lg.FromContext(ctx).Error("orchestration rejected", lg.String("op", op), lg.Any("error", err))
	return wrap(op, err)
}

func (o *Orchestrator) begin(ctx context.Context, op string, n int) (*fanIn, context.Context) {
	o.metrics.IncOrchestrations(op)
	ctx, span := o.tracer.Start(ctx, "asyncexec."+op,
		trace.WithAttributes(attribute.Int("asyncexec.computations", n)))
	g := &fanIn{o: o, op: op, ctx: ctx, span: span}
	if err := ctx.Err(); err != nil {
		g.submitErr = err
	}
	return g, ctx
}

// awaitable is the type-erased view of a TaskHandle used during fan-in.
type awaitable interface {
	Done() <-chan struct{}
	failure() error
}

// fanIn tracks the handles of one orchestration call.
type fanIn struct {
	o    *Orchestrator
	op   string
	ctx  context.Context
	span trace.Span

	n         int         // computations seen, submitted or not
	waits     []awaitable // submitted handles, in position order
	submitErr error       // first rejection; later computations are not submitted
}

// spawn submits c unless an earlier submission failed. The returned handle is
// only read after a successful wait.
func spawn[T any](g *fanIn, c Computation[T]) *TaskHandle[T] {
	idx := g.n
	g.n++
	if g.submitErr != nil {
		return newHandle[T]()
	}
	h, err := submit(g.ctx, g.o.executor, fmt.Sprintf("%s[%d]", g.op, idx), c)
	if err != nil {
		g.submitErr = fmt.Errorf("submit computation %d: %w", idx, err)
		return newHandle[T]()
	}
	g.waits = append(g.waits, h)
	return h
}

// wait blocks until every submitted handle completed and returns the
// lowest-position failure, then a submission failure, then an interruption.
func (g *fanIn) wait() error {
	interrupted := false
	for _, w := range g.waits {
		select {
		case <-w.Done():
			continue
		default:
		}
		select {
		case <-w.Done():
		case <-g.ctx.Done():
			interrupted = true
			<-w.Done()
		}
	}
	for _, w := range g.waits {
		if err := w.failure(); err != nil {
			return err
		}
	}
	if g.submitErr != nil {
		return g.submitErr
	}
	if interrupted {
		return g.ctx.Err()
	}
	return nil
}

func (g *fanIn) end(ctx context.Context, err error) error {
	defer g.span.End()
	if err == nil {
		return nil
	}
	g.o.metrics.IncFailures(g.op)
	g.span.RecordError(err)
	g.span.SetStatus(codes.Error, err.Error())
	lg.FromContext(ctx).Error("orchestration failed",
		lg.String("op", g.op),
		lg.Int("computations", g.n),
		lg.Any("error", err),
	)
	return wrap(g.op, err)
}

func applyMerge[R any](op string, merge func() (R, error)) (r R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero R
			r, err = zero, &workerpool.PanicError{Job: op + ".merge", Value: rec}
		}
	}()
	return merge()
}
