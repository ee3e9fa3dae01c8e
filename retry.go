package asyncexec

import (
	"context"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/azargarov/asyncexec/workerpool"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Phase is the state of one retry invocation.
type Phase int

const (
	PhaseAttempting Phase = iota
	PhaseSucceeded
	PhaseRetrying
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseAttempting:
		return "attempting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseRetrying:
		return "retrying"
	case PhaseExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// RetryState describes one ExecuteRetryable invocation. ID is minted per
// call and is the same for every attempt of that call.
type RetryState struct {
	ID          uuid.UUID
	Attempt     int
	MaxAttempts int
	Phase       Phase
	LastErr     error
	StartedAt   time.Time
}

type retryStateKey struct{}

// RetryStateFromContext returns the state of the attempt ctx belongs to.
func RetryStateFromContext(ctx context.Context) (RetryState, bool) {
	st, ok := ctx.Value(retryStateKey{}).(RetryState)
	return st, ok
}

// AttemptListener observes failed attempts. It is called before the retry or
// exhaustion decision and cannot influence it.
type AttemptListener func(ctx context.Context, st RetryState, err error)

// RetryExecutor runs computations with a bounded number of attempts.
// It is safe for concurrent use.
type RetryExecutor struct {
	policy    RetryPolicy
	listeners []AttemptListener
	tracer    trace.Tracer
	metrics   MetricsPolicy
	wait      func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor returns an executor with two attempts and a fixed one
// second backoff unless configured otherwise.
func NewRetryExecutor(opts ...RetryOption) *RetryExecutor {
	r := &RetryExecutor{
		policy:  DefaultRetryPolicy(),
		tracer:  defaultTracer(),
		metrics: NoopMetrics{},
		wait:    sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective retry policy.
func (r *RetryExecutor) Policy() RetryPolicy { return r.policy }

// ExecuteRetryable runs c until it succeeds or the attempt budget is used up.
func ExecuteRetryable[T any](ctx context.Context, r *RetryExecutor, c Computation[T]) (T, error) {
	return ExecuteRetryableWithRecovery(ctx, r, c, nil)
}

// ExecuteRetryableWithRecovery runs c until it succeeds or the attempt budget
// is used up. On exhaustion recovery, if not nil, is run once and its result
// returned instead of the failure.
func ExecuteRetryableWithRecovery[T any](ctx context.Context, r *RetryExecutor, c Computation[T], recovery Computation[T]) (T, error) {
	var zero T
	if c == nil {
		r.metrics.IncFailures(opRetry)
		return zero, wrap(opRetry, ErrNilComputation)
	}

	st := RetryState{
		ID:          uuid.New(),
		Attempt:     1,
		MaxAttempts: r.policy.Attempts,
		Phase:       PhaseAttempting,
		StartedAt:   time.Now(),
	}
	ctx, span := r.tracer.Start(ctx, "asyncexec."+opRetry, trace.WithAttributes(
		attribute.String("asyncexec.retry_id", st.ID.String()),
		attribute.Int("asyncexec.max_attempts", st.MaxAttempts),
	))
	defer span.End()
	logger := lg.FromContext(ctx).With(lg.String("retry_id", st.ID.String()))

	fail := func(err error) (T, error) {
		r.metrics.IncFailures(opRetry)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, wrap(opRetry, err)
	}

	bo := r.policy.newBackoff()
	for {
		r.metrics.IncAttempts()
		v, err := attempt(context.WithValue(ctx, retryStateKey{}, st), c)
		if err == nil {
			st.Phase = PhaseSucceeded
			span.SetAttributes(attribute.Int("asyncexec.attempts", st.Attempt))
			return v, nil
		}

		st.LastErr = err
		if st.Attempt < st.MaxAttempts {
			st.Phase = PhaseRetrying
		} else {
			st.Phase = PhaseExhausted
		}
		r.notify(ctx, st, err)
		span.AddEvent("attempt failed", trace.WithAttributes(
			attribute.Int("asyncexec.attempt", st.Attempt),
			attribute.String("asyncexec.error", err.Error()),
		))

		if st.Phase == PhaseExhausted {
			break
		}

		d := bo.Next()
		logger.Warn("attempt failed, retrying",
			lg.Int("attempt", st.Attempt),
			lg.Int("max_attempts", st.MaxAttempts),
			lg.String("backoff", d.String()),
			lg.Any("error", err),
		)
		r.metrics.IncRetries()
		if werr := r.wait(ctx, d); werr != nil {
			logger.Warn("retry interrupted", lg.Int("attempt", st.Attempt), lg.Any("error", werr))
			return fail(werr)
		}
		st.Attempt++
		st.Phase = PhaseAttempting
	}

	r.metrics.IncExhausted()
	span.SetAttributes(attribute.Int("asyncexec.attempts", st.Attempt))
	if recovery == nil {
		logger.Error("retries exhausted", lg.Int("attempts", st.Attempt), lg.Any("error", st.LastErr))
		return fail(st.LastErr)
	}

	logger.Warn("retries exhausted, running recovery", lg.Int("attempts", st.Attempt), lg.Any("error", st.LastErr))
	r.metrics.IncRecoveries()
	span.AddEvent("recovery")
	v, err := attempt(context.WithValue(ctx, retryStateKey{}, st), recovery)
	if err != nil {
		logger.Error("recovery failed", lg.Any("error", err))
		return fail(err)
	}
	return v, nil
}

// Retrying turns a retried call into a Computation, so it can be handed to
// an Orchestrator.
func Retrying[T any](r *RetryExecutor, c Computation[T], recovery Computation[T]) Computation[T] {
	return func(ctx context.Context) (T, error) {
		return ExecuteRetryableWithRecovery(ctx, r, c, recovery)
	}
}

// attempt runs c and turns a panic into an error.
func attempt[T any](ctx context.Context, c Computation[T]) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			v, err = zero, &workerpool.PanicError{Job: opRetry, Value: rec}
		}
	}()
	return c(ctx)
}

func (r *RetryExecutor) notify(ctx context.Context, st RetryState, err error) {
	for _, l := range r.listeners {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					lg.FromContext(ctx).Error("attempt listener panicked",
						lg.String("retry_id", st.ID.String()),
						lg.Any("panic", rec),
					)
				}
			}()
			l(ctx, st, err)
		}()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
