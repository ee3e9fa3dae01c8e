package asyncexec

import (
	"context"
	"fmt"
	"sync"

	"github.com/azargarov/asyncexec/workerpool"
)

// Computation is a unit of work producing a T.
type Computation[T any] func(ctx context.Context) (T, error)

// Action is a unit of work without a result.
type Action func(ctx context.Context) error

// Executor accepts jobs without blocking. *workerpool.Pool implements it.
type Executor interface {
	TrySubmit(job workerpool.Job) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(job workerpool.Job) error

func (f ExecutorFunc) TrySubmit(job workerpool.Job) error { return f(job) }

// TaskHandle is the pending result of a submitted computation.
// It is completed exactly once.
type TaskHandle[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newHandle[T any]() *TaskHandle[T] {
	return &TaskHandle[T]{done: make(chan struct{})}
}

// Submit hands c to the executor and returns its handle. A rejection by the
// executor is returned as is.
func Submit[T any](ctx context.Context, ex Executor, c Computation[T]) (*TaskHandle[T], error) {
	return submit(ctx, ex, "task", c)
}

func submit[T any](ctx context.Context, ex Executor, name string, c Computation[T]) (*TaskHandle[T], error) {
	if c == nil {
		return nil, ErrNilComputation
	}
	h := newHandle[T]()
	job := workerpool.Job{
		Name: name,
		Fn: func(jobCtx context.Context) {
			h.run(jobCtx, name, c)
		},
		Meta: &workerpool.JobMeta{
			Ctx: ctx,
			// no-op when the job ran
			CleanupFunc: func() {
				err := ErrNotExecuted
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = fmt.Errorf("%w: %w", ErrNotExecuted, ctxErr)
				}
				var zero T
				h.complete(zero, err)
			},
		},
	}
	if err := ex.TrySubmit(job); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *TaskHandle[T]) run(ctx context.Context, name string, c Computation[T]) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			h.complete(zero, &workerpool.PanicError{Job: name, Value: r})
		}
	}()
	v, err := c(ctx)
	h.complete(v, err)
}

func (h *TaskHandle[T]) complete(v T, err error) {
	h.once.Do(func() {
		h.value, h.err = v, err
		close(h.done)
	})
}

// Done is closed once the computation finished.
func (h *TaskHandle[T]) Done() <-chan struct{} { return h.done }

// Await blocks until the computation finished or ctx ends.
func (h *TaskHandle[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the computation finished.
func (h *TaskHandle[T]) Result() (T, error) {
	<-h.done
	return h.value, h.err
}

// failure must only be called after Done is closed.
func (h *TaskHandle[T]) failure() error { return h.err }
