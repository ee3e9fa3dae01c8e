package asyncexec

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/azargarov/asyncexec/workerpool"
)

func newTestPool(t *testing.T, opts workerpool.Options) *workerpool.Pool {
	t.Helper()
	p := workerpool.New(opts)
	t.Cleanup(p.Stop)
	return p
}

func newTestOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	return New(newTestPool(t, workerpool.DefaultOptions()), opts...)
}

// waitRecorder replaces the backoff sleep and records requested delays.
type waitRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.delays = append(w.delays, d)
	w.mu.Unlock()
	return ctx.Err()
}

func (w *waitRecorder) calls() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.delays...)
}

// newTestRetryExecutor keeps the default policy but never sleeps.
func newTestRetryExecutor(t *testing.T, opts ...RetryOption) (*RetryExecutor, *waitRecorder) {
	t.Helper()
	r := NewRetryExecutor(opts...)
	w := &waitRecorder{}
	r.wait = w.wait
	return r, w
}

func value[T any](v T) Computation[T] {
	return func(context.Context) (T, error) { return v, nil }
}

func delayed[T any](d time.Duration, v T) Computation[T] {
	return func(context.Context) (T, error) {
		time.Sleep(d)
		return v, nil
	}
}

func failing[T any](err error) Computation[T] {
	return func(context.Context) (T, error) {
		var zero T
		return zero, err
	}
}

// counted wraps c and counts its invocations.
func counted[T any](n *atomic.Int32, c Computation[T]) Computation[T] {
	return func(ctx context.Context) (T, error) {
		n.Add(1)
		return c(ctx)
	}
}

func concat2(a, b string) (string, error) { return a + " " + b, nil }

func concat3(a, b, c string) (string, error) { return a + " " + b + " " + c, nil }
