package asyncexec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/azargarov/asyncexec/workerpool"
)

func TestExecuteReturnsResultUnmodified(t *testing.T) {
	o := newTestOrchestrator(t)

	got, err := Execute(context.Background(), o, value("Hello World"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", got)

	n, err := Execute(context.Background(), o, value(42))
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestExecuteFailureIsExecutionError(t *testing.T) {
	o := newTestOrchestrator(t)
	boom := errors.New("boom")

	_, err := Execute(context.Background(), o, failing[string](boom))
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
	assert.ErrorIs(t, err, boom)

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, opExecute, ee.Op)
}

func TestExecute2PositionalOrder(t *testing.T) {
	o := newTestOrchestrator(t)

	// first finishes last
	got, err := Execute2(context.Background(), o,
		delayed(30*time.Millisecond, "Hello"),
		value("World"),
		concat2,
	)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", got)
}

func TestExecute2MixedTypes(t *testing.T) {
	o := newTestOrchestrator(t)

	got, err := Execute2(context.Background(), o,
		value("answer"),
		value(42),
		func(s string, n int) (string, error) { return fmt.Sprintf("%s=%d", s, n), nil },
	)
	require.NoError(t, err)
	assert.Equal(t, "answer=42", got)
}

func TestExecute3PositionalOrder(t *testing.T) {
	o := newTestOrchestrator(t)
	var merges atomic.Int32

	got, err := Execute3(context.Background(), o,
		delayed(40*time.Millisecond, "Hello"),
		delayed(20*time.Millisecond, "Beautiful"),
		value("World"),
		func(a, b, c string) (string, error) {
			merges.Add(1)
			return concat3(a, b, c)
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "Hello Beautiful World", got)
	assert.EqualValues(t, 1, merges.Load())
}

func TestMergeNotCalledOnFailure(t *testing.T) {
	o := newTestOrchestrator(t)
	boom := errors.New("boom")
	var merges atomic.Int32
	merge := func(a, b, c string) (string, error) {
		merges.Add(1)
		return "", nil
	}

	for i := range 3 {
		cs := []Computation[string]{value("a"), value("b"), value("c")}
		cs[i] = failing[string](boom)

		_, err := Execute3(context.Background(), o, cs[0], cs[1], cs[2], merge)
		require.Error(t, err, "failing position %d", i)
		assert.True(t, IsExecutionError(err))
		assert.ErrorIs(t, err, boom)
	}
	assert.Zero(t, merges.Load())
}

func TestLowestPositionFailureWins(t *testing.T) {
	o := newTestOrchestrator(t)
	first := errors.New("first")
	second := errors.New("second")

	// the second computation fails long before the first one
	_, err := Execute2(context.Background(), o,
		func(context.Context) (string, error) {
			time.Sleep(30 * time.Millisecond)
			return "", first
		},
		failing[string](second),
		concat2,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.NotErrorIs(t, err, second)
}

func TestFanInWaitsForSiblings(t *testing.T) {
	o := newTestOrchestrator(t)
	var finished atomic.Bool

	_, err := Execute2(context.Background(), o,
		failing[string](errors.New("fast failure")),
		func(context.Context) (string, error) {
			time.Sleep(30 * time.Millisecond)
			finished.Store(true)
			return "slow", nil
		},
		concat2,
	)
	require.Error(t, err)
	assert.True(t, finished.Load(), "sibling still running when Execute2 returned")
}

func TestMergeFailure(t *testing.T) {
	o := newTestOrchestrator(t)
	bad := errors.New("bad merge")

	_, err := Execute2(context.Background(), o, value("a"), value("b"),
		func(string, string) (string, error) { return "", bad })
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
	assert.ErrorIs(t, err, bad)
}

func TestMergePanic(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := Execute2(context.Background(), o, value("a"), value("b"),
		func(string, string) (string, error) { panic("merge exploded") })
	require.Error(t, err)

	var pe *workerpool.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "merge exploded", pe.Value)
}

func TestComputationPanic(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := Execute(context.Background(), o, func(context.Context) (int, error) {
		panic("computation exploded")
	})
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))

	var pe *workerpool.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "computation exploded", pe.Value)
}

func TestNilArguments(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := Execute[string](ctx, o, nil)
	assert.ErrorIs(t, err, ErrNilComputation)

	_, err = Execute2[string, string, string](ctx, o, value("a"), nil, concat2)
	assert.ErrorIs(t, err, ErrNilComputation)

	_, err = Execute2[string, string, string](ctx, o, value("a"), value("b"), nil)
	assert.ErrorIs(t, err, ErrNilMerge)

	_, err = Execute3[string, string, string, string](ctx, o, value("a"), value("b"), value("c"), nil)
	assert.ErrorIs(t, err, ErrNilMerge)

	_, err = ExecuteN(ctx, o, []Computation[int]{value(1), nil}, sum)
	assert.ErrorIs(t, err, ErrNilComputation)

	err = o.Run(ctx, func(context.Context) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrNilComputation)
	assert.True(t, IsExecutionError(err))
}

func TestSubmissionRejected(t *testing.T) {
	var calls atomic.Int32
	var ran atomic.Int32
	ex := ExecutorFunc(func(job workerpool.Job) error {
		if calls.Add(1) > 1 {
			return workerpool.ErrQueueFull
		}
		go job.Fn(context.Background())
		return nil
	})
	o := New(ex)

	c := func(v string) Computation[string] {
		return func(context.Context) (string, error) {
			ran.Add(1)
			return v, nil
		}
	}
	_, err := Execute3(context.Background(), o, c("a"), c("b"), c("c"), concat3)
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
	assert.ErrorIs(t, err, workerpool.ErrQueueFull)
	assert.EqualValues(t, 2, calls.Load(), "submission continued after a rejection")
	assert.EqualValues(t, 1, ran.Load())
}

func TestSaturatedPoolRejects(t *testing.T) {
	p := newTestPool(t, workerpool.Options{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1})
	o := New(p)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.TrySubmit(workerpool.Job{Name: "blocker", Fn: func(context.Context) {
		close(started)
		<-release
	}}))
	<-started
	require.NoError(t, p.TrySubmit(workerpool.Job{Name: "filler", Fn: func(context.Context) {}}))

	_, err := Execute2(context.Background(), o, value("a"), value("b"), concat2)
	close(release)

	require.Error(t, err)
	assert.ErrorIs(t, err, workerpool.ErrQueueFull)
}

func TestCanceledContextSubmitsNothing(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	_, err := Execute(ctx, o, counted(&ran, value("x")))
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ran.Load())
}

func TestInterruptedWhileAwaiting(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	go func() {
		<-started
		cancel()
	}()

	_, err := Execute(ctx, o, func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNestedExecutionErrorNotWrappedTwice(t *testing.T) {
	o := newTestOrchestrator(t)
	r, _ := newTestRetryExecutor(t)
	boom := errors.New("always")

	_, err := Execute3(context.Background(), o,
		value("Hello"),
		Retrying(r, failing[string](boom), nil),
		value("World"),
		concat3,
	)
	require.Error(t, err)

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, opRetry, ee.Op)
	assert.ErrorIs(t, ee.Cause, boom)
	assert.False(t, IsExecutionError(ee.Cause))
}

func sum(xs []int) (int, error) {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total, nil
}

func TestExecuteNOrder(t *testing.T) {
	o := newTestOrchestrator(t)

	cs := make([]Computation[string], 5)
	for i := range cs {
		cs[i] = delayed(time.Duration(5-i)*5*time.Millisecond, fmt.Sprint(i))
	}
	got, err := ExecuteN(context.Background(), o, cs, func(xs []string) (string, error) {
		return strings.Join(xs, ","), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "0,1,2,3,4", got)
}

func TestExecuteNEmpty(t *testing.T) {
	o := newTestOrchestrator(t)

	got, err := ExecuteN(context.Background(), o, nil, sum)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestRunInvokesEveryAction(t *testing.T) {
	o := newTestOrchestrator(t)
	const n = 10
	var invoked atomic.Int32

	actions := make([]Action, n)
	for i := range actions {
		actions[i] = func(context.Context) error {
			invoked.Add(1)
			return nil
		}
	}
	require.NoError(t, o.Run(context.Background(), actions...))
	assert.EqualValues(t, n, invoked.Load())
}

func TestRunFailure(t *testing.T) {
	o := newTestOrchestrator(t)
	boom := errors.New("action failed")
	var invoked atomic.Int32

	ok := func(context.Context) error {
		invoked.Add(1)
		return nil
	}
	err := o.Run(context.Background(), ok, func(context.Context) error {
		invoked.Add(1)
		return boom
	}, ok)
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 3, invoked.Load())
}

func TestRunNoActions(t *testing.T) {
	o := newTestOrchestrator(t)
	assert.NoError(t, o.Run(context.Background()))
}

func TestConcurrentOrchestrations(t *testing.T) {
	p := newTestPool(t, workerpool.Options{MinWorkers: 4, MaxWorkers: 15, QueueSize: 64})
	o := New(p)

	const n = 20
	errs := make(chan error, n)
	for i := range n {
		go func() {
			got, err := Execute2(context.Background(), o, value(i), value(1),
				func(a, b int) (int, error) { return a + b, nil })
			if err == nil && got != i+1 {
				err = fmt.Errorf("got %d; want %d", got, i+1)
			}
			errs <- err
		}()
	}
	for range n {
		err := <-errs
		if err != nil && !errors.Is(err, workerpool.ErrQueueFull) {
			t.Fatal(err)
		}
	}
}

func TestOrchestratorMetrics(t *testing.T) {
	m := &AtomicMetrics{}
	o := newTestOrchestrator(t, WithMetrics(m))

	_, err := Execute(context.Background(), o, value(1))
	require.NoError(t, err)
	_, err = Execute(context.Background(), o, failing[int](errors.New("x")))
	require.Error(t, err)

	assert.EqualValues(t, 2, m.Orchestrations())
	assert.EqualValues(t, 1, m.Failures())
}

func TestOrchestratorSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	o := newTestOrchestrator(t, WithTracerProvider(tp))

	_, err := Execute2(context.Background(), o, value("a"), value("b"), concat2)
	require.NoError(t, err)
	_, err = Execute2(context.Background(), o, value("a"), failing[string](errors.New("x")), concat2)
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "asyncexec."+opExecute2, s.Name())
	}
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
