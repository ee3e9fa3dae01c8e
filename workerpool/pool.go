package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
)

const (
	submitRetryInitial = time.Millisecond
	submitRetryMax     = 50 * time.Millisecond
)

// JobFunc is the function executed by a worker. It receives the job context.
type JobFunc func(ctx context.Context)

// JobMeta holds optional job data.
//
// Ctx controls cancellation before execution.
// CleanupFunc, if set, is executed after the job finished, panicked or was skipped.
type JobMeta struct {
	Ctx         context.Context
	CleanupFunc func()
}

// Job represents a single unit of work submitted to the pool.
type Job struct {
	// Name identifies the job in logs and errors.
	Name string
	Fn   JobFunc
	Meta *JobMeta
}

func (j Job) ctx() context.Context {
	if j.Meta == nil || j.Meta.Ctx == nil {
		return context.Background()
	}
	return j.Meta.Ctx
}

func (j Job) cleanup() {
	if j.Meta != nil && j.Meta.CleanupFunc != nil {
		j.Meta.CleanupFunc()
	}
}

// Pool is a bounded worker pool. It is safe for concurrent submission.
type Pool struct {
	opts Options
	jobs chan Job

	mu      sync.Mutex
	workers int  // guarded by mu
	idle    int  // workers not running a job; guarded by mu
	pending int  // accepted jobs not yet taken by a worker; guarded by mu
	nextID  int  // guarded by mu
	closed  bool // guarded by mu

	activeWorkers atomic.Int32
	wg            sync.WaitGroup
	stopOnce      sync.Once
	closedCh      chan struct{} // signals no more submissions
}

// New creates a pool and starts its MinWorkers workers.
func New(opts Options) *Pool {
	opts.FillDefaults()
	p := &Pool{
		opts:     opts,
		// room for the queue plus one hand-off per worker, so an
		// accepted job never blocks the submitter
		jobs:     make(chan Job, opts.QueueSize+opts.MaxWorkers),
		closedCh: make(chan struct{}),
	}
	p.mu.Lock()
	for range opts.MinWorkers {
		p.spawn(nil)
	}
	p.mu.Unlock()
	lg.FromContext(context.Background()).Info("worker pool started",
		lg.Int("min_workers", opts.MinWorkers),
		lg.Int("max_workers", opts.MaxWorkers),
		lg.Int("queue_size", opts.QueueSize),
	)
	return p
}

// TrySubmit hands the job to the pool without blocking.
//
// A job is accepted when an idle worker can take it, when the queue has room
// or when fewer than MaxWorkers run. Otherwise it returns ErrQueueFull.
// After Shutdown it returns ErrPoolClosed.
func (p *Pool) TrySubmit(job Job) error {
	if job.Fn == nil {
		return ErrNilFunc
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.opts.Metrics.IncRejected()
		return ErrPoolClosed
	}

	if p.pending < p.opts.QueueSize+p.idle {
		p.pending++
		p.opts.Metrics.IncQueued()
		p.jobs <- job
		if p.workers == 0 {
			p.spawn(nil)
		}
		return nil
	}

	if p.workers < p.opts.MaxWorkers {
		p.spawn(&job)
		return nil
	}

	p.opts.Metrics.IncRejected()
	lg.FromContext(job.ctx()).Warn("job rejected, pool saturated",
		lg.String("job", job.Name),
		lg.Int("workers", p.workers),
		lg.Int("queued", p.pending),
	)
	return ErrQueueFull
}

// Submit waits until the job is accepted, the context ends or the pool
// closes. Saturation is retried with a short backoff.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	bo := boff.New(submitRetryInitial, submitRetryMax, time.Now().UnixNano())
	for {
		err := p.TrySubmit(job)
		if !errors.Is(err, ErrQueueFull) {
			return err
		}
		timer := time.NewTimer(bo.Next())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-p.closedCh:
			timer.Stop()
			return ErrPoolClosed
		}
	}
}

// spawn starts a worker. first, if set, is run before the worker reads the
// queue; otherwise the worker counts as idle right away. Callers hold p.mu.
func (p *Pool) spawn(first *Job) {
	p.workers++
	if first == nil {
		p.idle++
	}
	p.nextID++
	p.opts.Metrics.SetWorkers(p.workers)
	p.wg.Add(1)
	go p.worker(p.nextID, first)
}

func (p *Pool) worker(id int, first *Job) {
	defer p.wg.Done()

	if p.opts.PinWorkers {
		runtime.LockOSThread()
		if err := PinToCPU(id % runtime.NumCPU()); err != nil {
			p.reportInternalError(fmt.Errorf("workerpool: pin worker %d: %w", id, err))
		}
	}

	if first != nil {
		p.runJob(*first)
		p.setIdle(1)
	}

	keepAlive := time.NewTimer(p.opts.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				p.exit()
				return
			}
			p.take()
			p.runJob(job)
			p.setIdle(1)
			keepAlive.Reset(p.opts.KeepAlive)
		case <-keepAlive.C:
			if p.retire() {
				return
			}
			keepAlive.Reset(p.opts.KeepAlive)
		}
	}
}

// take accounts for a job received from the queue.
func (p *Pool) take() {
	p.mu.Lock()
	p.pending--
	p.idle--
	p.mu.Unlock()
	p.opts.Metrics.DecQueued()
}

func (p *Pool) setIdle(delta int) {
	p.mu.Lock()
	p.idle += delta
	p.mu.Unlock()
}

// retire lets an idle worker exit while the pool runs above MinWorkers.
// A worker never retires while accepted jobs wait to be taken.
func (p *Pool) retire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers <= p.opts.MinWorkers || p.pending > 0 {
		return false
	}
	p.workers--
	p.idle--
	p.opts.Metrics.SetWorkers(p.workers)
	return true
}

func (p *Pool) exit() {
	p.mu.Lock()
	p.workers--
	p.idle--
	p.opts.Metrics.SetWorkers(p.workers)
	p.mu.Unlock()
}

func (p *Pool) runJob(job Job) {
	ctx := job.ctx()
	logger := lg.FromContext(ctx).With(lg.String("job", job.Name))

	p.activeWorkers.Add(1)
	defer p.activeWorkers.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.opts.Metrics.IncPanicked()
			logger.Error("job panicked", lg.Any("panic", r))
			p.reportJobError(&PanicError{Job: job.Name, Value: r})
		}
		job.cleanup()
		p.opts.Metrics.IncExecuted()
	}()

	if err := ctx.Err(); err != nil {
		logger.Info("job skipped", lg.Any("reason", err))
		p.reportJobError(fmt.Errorf("%w: %s: %w", ErrJobSkipped, job.Name, err))
		return
	}
	job.Fn(ctx)
}

// Shutdown stops accepting jobs, lets the workers drain the queue and waits
// for them or for ctx. It is safe to call more than once.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.closedCh) // reject new jobs
		close(p.jobs)     // drain
		queued := p.pending
		p.mu.Unlock()
		lg.FromContext(ctx).Info("worker pool shutting down", lg.Int("queued", queued))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop is the blocking form of Shutdown.
func (p *Pool) Stop() { _ = p.Shutdown(context.Background()) }

// Workers returns the number of live workers.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

func (p *Pool) ActiveWorkers() int32 { return p.activeWorkers.Load() }

// QueueLength returns the number of accepted jobs no worker has taken yet.
func (p *Pool) QueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}
