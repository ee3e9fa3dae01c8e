package workerpool

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned when the pool runs MaxWorkers workers and
	// the queue cannot accept more jobs.
	ErrQueueFull = errors.New("workerpool: queue is full")

	// ErrPoolClosed is returned for submissions after Shutdown.
	ErrPoolClosed = errors.New("workerpool: pool closed")

	// ErrNilFunc is returned when a submitted Job has a nil Fn.
	ErrNilFunc = errors.New("workerpool: job func is nil")

	// ErrJobSkipped is reported when a job's context ended before a
	// worker could run it.
	ErrJobSkipped = errors.New("workerpool: job skipped")
)

// PanicError carries a value recovered from a panicking job.
type PanicError struct {
	Job   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("workerpool: job %q panicked: %v", e.Job, e.Value)
}

// reportInternalError reports an internal pool error.
//
// Internal errors are non-job-related failures such as
// worker setup issues or unexpected runtime conditions.
// If no handler is registered, the error is silently ignored.
func (p *Pool) reportInternalError(e error) {
	if p.opts.OnInternalError != nil {
		p.opts.OnInternalError(e)
	}
}

// reportJobError reports an error produced by panic recovery
// or by skipping a job.
func (p *Pool) reportJobError(err error) {
	if p.opts.OnJobError != nil {
		p.opts.OnJobError(err)
	}
}
