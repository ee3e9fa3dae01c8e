package workerpool

import (
	"sync/atomic"
)

// MetricsPolicy defines hooks used by the worker pool to report
// queueing and execution activity.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking
type MetricsPolicy interface {

	// IncExecuted increments the executed jobs counter.
	IncExecuted()

	// IncQueued increments the queued jobs gauge.
	IncQueued()

	// DecQueued decrements the queued jobs gauge when a worker
	// takes a job off the queue.
	DecQueued()

	// IncRejected counts submissions refused because the pool was
	// saturated or closed.
	IncRejected()

	// IncPanicked counts jobs that panicked.
	IncPanicked()

	// SetWorkers reports the current number of live workers.
	SetWorkers(n int)
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes are optimized for hot paths.
// Reads are intended for cold-path observation.
type AtomicMetrics struct {
	// executed is the total number of jobs processed.
	executed atomic.Uint64

	_ [56]byte // padding to avoid false sharing

	// queued is the current number of jobs enqueued.
	queued atomic.Int64

	rejected atomic.Uint64
	panicked atomic.Uint64
	workers  atomic.Int64
}

// Executed returns the total number of executed jobs.
func (m *AtomicMetrics) Executed() uint64 {
	return m.executed.Load()
}

// Queued returns the current number of queued jobs.
func (m *AtomicMetrics) Queued() int64 {
	return m.queued.Load()
}

// Rejected returns the number of refused submissions.
func (m *AtomicMetrics) Rejected() uint64 {
	return m.rejected.Load()
}

// Panicked returns the number of jobs that panicked.
func (m *AtomicMetrics) Panicked() uint64 {
	return m.panicked.Load()
}

// Workers returns the last reported worker count.
func (m *AtomicMetrics) Workers() int64 {
	return m.workers.Load()
}

// IncExecuted increments the executed jobs counter by one.
func (m *AtomicMetrics) IncExecuted() {
	m.executed.Add(1)
}

// IncQueued increments the queued jobs gauge by one.
func (m *AtomicMetrics) IncQueued() {
	m.queued.Add(1)
}

// DecQueued decrements the queued jobs gauge by one.
func (m *AtomicMetrics) DecQueued() {
	m.queued.Add(-1)
}

// IncRejected increments the rejected submissions counter by one.
func (m *AtomicMetrics) IncRejected() {
	m.rejected.Add(1)
}

// IncPanicked increments the panicked jobs counter by one.
func (m *AtomicMetrics) IncPanicked() {
	m.panicked.Add(1)
}

// SetWorkers records n as the current worker count.
func (m *AtomicMetrics) SetWorkers(n int) {
	m.workers.Store(int64(n))
}

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
//
// It can be used when metrics collection is disabled and
// zero overhead is desired.
type NoopMetrics struct{}

// IncExecuted does nothing.
func (m *NoopMetrics) IncExecuted() {}

// IncQueued does nothing.
func (m *NoopMetrics) IncQueued() {}

// DecQueued does nothing.
func (m *NoopMetrics) DecQueued() {}

// IncRejected does nothing.
func (m *NoopMetrics) IncRejected() {}

// IncPanicked does nothing.
func (m *NoopMetrics) IncPanicked() {}

// SetWorkers does nothing.
func (m *NoopMetrics) SetWorkers(int) {}
