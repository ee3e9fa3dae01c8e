package asyncexec

import (
	"sync/atomic"
)

// MetricsPolicy receives orchestration and retry events.
//
// Implementations must be safe for concurrent use and must not block.
type MetricsPolicy interface {
	// IncOrchestrations counts Execute*/Run calls by operation.
	IncOrchestrations(op string)

	// IncFailures counts Execute*/Run/ExecuteRetryable* calls that
	// returned an error.
	IncFailures(op string)

	// IncAttempts counts every invocation of a retried computation.
	IncAttempts()

	// IncRetries counts failed attempts followed by another attempt.
	IncRetries()

	// IncRecoveries counts exhausted calls answered by a recovery computation.
	IncRecoveries()

	// IncExhausted counts calls that used up their attempt budget.
	IncExhausted()
}

// AtomicMetrics is a lock-free MetricsPolicy. Operation labels are ignored.
type AtomicMetrics struct {
	orchestrations atomic.Uint64
	failures       atomic.Uint64
	attempts       atomic.Uint64
	retries        atomic.Uint64
	recoveries     atomic.Uint64
	exhausted      atomic.Uint64
}

// IncOrchestrations increments the orchestration counter by one.
func (m *AtomicMetrics) IncOrchestrations(string) { m.orchestrations.Add(1) }

// IncFailures increments the failure counter by one.
func (m *AtomicMetrics) IncFailures(string) { m.failures.Add(1) }

// IncAttempts increments the attempt counter by one.
func (m *AtomicMetrics) IncAttempts() { m.attempts.Add(1) }

// IncRetries increments the retry counter by one.
func (m *AtomicMetrics) IncRetries() { m.retries.Add(1) }

// IncRecoveries increments the recovery counter by one.
func (m *AtomicMetrics) IncRecoveries() { m.recoveries.Add(1) }

// IncExhausted increments the exhausted call counter by one.
func (m *AtomicMetrics) IncExhausted() { m.exhausted.Add(1) }

// Orchestrations returns the number of Execute*/Run calls.
func (m *AtomicMetrics) Orchestrations() uint64 { return m.orchestrations.Load() }

// Failures returns the number of calls that returned an error.
func (m *AtomicMetrics) Failures() uint64 { return m.failures.Load() }

// Attempts returns the number of retried computation invocations.
func (m *AtomicMetrics) Attempts() uint64 { return m.attempts.Load() }

// Retries returns the number of failed attempts followed by another one.
func (m *AtomicMetrics) Retries() uint64 { return m.retries.Load() }

// Recoveries returns the number of recovery computations run.
func (m *AtomicMetrics) Recoveries() uint64 { return m.recoveries.Load() }

// Exhausted returns the number of calls that used up their attempts.
func (m *AtomicMetrics) Exhausted() uint64 { return m.exhausted.Load() }

//------------- NoopMetrics ----------------------------------

// NoopMetrics discards all metric updates.
type NoopMetrics struct{}

// IncOrchestrations does nothing.
func (NoopMetrics) IncOrchestrations(string) {}

// IncFailures does nothing.
func (NoopMetrics) IncFailures(string) {}

// IncAttempts does nothing.
func (NoopMetrics) IncAttempts() {}

// IncRetries does nothing.
func (NoopMetrics) IncRetries() {}

// IncRecoveries does nothing.
func (NoopMetrics) IncRecoveries() {}

// IncExhausted does nothing.
func (NoopMetrics) IncExhausted() {}
