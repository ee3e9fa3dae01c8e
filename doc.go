// Package asyncexec runs independent computations in parallel on a bounded
// worker pool, combines their results with a merge function, and retries
// flaky operations with an optional recovery fallback.
//
// Fan-out / fan-in
//
// Execute, Execute2, Execute3 and ExecuteN submit every computation to the
// Executor before awaiting any of them. The merge function runs once, on the
// calling goroutine, after all computations succeeded, and always receives
// results in the order the computations were passed, regardless of which
// finished first.
//
// When computations fail the call still waits for every submitted sibling
// to finish, so no work is left running behind the caller's back. Siblings
// are not cancelled. The failure reported is the one with the lowest
// position. If the executor rejects a computation, later computations are not
// submitted and the rejection is reported once the earlier ones finished.
//
// Retry
//
// ExecuteRetryable and ExecuteRetryableWithRecovery run a computation on the
// calling goroutine up to RetryPolicy.Attempts times (2 by default) with a
// fixed 1s backoff between attempts. Each call gets a RetryState whose ID is
// a fresh UUID shared by all of its attempts; listeners registered with
// WithAttemptListener see it on every failed attempt. When the attempts are
// exhausted the recovery computation, if any, supplies the result.
//
// Retrying adapts a retryable call into a Computation so it can be passed to
// the orchestrator:
//
//	res, err := asyncexec.Execute3(ctx, orch,
//		hello,
//		asyncexec.Retrying(retry, flaky, fallback),
//		world,
//		func(a, b, c string) (string, error) { return a + " " + b + " " + c, nil },
//	)
//
// Errors
//
// Every failure leaving this package is an *ExecutionError wrapping the
// original cause: computation errors, recovered panics (*workerpool.PanicError),
// executor rejections (workerpool.ErrQueueFull, workerpool.ErrPoolClosed),
// context cancellation while waiting, and merge failures. Use errors.Is and
// errors.As on the returned error to inspect the cause.
package asyncexec
