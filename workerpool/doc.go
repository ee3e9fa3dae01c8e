// Package workerpool provides the bounded execution resource used by the
// orchestrator.
//
// Sizing model
//
// New starts MinWorkers workers up front. The pool never runs more than
// MaxWorkers and never holds more than QueueSize pending jobs. TrySubmit
// handles a job as follows:
//
//  1. the job is accepted if an idle worker can take it or the queue has
//     room (a worker is started when none is running)
//  2. otherwise an extra worker starts with the job if fewer than
//     MaxWorkers run
//  3. otherwise the job is rejected with ErrQueueFull
//
// TrySubmit never blocks. Submit waits for queue space instead, backing off
// between tries, until its context ends or the pool is shut down.
//
// Extra workers (above MinWorkers) exit after KeepAlive without work.
//
// Job lifecycle
//
// Jobs carry their function, an optional context and optional cleanup
// logic. A job whose context is already done when a worker picks it up is
// skipped. CleanupFunc runs in every case, after the job finished,
// panicked or was skipped.
//
// Error handling
//
// Job errors (recovered panics, skipped jobs) go to Options.OnJobError,
// failures of the pool itself such as CPU pinning go to
// Options.OnInternalError. Neither stops a worker.
//
// CPU pinning
//
// With PinWorkers on Linux each worker locks its OS thread and binds it to
// CPU id modulo NumCPU. Elsewhere pinning is a no-op.
package workerpool
