package workerpool

import (
	"context"
	"runtime"
	"testing"
	"time"
)

func newTestPool(t *testing.T, opts Options) *Pool {
	t.Helper()
	p := New(opts)
	t.Cleanup(p.Stop)
	return p
}

// blockingJob returns a job that signals started and waits for release.
func blockingJob(name string, started chan<- struct{}, release <-chan struct{}) Job {
	return Job{
		Name: name,
		Fn: func(context.Context) {
			if started != nil {
				started <- struct{}{}
			}
			<-release
		},
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
	}
	t.Fatal("condition not satisfied before timeout")
}
