package asyncexec

import (
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
)

const (
	DefaultAttempts = 2
	DefaultBackoff  = time.Second
)

// RetryPolicy describes how many times and how often a computation is tried.
// Zero values are treated as "use defaults".
type RetryPolicy struct {
	// Attempts is the maximum number of tries, the first one included.
	Attempts int

	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max, when greater than Initial, turns the fixed delay into an
	// exponential one capped at Max.
	Max time.Duration
}

// DefaultRetryPolicy returns two attempts with a fixed one second backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: DefaultAttempts,
		Initial:  DefaultBackoff,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Initial <= 0 {
		p.Initial = DefaultBackoff
	}
	return p
}

// Backoff yields the delay before each retry.
type Backoff interface {
	Next() time.Duration
}

type fixedBackoff time.Duration

func (f fixedBackoff) Next() time.Duration { return time.Duration(f) }

type backoffFunc func() time.Duration

func (f backoffFunc) Next() time.Duration { return f() }

// newBackoff returns a fresh delay sequence for one retry invocation.
func (p RetryPolicy) newBackoff() Backoff {
	if p.Max <= p.Initial {
		return fixedBackoff(p.Initial)
	}
	bo := boff.New(p.Initial, p.Max, time.Now().UnixNano())
	return backoffFunc(func() time.Duration { return bo.Next() })
}
