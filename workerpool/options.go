package workerpool

import (
	"time"
)

const (
	DefaultMinWorkers = 1
	DefaultMaxWorkers = 15
	DefaultQueueSize  = 20
	DefaultKeepAlive  = 60 * time.Second
)

// Options configure a worker Pool.
//
// Zero values are replaced with defaults in FillDefaults, except QueueSize:
// a zero queue is valid and means jobs are only handed directly to idle or
// newly started workers.
type Options struct {
	MinWorkers int
	MaxWorkers int

	// QueueSize is the capacity of the pending-job queue. Negative values
	// select DefaultQueueSize.
	QueueSize int

	// KeepAlive is how long a worker above MinWorkers waits for a job
	// before exiting.
	KeepAlive time.Duration

	PinWorkers bool

	Metrics MetricsPolicy

	// OnJobError receives recovered panics and skipped-job errors.
	OnJobError func(error)

	// OnInternalError receives failures of the pool itself.
	OnInternalError func(error)
}

// DefaultOptions returns options with every field set to its default.
func DefaultOptions() Options {
	o := Options{MinWorkers: DefaultMinWorkers, QueueSize: DefaultQueueSize}
	o.FillDefaults()
	return o
}

func (o *Options) FillDefaults() {
	if o.MinWorkers < 0 {
		o.MinWorkers = DefaultMinWorkers
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.MinWorkers > o.MaxWorkers {
		o.MaxWorkers = o.MinWorkers
	}
	if o.QueueSize < 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.Metrics == nil {
		o.Metrics = &NoopMetrics{}
	}
}
