// Package metrics exports pool and orchestration activity to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/azargarov/asyncexec"
	"github.com/azargarov/asyncexec/workerpool"
)

const namespace = "asyncexec"

var (
	_ workerpool.MetricsPolicy = (*Prometheus)(nil)
	_ asyncexec.MetricsPolicy  = (*Prometheus)(nil)
)

// Prometheus implements the metrics policies of both the worker pool and
// the orchestrator, so one value can be handed to each of them.
type Prometheus struct {
	executed prometheus.Counter
	queued   prometheus.Gauge
	rejected prometheus.Counter
	panicked prometheus.Counter
	workers  prometheus.Gauge

	orchestrations *prometheus.CounterVec
	failures       *prometheus.CounterVec
	attempts       prometheus.Counter
	retries        prometheus.Counter
	recoveries     prometheus.Counter
	exhausted      prometheus.Counter
}

// NewPrometheus creates the collectors and registers them with reg.
// A nil reg uses the default registerer.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Prometheus{
		executed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool",
			Name: "jobs_executed_total",
			Help: "Jobs run or skipped by a worker.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool",
			Name: "jobs_queued",
			Help: "Jobs waiting in the pool queue.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool",
			Name: "jobs_rejected_total",
			Help: "Submissions refused because the pool was saturated or closed.",
		}),
		panicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool",
			Name: "jobs_panicked_total",
			Help: "Jobs that panicked.",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool",
			Name: "workers",
			Help: "Live pool workers.",
		}),
		orchestrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrations_total",
			Help:      "Orchestration calls by operation.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Calls that returned an error, by operation.",
		}, []string{"op"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "retry",
			Name: "attempts_total",
			Help: "Invocations of retried computations.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "retry",
			Name: "retries_total",
			Help: "Failed attempts followed by another attempt.",
		}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "retry",
			Name: "recoveries_total",
			Help: "Exhausted calls answered by a recovery computation.",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "retry",
			Name: "exhausted_total",
			Help: "Calls that used up their attempt budget.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.executed, m.queued, m.rejected, m.panicked, m.workers,
		m.orchestrations, m.failures,
		m.attempts, m.retries, m.recoveries, m.exhausted,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// workerpool.MetricsPolicy

func (m *Prometheus) IncExecuted()     { m.executed.Inc() }
func (m *Prometheus) IncQueued()       { m.queued.Inc() }
func (m *Prometheus) DecQueued()       { m.queued.Dec() }
func (m *Prometheus) IncRejected()     { m.rejected.Inc() }
func (m *Prometheus) IncPanicked()     { m.panicked.Inc() }
func (m *Prometheus) SetWorkers(n int) { m.workers.Set(float64(n)) }

// asyncexec.MetricsPolicy

func (m *Prometheus) IncOrchestrations(op string) { m.orchestrations.WithLabelValues(op).Inc() }
func (m *Prometheus) IncFailures(op string)       { m.failures.WithLabelValues(op).Inc() }
func (m *Prometheus) IncAttempts()                { m.attempts.Inc() }
func (m *Prometheus) IncRetries()                 { m.retries.Inc() }
func (m *Prometheus) IncRecoveries()              { m.recoveries.Inc() }
func (m *Prometheus) IncExhausted()               { m.exhausted.Inc() }
