package asyncexec

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/azargarov/asyncexec"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTracerProvider sets the provider spans are created from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m MetricsPolicy) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// RetryOption configures a RetryExecutor.
type RetryOption func(*RetryExecutor)

// WithRetryPolicy sets the attempt budget and backoff.
func WithRetryPolicy(p RetryPolicy) RetryOption {
	return func(r *RetryExecutor) {
		r.policy = p.withDefaults()
	}
}

// WithAttemptListener registers a listener called on every failed attempt.
func WithAttemptListener(l AttemptListener) RetryOption {
	return func(r *RetryExecutor) {
		if l != nil {
			r.listeners = append(r.listeners, l)
		}
	}
}

// WithRetryTracerProvider sets the provider retry spans are created from.
func WithRetryTracerProvider(tp trace.TracerProvider) RetryOption {
	return func(r *RetryExecutor) {
		if tp != nil {
			r.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithRetryMetrics sets the metrics sink of the retry executor.
func WithRetryMetrics(m MetricsPolicy) RetryOption {
	return func(r *RetryExecutor) {
		if m != nil {
			r.metrics = m
		}
	}
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
