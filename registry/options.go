package registry

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger. Defaults to NoOpLogger.
func WithLogger(logger Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithScanner replaces the CatalogScanner.
func WithScanner(scanner Scanner) Option {
	return func(r *Registry) {
		if scanner != nil {
			r.scanner = scanner
		}
	}
}

// WithObserver receives one Event per discovery outcome.
func WithObserver(observer Observer) Option {
	return func(r *Registry) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// WithCandidateTimeout bounds every module load, probe and constructor call.
// Zero disables the limit.
func WithCandidateTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d >= 0 {
			r.gate.Timeout = d
		}
	}
}

// WithTracer sets the tracer used for discovery spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}
