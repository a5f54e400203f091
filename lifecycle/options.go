package lifecycle

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/filterkit/logger"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger. Defaults to logger.Get("lifecycle").
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithObserver adds an observer for registry transitions.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithTracer sets the tracer used to wrap filter hook calls in spans.
// Defaults to the global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		if t != nil {
			r.tracer = t
		}
	}
}
