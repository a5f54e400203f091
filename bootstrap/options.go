package bootstrap

import (
	"time"

	"github.com/kbukum/filterkit/lifecycle"
	"github.com/kbukum/filterkit/logger"
)

// Option configures the App during creation.
// Options are non-generic so they can be used with any config type.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout *time.Duration
	lifecycle       []lifecycle.Option
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithLifecycleOptions passes options to the application's lifecycle
// registry, e.g. lifecycle.WithObserver for metrics.
func WithLifecycleOptions(opts ...lifecycle.Option) Option {
	return func(o *appOptions) {
		o.lifecycle = append(o.lifecycle, opts...)
	}
}
