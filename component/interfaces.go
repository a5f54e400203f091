package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthReporter reports health without taking part in start/stop ordering.
// The filter lifecycle registry is one: it lives as long as the process.
type HealthReporter interface {
	Health(ctx context.Context) Health
}

// Component represents a lifecycle-managed service piece such as the
// admin HTTP server.
type Component interface {
	HealthReporter

	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error
}
