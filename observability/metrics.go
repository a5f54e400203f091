package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kbukum/filterkit/lifecycle"
)

// MeterName is the instrumentation name used for lifecycle metrics.
const MeterName = "github.com/kbukum/filterkit/lifecycle"

// Metric names.
const (
	MetricTransitions   = "filter.transitions"
	MetricRegistered    = "filter.registered"
	MetricInstallations = "filter.installations"
	MetricHookFailures  = "filter.hook.failures"
)

// LifecycleMetrics records lifecycle registry transitions as OpenTelemetry
// instruments. It implements lifecycle.Observer.
type LifecycleMetrics struct {
	transitions   metric.Int64Counter
	registered    metric.Int64UpDownCounter
	installations metric.Int64UpDownCounter
	hookFailures  metric.Int64Counter
}

var _ lifecycle.Observer = (*LifecycleMetrics)(nil)

// NewLifecycleMetrics creates metric instruments on the given meter.
func NewLifecycleMetrics(meter metric.Meter) (*LifecycleMetrics, error) {
	m := &LifecycleMetrics{}
	var err error
	if m.transitions, err = meter.Int64Counter(MetricTransitions,
		metric.WithDescription("Lifecycle registry transitions by kind and operation")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricTransitions, err)
	}
	if m.registered, err = meter.Int64UpDownCounter(MetricRegistered,
		metric.WithDescription("Number of initialized filters")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricRegistered, err)
	}
	if m.installations, err = meter.Int64UpDownCounter(MetricInstallations,
		metric.WithDescription("Number of filter references held by chains")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricInstallations, err)
	}
	if m.hookFailures, err = meter.Int64Counter(MetricHookFailures,
		metric.WithDescription("Filter hook failures by operation")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricHookFailures, err)
	}
	return m, nil
}

// OnTransition records t.
func (m *LifecycleMetrics) OnTransition(ctx context.Context, t lifecycle.Transition) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(t.Kind)),
		attribute.String("operation", t.Operation),
	))

	switch t.Kind {
	case lifecycle.TransitionInit:
		m.registered.Add(ctx, 1)
	case lifecycle.TransitionDestroy:
		m.registered.Add(ctx, -1)
	case lifecycle.TransitionAcquire:
		m.installations.Add(ctx, 1)
	case lifecycle.TransitionRelease:
		m.installations.Add(ctx, -1)
	case lifecycle.TransitionRollback:
		// A rejected pre-add never reported its acquire.
		if t.Operation == lifecycle.OpPostAdd {
			m.installations.Add(ctx, -1)
		}
	case lifecycle.TransitionFailure:
		m.hookFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", t.Operation)))
		// A failed destroy still takes the filter out of the registry.
		if t.Operation == lifecycle.OpDestroy {
			m.registered.Add(ctx, -1)
		}
	}
}
