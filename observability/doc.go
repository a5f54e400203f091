// Package observability exports filter lifecycle traces and metrics over
// OTLP/HTTP.
//
//	cfg := observability.DefaultConfig("filterkit")
//	tel, err := observability.Init(ctx, &cfg)
//	defer tel.Shutdown(ctx)
//
//	registry := lifecycle.New(lifecycle.WithObserver(tel.Lifecycle))
//
// Once Init has installed the global tracer provider, every filter hook the
// registry invokes runs inside a "filter.<operation>" span. LifecycleMetrics
// counts transitions and hook failures and tracks the number of registered
// filters and held references as up/down counters.
package observability
