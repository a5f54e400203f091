// Package resilience guards calls to external sinks.
//
// Two patterns are provided and are usually combined:
//   - Retry re-runs a failing call with capped exponential backoff
//   - CircuitBreaker fails fast once a dependency keeps failing
//
// Example:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("journal"))
//	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
//	    return cb.Execute(ctx, func(ctx context.Context) error {
//	        return sink.Write(ctx, batch)
//	    })
//	})
//
// ErrCircuitOpen is marked permanent so Retry does not spin on an open breaker.
package resilience
