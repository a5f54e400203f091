// Package journal ships filter lifecycle transitions to an external store.
//
// A Recorder is registered as a lifecycle.Observer and as a component. The
// observer side only enqueues; a background worker batches records and
// writes them to a Sink through a retry loop and a circuit breaker, so a
// slow or unreachable backend never holds the registry lock.
//
// Two sinks are provided:
//   - RedisSink appends each record to a Redis stream (XADD)
//   - KafkaSink produces each record to a Kafka topic keyed by filter
//
// Records are JSON. Sequence numbers are assigned when a transition is
// observed, so gaps in a stream mean records were dropped on overflow.
package journal
