package journal

import (
	"context"
	"fmt"
)

// Sink persists batches of records.
type Sink interface {
	// Name identifies the backend in logs and health messages.
	Name() string
	// Write stores records in order. A partial write returns an error and
	// the whole batch is retried.
	Write(ctx context.Context, records []Record) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases connections held by the sink.
	Close() error
}

// NewSink builds the sink selected by cfg.Backend.
func NewSink(cfg *Config) (Sink, error) {
	switch cfg.Backend {
	case BackendRedis:
		return NewRedisSink(cfg.Redis)
	case BackendKafka:
		return NewKafkaSink(cfg.Kafka)
	default:
		return nil, fmt.Errorf("journal: unknown backend %q", cfg.Backend)
	}
}
