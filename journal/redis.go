package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/filterkit/resilience"
)

// RedisSink appends records to a Redis stream.
type RedisSink struct {
	client *goredis.Client
	stream string
	maxLen int64
	owned  bool
}

var _ Sink = (*RedisSink)(nil)

// NewRedisSink connects a new client for cfg.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("journal/redis: %w", err)
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		TLSConfig:   tlsCfg,
	})
	s := NewRedisSinkFromClient(client, cfg.Stream, cfg.MaxLen)
	s.owned = true
	return s, nil
}

// NewRedisSinkFromClient writes through an existing client. Close leaves
// the client open.
func NewRedisSinkFromClient(client *goredis.Client, stream string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

// Name returns "redis".
func (s *RedisSink) Name() string { return BackendRedis }

// Write adds one stream entry per record in a single pipeline. Entries
// carry the kind, filter and sequence as fields next to the JSON record.
func (s *RedisSink) Write(ctx context.Context, records []Record) error {
	pipe := s.client.Pipeline()
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("journal/redis: encode record %d: %w", rec.Seq, err))
		}
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: s.maxLen > 0,
			Values: map[string]any{
				"seq":    strconv.FormatUint(rec.Seq, 10),
				"kind":   rec.Kind,
				"filter": rec.Filter,
				"record": string(data),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("journal/redis: xadd %s: %w", s.stream, err)
	}
	return nil
}

// Ping checks the server connection.
func (s *RedisSink) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("journal/redis: ping: %w", err)
	}
	return nil
}

// Close closes the client if the sink created it.
func (s *RedisSink) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
