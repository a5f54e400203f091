package journal

import (
	"time"

	"github.com/kbukum/filterkit/resilience"
	"github.com/kbukum/filterkit/security"
	"github.com/kbukum/filterkit/validation"
)

// Supported backends.
const (
	BackendRedis = "redis"
	BackendKafka = "kafka"
)

// Config configures the transition journal.
type Config struct {
	// Enabled turns the journal on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Backend selects the sink: "redis" or "kafka".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=redis kafka"`

	// Buffer is the number of records queued before new ones are dropped.
	Buffer int `yaml:"buffer" mapstructure:"buffer" validate:"gte=0"`

	// BatchSize is the number of records written per sink call.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=0"`

	// FlushInterval bounds how long a partial batch waits.
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval" validate:"gte=0"`

	// WriteTimeout bounds a single sink write attempt.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`

	Retry   resilience.RetryConfig          `yaml:"retry" mapstructure:"retry"`
	Breaker resilience.CircuitBreakerConfig `yaml:"breaker" mapstructure:"breaker"`

	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
	Kafka KafkaConfig `yaml:"kafka" mapstructure:"kafka"`
}

// RedisConfig configures the Redis stream sink.
type RedisConfig struct {
	Addr        string        `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
	Username    string        `yaml:"username" mapstructure:"username"`
	Password    string        `yaml:"password" mapstructure:"password" json:"-"`
	DB          int           `yaml:"db" mapstructure:"db" validate:"gte=0"`
	Stream      string        `yaml:"stream" mapstructure:"stream"`
	MaxLen      int64         `yaml:"max_len" mapstructure:"max_len" validate:"gte=0"`
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout" validate:"gte=0"`

	TLS security.ClientTLSConfig `yaml:"tls" mapstructure:"tls"`
}

// KafkaConfig configures the Kafka topic sink.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" mapstructure:"brokers" validate:"dive,hostname_port"`
	Topic        string        `yaml:"topic" mapstructure:"topic"`
	Compression  string        `yaml:"compression" mapstructure:"compression" validate:"omitempty,oneof=none gzip snappy lz4 zstd"`
	RequiredAcks int           `yaml:"required_acks" mapstructure:"required_acks" validate:"oneof=-1 0 1"`
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout" validate:"gte=0"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout" validate:"gte=0"`

	SASL SASLConfig               `yaml:"sasl" mapstructure:"sasl"`
	TLS  security.ClientTLSConfig `yaml:"tls" mapstructure:"tls"`
}

// SASLConfig configures Kafka SASL authentication.
type SASLConfig struct {
	Mechanism string `yaml:"mechanism" mapstructure:"mechanism" validate:"omitempty,oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512"`
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password" mapstructure:"password" json:"-"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendRedis
	}
	if c.Buffer <= 0 {
		c.Buffer = 4096
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	c.Retry.ApplyDefaults()
	if c.Breaker.Name == "" {
		c.Breaker.Name = "journal"
	}
	c.Breaker.ApplyDefaults()

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = "filterkit:transitions"
	}
	if c.Redis.DialTimeout <= 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}

	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "filterkit.transitions"
	}
	if c.Kafka.Compression == "" {
		c.Kafka.Compression = "snappy"
	}
	if c.Kafka.RequiredAcks == 0 {
		c.Kafka.RequiredAcks = -1
	}
	if c.Kafka.BatchTimeout <= 0 {
		c.Kafka.BatchTimeout = 10 * time.Millisecond
	}
	if c.Kafka.DialTimeout <= 0 {
		c.Kafka.DialTimeout = 5 * time.Second
	}
}

// Validate checks tags and the settings of the selected backend.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}

	v := validation.New().OneOf("backend", c.Backend, []string{BackendRedis, BackendKafka})
	switch c.Backend {
	case BackendRedis:
		v.Required("redis.addr", c.Redis.Addr).
			Required("redis.stream", c.Redis.Stream).
			Nested("redis.tls", c.Redis.TLS.Validate())
	case BackendKafka:
		v.Custom(len(c.Kafka.Brokers) > 0, "kafka.brokers", "is required").
			Required("kafka.topic", c.Kafka.Topic)
		if c.Kafka.SASL.Mechanism != "" {
			v.Required("kafka.sasl.username", c.Kafka.SASL.Username)
		}
		v.Nested("kafka.tls", c.Kafka.TLS.Validate())
	}
	return v.Err()
}
