package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/kbukum/filterkit/resilience"
)

// messageWriter is the subset of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink produces records to a Kafka topic, keyed by filter so that all
// transitions of one filter land in the same partition in order.
type KafkaSink struct {
	writer  messageWriter
	dialer  *kafka.Dialer
	brokers []string
	topic   string
}

var _ Sink = (*KafkaSink)(nil)

// NewKafkaSink creates a producer for cfg. No connection is made until the
// first Ping or Write.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("journal/kafka: %w", err)
	}
	mechanism, err := saslMechanism(cfg.SASL)
	if err != nil {
		return nil, err
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		Compression:  compression(cfg.Compression),
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchTimeout: cfg.BatchTimeout,
		Transport: &kafka.Transport{
			DialTimeout: cfg.DialTimeout,
			TLS:         tlsCfg,
			SASL:        mechanism,
			ClientID:    "filterkit-journal",
		},
	}
	dialer := &kafka.Dialer{
		Timeout:       cfg.DialTimeout,
		TLS:           tlsCfg,
		SASLMechanism: mechanism,
		ClientID:      "filterkit-journal",
	}
	return &KafkaSink{writer: w, dialer: dialer, brokers: cfg.Brokers, topic: cfg.Topic}, nil
}

// Name returns "kafka".
func (s *KafkaSink) Name() string { return BackendKafka }

// Write produces one message per record. Each message carries the record
// kind and operation as headers.
func (s *KafkaSink) Write(ctx context.Context, records []Record) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("journal/kafka: encode record %d: %w", rec.Seq, err))
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(rec.Filter),
			Value: data,
			Time:  rec.Time,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(rec.Kind)},
				{Key: "operation", Value: []byte(rec.Operation)},
				{Key: "service", Value: []byte(rec.Service)},
			},
		})
	}
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("journal/kafka: produce to %s: %w", s.topic, err)
	}
	return nil
}

// Ping succeeds once any broker accepts a connection.
func (s *KafkaSink) Ping(ctx context.Context) error {
	if s.dialer == nil {
		return nil
	}
	var errs []error
	for _, broker := range s.brokers {
		conn, err := s.dialer.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("journal/kafka: no broker reachable: %w", errors.Join(errs...))
}

// Close flushes pending messages and closes the producer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func saslMechanism(cfg SASLConfig) (sasl.Mechanism, error) {
	switch strings.ToUpper(cfg.Mechanism) {
	case "":
		return nil, nil
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("journal/kafka: unsupported SASL mechanism %q", cfg.Mechanism)
	}
}

func compression(name string) kafka.Compression {
	switch strings.ToLower(name) {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Snappy
	}
}
