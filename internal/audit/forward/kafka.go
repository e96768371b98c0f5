package forward

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"confd/internal/types"

	"github.com/segmentio/kafka-go"
)

// KafkaForwarder publishes audit entries to a Kafka topic, keyed by
// sequence number
type KafkaForwarder struct {
	writer *kafka.Writer
}

// NewKafkaForwarder creates a Kafka forwarder
func NewKafkaForwarder(cfg *KafkaConfig) (*KafkaForwarder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	timeout := cfg.WriteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: timeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaForwarder{writer: writer}, nil
}

// Forward publishes one entry
func (f *KafkaForwarder) Forward(ctx context.Context, entry *types.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	return f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(entry.Sequence, 10)),
		Value: payload,
		Time:  entry.Timestamp,
	})
}

// Name returns the forwarder name
func (f *KafkaForwarder) Name() string {
	return "kafka"
}

// Close closes the writer
func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
