package forward

import (
	"context"
	"encoding/json"
	"fmt"

	"confd/internal/types"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPForwarder publishes audit entries to an AMQP exchange
type AMQPForwarder struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewAMQPForwarder creates an AMQP forwarder and declares the exchange
func NewAMQPForwarder(cfg *AMQPConfig) (*AMQPForwarder, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp connection error: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel error: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "confd.audit"
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare error: %w", err)
	}

	routingKey := cfg.RoutingKey
	if routingKey == "" {
		routingKey = "audit.entry"
	}

	return &AMQPForwarder{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// Forward publishes one entry
func (f *AMQPForwarder) Forward(ctx context.Context, entry *types.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	return f.channel.PublishWithContext(ctx, f.exchange, f.routingKey, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    entry.Timestamp,
			Body:         payload,
		})
}

// Name returns the forwarder name
func (f *AMQPForwarder) Name() string {
	return "amqp"
}

// Close closes the channel and connection
func (f *AMQPForwarder) Close() error {
	if err := f.channel.Close(); err != nil {
		_ = f.conn.Close()
		return err
	}
	return f.conn.Close()
}
