package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"vendor-wallet-ledger/config"
	"vendor-wallet-ledger/internal/core/domain"

	"github.com/segmentio/kafka-go"
)

// Publisher implements ports.EventPublisher on a Kafka topic. Messages are
// keyed by vendor ID so per-vendor ordering survives partitioning.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Kafka-backed balance-changed publisher.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// PublishBalanceChanged emits one balance-changed fact.
func (p *Publisher) PublishBalanceChanged(ctx context.Context, ev domain.BalanceChanged) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal balance-changed event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.VendorID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("write balance-changed message: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
