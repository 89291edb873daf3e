package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"GranStocks/internal/domain/models"
	domrepo "GranStocks/internal/domain/repository"
	pkgkafka "GranStocks/pkg/kafka"
)

// messageProducer is the part of the Kafka producer the publisher needs.
type messageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
	Close() error
}

// KafkaEventPublisher publishes domain events to a single topic keyed by
// event key so per-universe events stay ordered.
type KafkaEventPublisher struct {
	producer messageProducer
	topic    string
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev models.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Key), b); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}
