package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes keyed JSON documents.
type Producer struct {
	writer messageWriter
	obs    Observer
	now    func() time.Time
}

// NewProducer validates the options and builds a writer. No broker
// connection is made until the first publish.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	codec, _ := parseCompression(cfg.Compression)

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		balancer = &kafka.Hash{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     balancer,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  codec,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
	return newProducer(w, cfg.Observer), nil
}

func newProducer(w messageWriter, obs Observer) *Producer {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Producer{writer: w, obs: obs, now: time.Now}
}

// Publish encodes value and writes it to topic under key. Byte slices and
// strings are sent as-is; anything else is marshalled to JSON.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value any) error {
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}

	start := p.now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: payload,
		Time:  start,
	})
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.obs.ObserveKafkaPublish(topic, result, len(payload), time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("write %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending batches and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return b, nil
}
