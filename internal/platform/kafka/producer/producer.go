// Package producer wraps the franz-go client for publishing attendance
// events. Records are keyed by room so ordering holds within a room's
// partition, which is the only ordering the aggregation side relies on.
package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"presence/internal/platform/config"
)

// Producer publishes records to the attendance topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the attendance topic exists.
func New(ctx context.Context, cfg config.KafkaConfig) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, cfg); err != nil {
		client.Close()
		return nil, err
	}

	return &Producer{client: client, topic: cfg.Topic}, nil
}

// ensureTopic creates the attendance topic when it does not exist yet.
// Partition count bounds per-room ordering domains; records are keyed by
// room, so all events for one room land on one partition.
func ensureTopic(ctx context.Context, client *kgo.Client, cfg config.KafkaConfig) error {
	adm := kadm.NewClient(client)
	_, err := adm.CreateTopic(ctx, int32(cfg.Partitions), 1, nil, cfg.Topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", cfg.Topic, err)
	}
	return nil
}

// Produce synchronously publishes one record keyed by key. The caller (the
// outbox relay) marks the entry published only after this returns nil, which
// preserves at-least-once delivery.
func (p *Producer) Produce(ctx context.Context, key string, value []byte) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and releases the underlying client.
func (p *Producer) Close() {
	p.client.Close()
}
