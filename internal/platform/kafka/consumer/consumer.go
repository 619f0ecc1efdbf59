// Package consumer wraps franz-go group consumption behind a small handler
// interface so the aggregation side stays independent of the broker client.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"presence/internal/platform/config"
)

// Message is one consumed record, decoupled from the kgo types.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one message. Returning an error stops the consumer
// with the failed poll's offsets uncommitted; after restart the group
// resumes from the last commit and redelivers, so handlers must be
// idempotent. Malformed messages should be logged and return nil so one bad
// record does not stall the partition.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer runs a group consumer loop over the attendance topic.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New joins the consumer group for the attendance topic.
func New(cfg config.KafkaConfig, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumerGroup(cfg.Group),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until ctx is cancelled or a handler fails. Offsets are
// committed only after every record in a poll has been handled, giving
// at-least-once delivery.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()

	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if fetches.IsClientClosed() {
			return errors.New("kafka client closed")
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		if err := c.handleFetches(ctx, fetches); err != nil {
			// Stop with the failed poll uncommitted. Polling on would
			// advance the fetch position past the failed records, and the
			// next commit would seal them as consumed without application.
			// The restarted group resumes from the last commit instead.
			c.logger.ErrorContext(ctx, "handler failed, stopping consumer", "error", err)
			return fmt.Errorf("handle records: %w", err)
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.ErrorContext(ctx, "commit offsets failed", "error", err)
		}
	}
}

// handleFetches hands every fetched record to the handler in order,
// stopping at the first failure.
func (c *Consumer) handleFetches(ctx context.Context, fetches kgo.Fetches) error {
	var handleErr error
	fetches.EachRecord(func(record *kgo.Record) {
		if handleErr != nil {
			return
		}
		msg := &Message{
			Topic:     record.Topic,
			Partition: record.Partition,
			Offset:    record.Offset,
			Key:       record.Key,
			Value:     record.Value,
			Timestamp: record.Timestamp,
		}
		handleErr = c.handler.Handle(ctx, msg)
	})
	return handleErr
}
