// Package relay drains the outbox into the event stream. Publishing is
// decoupled from command handling: a publish failure never fails the command
// that produced the event, it only delays delivery.
package relay

import (
	"context"
	"log/slog"
	"time"

	"presence/internal/events/metrics"
	"presence/internal/events/outbox"
)

// Producer publishes one record keyed for per-room ordering.
type Producer interface {
	Produce(ctx context.Context, key string, value []byte) error
}

// Relay polls the outbox and publishes unpublished entries in creation
// order. Entries are marked published only after the producer acknowledged
// them, so a crash between produce and mark yields a duplicate delivery, not
// a loss; the aggregator's per-event-id dedup absorbs it.
type Relay struct {
	store    outbox.Store
	producer Producer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	batch    int
}

// Option configures the Relay.
type Option func(*Relay)

// WithBatchSize bounds how many entries one poll drains.
func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batch = n }
}

// WithMetrics sets the pipeline metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// New constructs a relay polling at the given interval.
func New(store outbox.Store, producer Producer, interval time.Duration, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		store:    store,
		producer: producer,
		logger:   logger,
		interval: interval,
		batch:    100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain publishes one batch. On a produce failure it stops the batch and
// leaves the remaining entries for the next tick, preserving creation order
// per room.
func (r *Relay) drain(ctx context.Context) {
	entries, err := r.store.ListUnpublished(ctx, r.batch)
	if err != nil {
		r.logger.ErrorContext(ctx, "list unpublished outbox entries failed", "error", err)
		return
	}
	r.metrics.SetOutboxLag(len(entries))
	for _, entry := range entries {
		if err := r.producer.Produce(ctx, entry.RoomID.String(), entry.Payload); err != nil {
			r.logger.ErrorContext(ctx, "publish outbox entry failed, will retry",
				"entry_id", entry.ID,
				"room_id", entry.RoomID,
				"error", err,
			)
			r.metrics.IncPublishFailures()
			return
		}
		if err := r.store.MarkPublished(ctx, entry.ID, time.Now()); err != nil {
			// The record is already on the stream; the next tick republishes
			// and the consumer dedups.
			r.logger.ErrorContext(ctx, "mark outbox entry published failed",
				"entry_id", entry.ID,
				"error", err,
			)
			return
		}
		r.metrics.IncEventsPublished(string(entry.EventType))
	}
}
