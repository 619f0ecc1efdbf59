// Package projector is the consume side of the event pipeline: it decodes
// stream records, skips redeliveries through the dedup set, and folds each
// event into the timeline rollups and the occupancy aggregator exactly
// once. It satisfies both the stream consumer's handler and the in-process
// bus handler, so deployment mode never changes projection semantics.
package projector

import (
	"context"
	"log/slog"
	"time"

	"presence/internal/events"
	"presence/internal/occupancy"
	"presence/internal/occupancy/dedup"
	"presence/internal/occupancy/metrics"
	"presence/internal/platform/kafka/consumer"
	"presence/internal/timeline"
)

// dedupTTL must exceed the stream's redelivery horizon: a duplicate older
// than this window would be applied twice.
const dedupTTL = 48 * time.Hour

// Projector folds delivered events into derived state.
type Projector struct {
	aggregator *occupancy.Aggregator
	timeline   timeline.Store
	dedup      dedup.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures the Projector.
type Option func(*Projector)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Projector) { p.metrics = m }
}

// New constructs a Projector.
func New(aggregator *occupancy.Aggregator, tl timeline.Store, dd dedup.Store, logger *slog.Logger, opts ...Option) *Projector {
	p := &Projector{
		aggregator: aggregator,
		timeline:   tl,
		dedup:      dd,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle implements the stream consumer handler. Malformed records are
// logged and committed; they would fail identically on every redelivery.
func (p *Projector) Handle(ctx context.Context, msg *consumer.Message) error {
	ev, err := events.Decode(msg.Value)
	if err != nil {
		p.metrics.IncMalformed()
		p.logger.ErrorContext(ctx, "malformed event record skipped",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err.Error(),
		)
		return nil
	}
	return p.HandleEvent(ctx, ev)
}

// HandleEvent implements the bus handler. Returning an error leaves the
// record uncommitted for redelivery. The dedup mark is placed only after
// the event is fully applied: a crash in between redelivers an applied
// event, which can double-count one rollup increment, but a mark placed
// earlier would skip the redelivery of an event that was never applied.
func (p *Projector) HandleEvent(ctx context.Context, ev events.DomainEvent) error {
	seen, err := p.dedup.Seen(ctx, ev.ID)
	if err != nil {
		return err
	}
	if seen {
		p.metrics.IncDuplicate()
		p.logger.DebugContext(ctx, "duplicate event skipped", "event_id", ev.ID)
		return nil
	}

	if ev.Type == events.TypeCheckedIn {
		if err := p.timeline.Record(ctx, ev.RoomID, ev.PersonID, ev.OccurredAt); err != nil {
			return err
		}
	}

	p.aggregator.Apply(ctx, ev)
	p.metrics.IncApplied(string(ev.Type))
	p.metrics.SetRoomOccupancy(ev.RoomID.String(), p.aggregator.Snapshot(ev.RoomID).CurrentOccupancy)

	if err := p.dedup.Mark(ctx, ev.ID, dedupTTL); err != nil {
		// The event is applied; returning the error would force the exact
		// double application the mark exists to prevent.
		p.logger.ErrorContext(ctx, "dedup mark failed", "event_id", ev.ID.String(), "error", err.Error())
	}
	return nil
}
