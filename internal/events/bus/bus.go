// Package bus is the in-process event transport used when no broker is
// configured. It mirrors the stream's contract: at-least-once delivery and
// ordering only within a room's partition, so the aggregator behaves
// identically against either transport.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"presence/internal/events"
	id "presence/pkg/domain"
)

// Delivery retry pacing. Retries continue until the handler accepts the
// event or the bus is closed.
const (
	initialBackoff = 25 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Handler consumes delivered events. Same obligations as the Kafka handler:
// idempotent, and malformed input must not halt consumption.
type Handler interface {
	HandleEvent(ctx context.Context, ev events.DomainEvent) error
}

// Bus fans deliveries out to one handler through per-room channels, each
// drained by a single goroutine, giving per-room ordering with cross-room
// parallelism.
type Bus struct {
	mu      sync.Mutex
	lanes   map[id.RoomID]chan events.DomainEvent
	handler Handler
	logger  *slog.Logger
	buffer  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a bus delivering to handler.
func New(handler Handler, logger *slog.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		lanes:   make(map[id.RoomID]chan events.DomainEvent),
		handler: handler,
		logger:  logger,
		buffer:  64,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Produce enqueues an already-encoded record, matching the relay's Producer
// interface so the outbox path is identical under both transports.
func (b *Bus) Produce(ctx context.Context, _ string, value []byte) error {
	ev, err := events.Decode(value)
	if err != nil {
		// Mirror the stream consumer: log and drop, never stall.
		b.logger.ErrorContext(ctx, "bus received malformed event", "error", err)
		return nil
	}
	b.Publish(ev)
	return nil
}

// Publish enqueues one event for delivery. Blocks when the room's lane is
// full rather than dropping: the bus is durable only as far as the outbox,
// and the outbox retries on failure, never on backpressure.
func (b *Bus) Publish(ev events.DomainEvent) {
	b.lane(ev.RoomID) <- ev
}

func (b *Bus) lane(roomID id.RoomID) chan events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	lane, ok := b.lanes[roomID]
	if ok {
		return lane
	}
	lane = make(chan events.DomainEvent, b.buffer)
	b.lanes[roomID] = lane
	b.wg.Add(1)
	go b.drain(lane)
	return lane
}

func (b *Bus) drain(lane chan events.DomainEvent) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ev := <-lane:
			b.deliver(ev)
		}
	}
}

// deliver retries the handler until it accepts the event or the bus shuts
// down. Produce already acknowledged the record to the relay, which marked
// the outbox entry published, so dropping here would lose the event. The
// retry blocks the lane, preserving per-room order.
func (b *Bus) deliver(ev events.DomainEvent) {
	backoff := initialBackoff
	for {
		err := b.handler.HandleEvent(b.ctx, ev)
		if err == nil {
			return
		}
		b.logger.Error("event handler failed, will retry",
			"event_id", ev.ID,
			"room_id", ev.RoomID,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-b.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// Close stops all lanes. Buffered and mid-retry events are dropped; the
// in-process transport does not survive shutdown.
func (b *Bus) Close() {
	b.cancel()
	b.wg.Wait()
}
