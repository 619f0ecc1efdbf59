// Package realtime fans occupancy updates out to push subscribers. The hub
// implements the aggregator's observer interface, so the aggregation core
// never depends on a transport.
//
// Delivery is fire-and-forget into bounded per-subscriber buffers: a
// subscriber that falls behind is disconnected and must resubscribe, then
// resynchronize through the pull snapshot endpoints. There is no backlog
// replay.
package realtime

import (
	"log/slog"
	"sync"

	"presence/internal/occupancy"
	"presence/internal/realtime/metrics"
	id "presence/pkg/domain"
)

// Update is one fan-out message: the mutated room's snapshot plus the
// dashboard totals as of the same mutation.
type Update struct {
	Room   occupancy.RoomOccupancySnapshot `json:"room"`
	Totals occupancy.DashboardTotals       `json:"totals"`
}

// Subscription is one subscriber's feed. Updates closes when the subscriber
// cancels or is dropped for falling behind; a receiver observing the close
// must reconnect and resync from a snapshot.
type Subscription struct {
	updates chan Update

	hub    *Hub
	roomID id.RoomID // zero for the dashboard feed
	once   sync.Once
}

// Updates is the receive side of the feed.
func (s *Subscription) Updates() <-chan Update { return s.updates }

// Cancel detaches the subscription and releases its queue.
func (s *Subscription) Cancel() {
	s.hub.remove(s)
}

// Hub is the fan-out stage. Safe for concurrent use.
type Hub struct {
	mu        sync.Mutex
	rooms     map[id.RoomID]map[*Subscription]struct{}
	dashboard map[*Subscription]struct{}

	buffer  int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Hub.
type Option func(*Hub)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a Hub with the given per-subscriber buffer size.
func NewHub(buffer int, opts ...Option) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	h := &Hub{
		rooms:     make(map[id.RoomID]map[*Subscription]struct{}),
		dashboard: make(map[*Subscription]struct{}),
		buffer:    buffer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SubscribeRoom attaches a subscriber to one room's feed.
func (h *Hub) SubscribeRoom(roomID id.RoomID) *Subscription {
	sub := &Subscription{updates: make(chan Update, h.buffer), hub: h, roomID: roomID}
	h.mu.Lock()
	set := h.rooms[roomID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.rooms[roomID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.AddSubscriber()
	return sub
}

// SubscribeDashboard attaches a subscriber to the unfiltered feed.
func (h *Hub) SubscribeDashboard() *Subscription {
	sub := &Subscription{updates: make(chan Update, h.buffer), hub: h}
	h.mu.Lock()
	h.dashboard[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.AddSubscriber()
	return sub
}

// OccupancyChanged implements occupancy.Observer. Never blocks: a full
// subscriber buffer drops that subscriber, not the update for the others.
func (h *Hub) OccupancyChanged(room occupancy.RoomOccupancySnapshot, totals occupancy.DashboardTotals) {
	update := Update{Room: room, Totals: totals}

	h.mu.Lock()
	targets := make([]*Subscription, 0, len(h.rooms[room.RoomID])+len(h.dashboard))
	for sub := range h.rooms[room.RoomID] {
		targets = append(targets, sub)
	}
	for sub := range h.dashboard {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.updates <- update:
			h.metrics.IncPublished()
		default:
			h.drop(sub)
		}
	}
}

// drop disconnects a subscriber that fell behind.
func (h *Hub) drop(sub *Subscription) {
	if h.remove(sub) {
		h.metrics.IncDropped()
		h.logger.Warn("realtime subscriber dropped, buffer full",
			"room_id", sub.roomID,
		)
	}
}

// remove detaches sub and closes its feed. Reports whether the subscription
// was still attached.
func (h *Hub) remove(sub *Subscription) bool {
	h.mu.Lock()
	var attached bool
	if sub.roomID.IsZero() {
		_, attached = h.dashboard[sub]
		delete(h.dashboard, sub)
	} else if set := h.rooms[sub.roomID]; set != nil {
		_, attached = set[sub]
		delete(set, sub)
		if len(set) == 0 {
			delete(h.rooms, sub.roomID)
		}
	}
	h.mu.Unlock()

	if attached {
		sub.once.Do(func() { close(sub.updates) })
		h.metrics.RemoveSubscriber()
	}
	return attached
}
