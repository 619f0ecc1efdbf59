// Package occupancy maintains derived realtime occupancy state from the
// attendance event stream: per-room sliding-window counters plus cumulative
// dashboard totals. State is a cache of history; replaying the event log
// rebuilds it.
package occupancy

import (
	"context"
	"sync"
	"time"

	"presence/internal/events"
	id "presence/pkg/domain"
)

// Observer receives a notification per occupancy mutation. The aggregator
// never blocks on an observer; push transports sit behind this interface so
// the core has no transport dependency.
type Observer interface {
	OccupancyChanged(room RoomOccupancySnapshot, totals DashboardTotals)
}

// windows evaluated lazily at query and mutation time, never by timer.
const (
	shortWindow = 15 * time.Minute
	longWindow  = time.Hour
)

// roomState is one room's counters. Guarded by its own mutex: event
// application is serialized per room, parallel across rooms.
type roomState struct {
	mu        sync.Mutex
	occupancy int
	// present tracks whose check-in this aggregator has seen, so a
	// check-out for an untracked person is a no-op correction rather than
	// a decrement below zero.
	present   map[id.PersonID]struct{}
	checkins  []time.Time
	visitors  map[id.PersonID]time.Time
	lastEvent time.Time
}

// Aggregator consumes ordered per-room events and answers snapshot queries.
// Callers are responsible for event-ID deduplication; application here is
// not idempotent.
type Aggregator struct {
	mu    sync.RWMutex
	rooms map[id.RoomID]*roomState

	totalsMu sync.Mutex
	total    int
	active   map[id.PersonID]id.RoomID

	observer Observer
}

// AggregatorOption configures the Aggregator.
type AggregatorOption func(*Aggregator)

// WithObserver registers the push fan-out. Nil means no notifications.
func WithObserver(o Observer) AggregatorOption {
	return func(a *Aggregator) { a.observer = o }
}

// NewAggregator constructs an empty Aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		rooms:  make(map[id.RoomID]*roomState),
		active: make(map[id.PersonID]id.RoomID),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply folds one event into the room's state and the dashboard totals,
// then notifies the observer. The caller must have deduplicated the event.
func (a *Aggregator) Apply(_ context.Context, ev events.DomainEvent) {
	st := a.room(ev.RoomID)

	st.mu.Lock()
	switch ev.Type {
	case events.TypeCheckedIn:
		st.occupancy++
		st.present[ev.PersonID] = struct{}{}
		st.checkins = append(st.checkins, ev.OccurredAt)
		st.visitors[ev.PersonID] = ev.OccurredAt
	case events.TypeCheckedOut:
		if _, tracked := st.present[ev.PersonID]; tracked {
			delete(st.present, ev.PersonID)
			st.occupancy--
		}
	}
	if ev.OccurredAt.After(st.lastEvent) {
		st.lastEvent = ev.OccurredAt
	}
	snapshot := st.snapshotLocked(ev.RoomID, time.Now())
	st.mu.Unlock()

	totals := a.applyTotals(ev)

	if a.observer != nil {
		a.observer.OccupancyChanged(snapshot, totals)
	}
}

func (a *Aggregator) applyTotals(ev events.DomainEvent) DashboardTotals {
	a.totalsMu.Lock()
	defer a.totalsMu.Unlock()
	switch ev.Type {
	case events.TypeCheckedIn:
		a.total++
		a.active[ev.PersonID] = ev.RoomID
	case events.TypeCheckedOut:
		delete(a.active, ev.PersonID)
	}
	return a.totalsLocked()
}

// Snapshot returns the room's current derived counters. Rooms with no
// applied events report zeroes.
func (a *Aggregator) Snapshot(roomID id.RoomID) RoomOccupancySnapshot {
	a.mu.RLock()
	st := a.rooms[roomID]
	a.mu.RUnlock()
	if st == nil {
		return RoomOccupancySnapshot{RoomID: roomID}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshotLocked(roomID, time.Now())
}

// Totals returns the current dashboard totals.
func (a *Aggregator) Totals() DashboardTotals {
	a.totalsMu.Lock()
	defer a.totalsMu.Unlock()
	return a.totalsLocked()
}

func (a *Aggregator) totalsLocked() DashboardTotals {
	rooms := make(map[id.RoomID]struct{}, len(a.active))
	for _, roomID := range a.active {
		rooms[roomID] = struct{}{}
	}
	return DashboardTotals{
		TotalCheckins:  a.total,
		ActiveCheckins: len(a.active),
		RoomsOccupied:  len(rooms),
		StudentsActive: len(a.active),
	}
}

func (a *Aggregator) room(roomID id.RoomID) *roomState {
	a.mu.RLock()
	st := a.rooms[roomID]
	a.mu.RUnlock()
	if st != nil {
		return st
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if st = a.rooms[roomID]; st != nil {
		return st
	}
	st = &roomState{
		present:  make(map[id.PersonID]struct{}),
		visitors: make(map[id.PersonID]time.Time),
	}
	a.rooms[roomID] = st
	return st
}

// snapshotLocked evaluates the sliding windows relative to now by trimming
// expired entries from the front. Caller holds st.mu.
func (st *roomState) snapshotLocked(roomID id.RoomID, now time.Time) RoomOccupancySnapshot {
	st.trimLocked(now)

	shortCutoff := now.Add(-shortWindow)
	recent := 0
	for i := len(st.checkins) - 1; i >= 0; i-- {
		if !st.checkins[i].After(shortCutoff) {
			break
		}
		recent++
	}

	return RoomOccupancySnapshot{
		RoomID:                 roomID,
		CurrentOccupancy:       st.occupancy,
		CheckinsLast15Min:      recent,
		CheckinsLastHour:       len(st.checkins),
		UniqueVisitorsLastHour: len(st.visitors),
		LastEventTime:          st.lastEvent,
	}
}

// trimLocked discards entries older than the hour window. Caller holds st.mu.
func (st *roomState) trimLocked(now time.Time) {
	cutoff := now.Add(-longWindow)
	i := 0
	for ; i < len(st.checkins); i++ {
		if st.checkins[i].After(cutoff) {
			break
		}
	}
	st.checkins = st.checkins[i:]

	for person, seen := range st.visitors {
		if !seen.After(cutoff) {
			delete(st.visitors, person)
		}
	}
}
