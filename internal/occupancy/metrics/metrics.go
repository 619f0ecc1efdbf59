// Package metrics exposes Prometheus collectors for the occupancy
// projection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the projection collectors. All methods are nil-safe so
// wiring metrics stays optional.
type Metrics struct {
	EventsApplied     *prometheus.CounterVec
	DuplicatesSkipped prometheus.Counter
	MalformedEvents   prometheus.Counter
	RoomOccupancy     *prometheus.GaugeVec
}

// New creates and registers the occupancy metrics.
func New() *Metrics {
	return &Metrics{
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_occupancy_events_applied_total",
			Help: "Events folded into the occupancy projection.",
		}, []string{"type"}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_occupancy_duplicates_skipped_total",
			Help: "Redelivered events skipped by the dedup set.",
		}),
		MalformedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_occupancy_malformed_events_total",
			Help: "Records that could not be decoded as domain events.",
		}),
		RoomOccupancy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "presence_occupancy_current",
			Help: "Current occupancy per room as seen by the projection.",
		}, []string{"room"}),
	}
}

// IncApplied records an event folded into the projection.
func (m *Metrics) IncApplied(eventType string) {
	if m != nil {
		m.EventsApplied.WithLabelValues(eventType).Inc()
	}
}

// IncDuplicate records a redelivery skipped by the dedup set.
func (m *Metrics) IncDuplicate() {
	if m != nil {
		m.DuplicatesSkipped.Inc()
	}
}

// IncMalformed records an undecodable record.
func (m *Metrics) IncMalformed() {
	if m != nil {
		m.MalformedEvents.Inc()
	}
}

// SetRoomOccupancy reports the room's occupancy after an application.
func (m *Metrics) SetRoomOccupancy(room string, occupancy int) {
	if m != nil {
		m.RoomOccupancy.WithLabelValues(room).Set(float64(occupancy))
	}
}
