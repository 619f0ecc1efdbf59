// Package metrics exposes Prometheus collectors for the realtime fan-out.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the realtime fan-out collectors. All methods are nil-safe
// so wiring metrics stays optional.
type Metrics struct {
	SubscribersActive  prometheus.Gauge
	SubscribersDropped prometheus.Counter
	UpdatesPublished   prometheus.Counter
}

// New creates and registers the realtime metrics.
func New() *Metrics {
	return &Metrics{
		SubscribersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "presence_realtime_subscribers_active",
			Help: "Currently connected realtime subscribers.",
		}),
		SubscribersDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_realtime_subscribers_dropped_total",
			Help: "Subscribers disconnected for falling behind.",
		}),
		UpdatesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_realtime_updates_published_total",
			Help: "Occupancy updates fanned out to subscribers.",
		}),
	}
}

// AddSubscriber records a new subscription.
func (m *Metrics) AddSubscriber() {
	if m != nil {
		m.SubscribersActive.Inc()
	}
}

// RemoveSubscriber records a subscription ending, dropped or not.
func (m *Metrics) RemoveSubscriber() {
	if m != nil {
		m.SubscribersActive.Dec()
	}
}

// IncDropped records a slow subscriber being disconnected.
func (m *Metrics) IncDropped() {
	if m != nil {
		m.SubscribersDropped.Inc()
	}
}

// IncPublished records one update delivered to one subscriber.
func (m *Metrics) IncPublished() {
	if m != nil {
		m.UpdatesPublished.Inc()
	}
}
