package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the publish side of the event pipeline.
type Metrics struct {
	EventsPublished *prometheus.CounterVec
	PublishFailures prometheus.Counter
	OutboxLag       prometheus.Gauge
}

// New creates a Metrics instance with all pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_events_published_total",
			Help: "Total domain events published to the stream by type",
		}, []string{"type"}),

		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_event_publish_failures_total",
			Help: "Total produce attempts that failed and will be retried",
		}),

		OutboxLag: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "presence_outbox_unpublished_entries",
			Help: "Outbox entries not yet acknowledged by the stream",
		}),
	}
}

// IncEventsPublished records a successfully published event.
func (m *Metrics) IncEventsPublished(eventType string) {
	if m != nil {
		m.EventsPublished.WithLabelValues(eventType).Inc()
	}
}

// IncPublishFailures records a produce failure.
func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

// SetOutboxLag records the current unpublished backlog size.
func (m *Metrics) SetOutboxLag(n int) {
	if m != nil {
		m.OutboxLag.Set(float64(n))
	}
}
