package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance state machine.
type Metrics struct {
	// Command outcomes by command and result ("success", or the rejection
	// reason).
	CommandOutcome *prometheus.CounterVec

	// Idempotent replays served without re-executing side effects.
	Replays prometheus.Counter

	// Command handling latency, locks included.
	CommandLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all state machine metrics registered.
func New() *Metrics {
	return &Metrics{
		CommandOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_attendance_commands_total",
			Help: "Total attendance commands by command and outcome",
		}, []string{"command", "outcome"}),

		Replays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_attendance_idempotent_replays_total",
			Help: "Commands answered from the idempotency store",
		}),

		CommandLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "presence_attendance_command_duration_seconds",
			Help:    "Duration of attendance command handling",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"command"}),
	}
}

// IncOutcome records a command outcome.
func (m *Metrics) IncOutcome(command, outcome string) {
	if m != nil {
		m.CommandOutcome.WithLabelValues(command, outcome).Inc()
	}
}

// IncReplay records an idempotent replay.
func (m *Metrics) IncReplay() {
	if m != nil {
		m.Replays.Inc()
	}
}

// ObserveLatency records command handling duration.
func (m *Metrics) ObserveLatency(command string, d time.Duration) {
	if m != nil {
		m.CommandLatency.WithLabelValues(command).Observe(d.Seconds())
	}
}
