package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for task mutations.
type Metrics struct {
	// Mutations by operation and outcome (ok, error code)
	Mutations *prometheus.CounterVec

	MutationLatency *prometheus.HistogramVec

	// History lines written as a side effect of mutations
	EventsRecorded prometheus.Counter
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trellis_task_mutations_total",
			Help: "Task mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		MutationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trellis_task_mutation_duration_seconds",
			Help:    "Duration of task mutations including their transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
		EventsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "trellis_task_events_recorded_total",
			Help: "Task history events recorded",
		}),
	}
}

func (m *Metrics) ObserveMutation(op, outcome string, d time.Duration) {
	if m != nil {
		m.Mutations.WithLabelValues(op, outcome).Inc()
		m.MutationLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}

func (m *Metrics) AddEvents(n int) {
	if m != nil && n > 0 {
		m.EventsRecorded.Add(float64(n))
	}
}
