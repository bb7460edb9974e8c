package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the task event feed relay.
type Metrics struct {
	FeedPublished prometheus.Counter
	FeedFailures  prometheus.Counter
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FeedPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "trellis_task_events_published_total",
			Help: "Task events delivered to the event feed",
		}),
		FeedFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "trellis_task_events_relay_failures_total",
			Help: "Relay batches that failed and were left pending",
		}),
	}
}

func (m *Metrics) AddFeedPublished(n int) {
	if m == nil || n == 0 {
		return
	}
	m.FeedPublished.Add(float64(n))
}

func (m *Metrics) IncFeedFailures() {
	if m == nil {
		return
	}
	m.FeedFailures.Inc()
}
