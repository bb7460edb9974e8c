package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts list items left out of rendered views.
type Metrics struct {
	Dropped *prometheus.CounterVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trellis_view_dropped_items_total",
			Help: "List items omitted from views because a reference did not resolve",
		}, []string{"kind", "reason"}),
	}
}

func (m *Metrics) IncDropped(kind, reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(kind, reason).Inc()
	}
}
