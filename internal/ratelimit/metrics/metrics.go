package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks   *prometheus.CounterVec
	Rejected *prometheus.CounterVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Checks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trellis_ratelimit_checks_total",
			Help: "Rate limit checks by endpoint class",
		}, []string{"class"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trellis_ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter by endpoint class",
		}, []string{"class"}),
	}
}

func (m *Metrics) IncChecks(class string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(class).Inc()
}

func (m *Metrics) IncRejected(class string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(class).Inc()
}
