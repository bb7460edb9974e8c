package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts authorization decisions.
type Metrics struct {
	Decisions *prometheus.CounterVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trellis_authz_decisions_total",
			Help: "Authorization decisions by policy and outcome",
		}, []string{"policy", "outcome"}),
	}
}

// IncDecision is a no-op on a nil receiver.
func (m *Metrics) IncDecision(policy, outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(policy, outcome).Inc()
	}
}
