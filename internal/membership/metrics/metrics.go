package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for membership changes.
type Metrics struct {
	Mutations *prometheus.CounterVec

	// Tasks left without an assignee after their membership was removed
	CascadeUnassigned prometheus.Counter
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trellis_membership_mutations_total",
			Help: "Membership mutations by operation",
		}, []string{"op"}),
		CascadeUnassigned: f.NewCounter(prometheus.CounterOpts{
			Name: "trellis_membership_cascade_unassigned_total",
			Help: "Tasks unassigned because their assignee's membership was removed",
		}),
	}
}

func (m *Metrics) IncMutation(op string) {
	if m != nil {
		m.Mutations.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) AddCascadeUnassigned(n int) {
	if m != nil && n > 0 {
		m.CascadeUnassigned.Add(float64(n))
	}
}
