package access

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts access decisions by policy, outcome and reason.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics registers the decision counter with reg. A nil reg leaves the
// counter unregistered, which tests use to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brokerauth",
			Name:      "access_decisions_total",
			Help:      "Access policy decisions by policy, outcome and reason.",
		}, []string{"policy", "outcome", "reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions)
	}
	return m
}

func (m *Metrics) observe(policy, outcome string, reason Reason) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(policy, outcome, string(reason)).Inc()
}

// Decisions exposes the underlying counter for tests.
func (m *Metrics) Decisions() *prometheus.CounterVec {
	return m.decisions
}
