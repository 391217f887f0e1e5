package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IntakeMetrics records counters for the order aggregation pipeline.
type IntakeMetrics struct {
	intents      *prometheus.CounterVec
	quantity     prometheus.Counter
	linkOutcomes *prometheus.CounterVec
	transitions  *prometheus.CounterVec
}

// NewIntakeMetrics registers the intake metrics on the provided registerer.
func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	if reg == nil {
		return &IntakeMetrics{}
	}
	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_events_total",
		Help: "Intent events processed, by outcome.",
	}, []string{"outcome"})
	quantity := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "intent_quantity_accumulated_total",
		Help: "Total quantity accumulated across all aggregate orders.",
	})
	linkOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "external_order_link_total",
		Help: "External order linkage attempts, by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "status_transitions_total",
		Help: "Status transitions recorded, by status type.",
	}, []string{"status_type"})
	reg.MustRegister(intents, quantity, linkOutcomes, transitions)
	return &IntakeMetrics{
		intents:      intents,
		quantity:     quantity,
		linkOutcomes: linkOutcomes,
		transitions:  transitions,
	}
}

// ObserveIntent counts one processed intent event.
func (m *IntakeMetrics) ObserveIntent(outcome string, delta int64) {
	if m == nil || m.intents == nil {
		return
	}
	m.intents.WithLabelValues(outcome).Inc()
	if outcome == "accepted" && delta > 0 {
		m.quantity.Add(float64(delta))
	}
}

// ObserveLink counts one linkage attempt.
func (m *IntakeMetrics) ObserveLink(linked bool) {
	if m == nil || m.linkOutcomes == nil {
		return
	}
	outcome := "linked"
	if !linked {
		outcome = "conflict"
	}
	m.linkOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveTransition counts one recorded status transition.
func (m *IntakeMetrics) ObserveTransition(statusType string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(statusType).Inc()
}
