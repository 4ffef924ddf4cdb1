package ccnpoison

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "ccnpoison"

// trial outcomes as reported in the trials_total counter
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics counts harness activity for export to prometheus
type Metrics struct {
	trials *prometheus.CounterVec
	events *prometheus.CounterVec
	points prometheus.Counter
}

// CreateMetrics is a constructor.  The counters are registered with reg when it is not nil.
func CreateMetrics(reg prometheus.Registerer) *Metrics {
	m := new(Metrics)
	m.trials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "trials_total",
		Help:      "Trials run, by outcome.",
	}, []string{"outcome"})
	m.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_total",
		Help:      "Events observed during trials, by kind.",
	}, []string{"kind"})
	m.points = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sweep_points_total",
		Help:      "Sweep points whose trials have all been run.",
	})

	if reg != nil {
		reg.MustRegister(m.trials, m.events, m.points)
	}
	return m
}

// TrialDone counts one trial with the given outcome
func (m *Metrics) TrialDone(outcome string) {
	if m == nil {
		return
	}
	m.trials.WithLabelValues(outcome).Inc()
}

// PointDone counts one finished sweep point
func (m *Metrics) PointDone() {
	if m == nil {
		return
	}
	m.points.Inc()
}

// ObserveEvent has the signature of an EventHandler
func (m *Metrics) ObserveEvent(ev Event) {
	m.events.WithLabelValues(ev.Kind.String()).Inc()
}
