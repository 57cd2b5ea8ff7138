// Package metrics exposes the engine's Prometheus instrumentation. All
// methods are nil-safe so callers can run without a registry wired.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	sessionsCreated prometheus.Counter
	sessionsActive  prometheus.Gauge
	stepsTotal      *prometheus.CounterVec
	generationSecs  *prometheus.HistogramVec
	commitFailures  prometheus.Counter
	staleApplies    prometheus.Counter
}

// New registers the collectors on reg and returns the metrics handle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "sessions_created_total",
			Help:      "Practice sessions started.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parley",
			Name:      "sessions_active",
			Help:      "Sessions currently live in this process.",
		}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "steps_total",
			Help:      "Script steps executed, by step kind.",
		}, []string{"kind"}),
		generationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parley",
			Name:      "generation_duration_seconds",
			Help:      "Latency of content generator calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"kind"}),
		commitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "commit_failures_total",
			Help:      "Session snapshot persistence failures.",
		}),
		staleApplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "stale_applies_total",
			Help:      "Generation results rejected because the session advanced.",
		}),
	}
	reg.MustRegister(
		m.sessionsCreated,
		m.sessionsActive,
		m.stepsTotal,
		m.generationSecs,
		m.commitFailures,
		m.staleApplies,
	)
	return m
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) StepExecuted(kind string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveGeneration(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.generationSecs.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) CommitFailed() {
	if m == nil {
		return
	}
	m.commitFailures.Inc()
}

func (m *Metrics) StaleApply() {
	if m == nil {
		return
	}
	m.staleApplies.Inc()
}
