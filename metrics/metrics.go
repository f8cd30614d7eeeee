// Package metrics exposes Prometheus instrumentation for the coordination
// pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mas_coordinator"

// Metrics holds the pipeline collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	decisionsTotal  *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	phaseFailures   *prometheus.CounterVec
	fragmentsTotal  prometheus.Counter
	inFlight        prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Coordinated requests by terminal state",
			},
			[]string{"state"},
		),
		requestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "End to end duration of coordinated requests",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		decisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Routing decisions by selected agent",
			},
			[]string{"agent"},
		),
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of pipeline phases",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		phaseFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_failures_total",
				Help:      "Failed pipeline phases",
			},
			[]string{"phase"},
		),
		fragmentsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_fragments_total",
				Help:      "Content fragments streamed to callers",
			},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Requests currently being coordinated",
			},
		),
	}
}

// RequestStarted marks a request as in flight.
func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// RequestFinished records the terminal state and duration of a request.
func (m *Metrics) RequestFinished(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.requestsTotal.WithLabelValues(state).Inc()
	m.requestDuration.Observe(d.Seconds())
}

// Decision counts a routing decision.
func (m *Metrics) Decision(agent string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(agent).Inc()
}

// Phase records the duration of a phase and counts it as failed when err is
// non-nil.
func (m *Metrics) Phase(phase string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
	if err != nil {
		m.phaseFailures.WithLabelValues(phase).Inc()
	}
}

// Fragment counts one streamed content fragment.
func (m *Metrics) Fragment() {
	if m == nil {
		return
	}
	m.fragmentsTotal.Inc()
}
