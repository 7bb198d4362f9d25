package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/fedq/internal/ir"
)

// Metrics instruments delegated invocations. All series are labelled by
// service IRI.
type Metrics struct {
	invocations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	rows        *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	inflight    prometheus.Gauge
}

// NewMetrics registers the engine metrics with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		invocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fedq",
			Name:      "service_invocations_total",
			Help:      "Total number of delegated service invocations.",
		}, []string{"service"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fedq",
			Name:      "service_invocation_failures_total",
			Help:      "Total number of failed delegated service invocations.",
		}, []string{"service"}),
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fedq",
			Name:      "service_rows_total",
			Help:      "Total number of rows received from delegated services.",
		}, []string{"service"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fedq",
			Name:      "service_invocation_duration_seconds",
			Help:      "Time from issuing an invocation to the end of its stream.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "fedq",
			Name:      "service_streams_open",
			Help:      "Number of service streams currently open.",
		}),
	}
}

func (m *Metrics) invoked(ref ir.IRI) {
	m.invocations.WithLabelValues(string(ref)).Inc()
	m.inflight.Inc()
}

func (m *Metrics) failed(ref ir.IRI) {
	m.failures.WithLabelValues(string(ref)).Inc()
}

func (m *Metrics) row(ref ir.IRI) {
	m.rows.WithLabelValues(string(ref)).Inc()
}

// released records the end of an invocation that was counted by invoked.
func (m *Metrics) released(ref ir.IRI, d time.Duration) {
	m.inflight.Dec()
	m.latency.WithLabelValues(string(ref)).Observe(d.Seconds())
}
