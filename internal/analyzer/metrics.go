package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the corpus's promauto-registered-at-construction
// convention: callers pass a *prometheus.Registry (or nil for the
// default) and get back ready-to-use collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CircuitState    prometheus.Gauge
}

// NewMetrics registers the analyzer client's collectors under the
// logsentinel_analyzer subsystem.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logsentinel",
			Subsystem: "analyzer",
			Name:      "requests_total",
			Help:      "Total requests to the external analyzer, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logsentinel",
			Subsystem: "analyzer",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to the external analyzer.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		CircuitState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "logsentinel",
			Subsystem: "analyzer",
			Name:      "circuit_breaker_open",
			Help:      "1 if the analyzer circuit breaker is currently open, 0 otherwise.",
		}),
	}
}
