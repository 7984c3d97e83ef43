package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tenqlab/filingqa/internal/ports"
)

// PrometheusCollector implements ports.MetricsCollector on the global
// Prometheus registry. Construct it once per process; promauto panics on
// duplicate registration.
type PrometheusCollector struct {
	latency  *prometheus.HistogramVec
	counters *prometheus.CounterVec
}

var _ ports.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers and returns the pipeline's metrics.
func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filingqa_operation_duration_seconds",
				Help:    "Latency of pipeline operations, including LLM and embedding calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "model", "status"},
		),
		counters: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filingqa_events_total",
				Help: "Counts of pipeline events such as requests and token usage.",
			},
			[]string{"metric", "model", "status"},
		),
	}
}

// RecordLatency implements ports.MetricsCollector.
func (pc *PrometheusCollector) RecordLatency(operation string, d time.Duration, labels map[string]string) {
	pc.latency.WithLabelValues(operation, labels["model"], labels["status"]).Observe(d.Seconds())
}

// RecordCounter implements ports.MetricsCollector.
func (pc *PrometheusCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	pc.counters.WithLabelValues(metric, labels["model"], labels["status"]).Add(value)
}
