// Package observability exposes the gateway's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for Amri.
// Uses a custom registry, no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Execution metrics.
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec

	// Policy metrics.
	PolicyViolationsTotal *prometheus.CounterVec

	// Log store metrics.
	StoredEntries prometheus.Gauge
	StoredBytes   prometheus.Gauge

	// Retrieval metrics.
	RetrievalsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a MetricsCollector with all metrics
// registered on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amri",
			Subsystem: "exec",
			Name:      "commands_total",
			Help:      "Total command executions.",
		}, []string{"shell", "status"}),

		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amri",
			Subsystem: "exec",
			Name:      "command_duration_seconds",
			Help:      "Command execution duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"shell"}),

		PolicyViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amri",
			Subsystem: "policy",
			Name:      "violations_total",
			Help:      "Total rejected requests by violated rule.",
		}, []string{"shell", "rule"}),

		StoredEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "amri",
			Subsystem: "logstore",
			Name:      "entries",
			Help:      "Current number of stored log entries.",
		}),

		StoredBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "amri",
			Subsystem: "logstore",
			Name:      "bytes",
			Help:      "Current total size of stored log entries in bytes.",
		}),

		RetrievalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amri",
			Subsystem: "output",
			Name:      "retrievals_total",
			Help:      "Total output retrievals by mode and status.",
		}, []string{"mode", "status"}),
	}

	reg.MustRegister(
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.PolicyViolationsTotal,
		m.StoredEntries,
		m.StoredBytes,
		m.RetrievalsTotal,
	)
	return m
}
