package publisher

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors the status publisher exposes at
// /metrics: merge decisions, audit-log depth, and anchor lag, per SPEC_FULL.md.
type Metrics struct {
	decisions  *prometheus.CounterVec
	auditLen   prometheus.Gauge
	anchorLag  prometheus.Gauge
	publishDur *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// ModuleMetrics returns the lazily-initialised gatekeeper metrics registry.
func ModuleMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gatekeeper",
				Subsystem: "publisher",
				Name:      "decisions_total",
				Help:      "Count of governance evaluations segmented by combined outcome.",
			}, []string{"repository", "outcome"}),
			auditLen: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "gatekeeper",
				Subsystem: "audit",
				Name:      "log_entries",
				Help:      "Current number of entries in the hash-chained audit log.",
			}),
			anchorLag: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "gatekeeper",
				Subsystem: "anchor",
				Name:      "lag_seconds",
				Help:      "Seconds since the most recently persisted Merkle anchor's window closed.",
			}),
			publishDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "gatekeeper",
				Subsystem: "publisher",
				Name:      "publish_duration_seconds",
				Help:      "Latency distribution for rendering and publishing a status outcome.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"repository"}),
		}
		prometheus.MustRegister(metrics.decisions, metrics.auditLen, metrics.anchorLag, metrics.publishDur)
	})
	return metrics
}

// RecordDecision increments the combined-outcome counter for a repository.
func (m *Metrics) RecordDecision(repository, outcome string) {
	if m == nil {
		return
	}
	if repository == "" {
		repository = "unknown"
	}
	m.decisions.WithLabelValues(repository, outcome).Inc()
}

// SetAuditLen records the current audit-log entry count.
func (m *Metrics) SetAuditLen(n int) {
	if m == nil {
		return
	}
	m.auditLen.Set(float64(n))
}

// SetAnchorLagSeconds records how stale the latest Merkle anchor is.
func (m *Metrics) SetAnchorLagSeconds(seconds float64) {
	if m == nil {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	m.anchorLag.Set(seconds)
}

// ObservePublishDuration records how long one Render+publish round trip took.
func (m *Metrics) ObservePublishDuration(repository string, seconds float64) {
	if m == nil {
		return
	}
	if repository == "" {
		repository = "unknown"
	}
	m.publishDur.WithLabelValues(repository).Observe(seconds)
}
