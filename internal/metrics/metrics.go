// Package metrics holds the Prometheus collectors for the search service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service collectors. A nil *Metrics is a no-op.
type Metrics struct {
	lookups         *prometheus.CounterVec
	lookupDuration  prometheus.Histogram
	historyFailures *prometheus.CounterVec
	sessions        prometheus.Gauge
	cache           *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_lookups_total",
			Help: "Catalog lookups by outcome.",
		}, []string{"outcome"}),
		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_lookup_duration_seconds",
			Help:    "Duration of applied catalog lookups.",
			Buckets: prometheus.DefBuckets,
		}),
		historyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_history_failures_total",
			Help: "Failed history store operations by op.",
		}, []string{"op"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "search_sessions_active",
			Help: "Open search sessions.",
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_catalog_cache_total",
			Help: "Catalog cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.lookups, m.lookupDuration, m.historyFailures, m.sessions, m.cache)
	return m
}

// ObserveLookup counts a lookup outcome. Cancelled lookups carry no duration.
func (m *Metrics) ObserveLookup(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.lookupDuration.Observe(d.Seconds())
	}
}

// HistoryFailure counts a failed history operation.
func (m *Metrics) HistoryFailure(op string) {
	if m == nil {
		return
	}
	m.historyFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// CacheResult counts a catalog cache hit or miss.
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}
