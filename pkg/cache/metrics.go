package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides observability for cache operations. Nil-safe at the
// call sites: a cache built without metrics skips collection entirely.
type Metrics interface {
	// RecordHit records a cache hit for a key kind.
	RecordHit(kind string)

	// RecordMiss records a cache miss for a key kind.
	RecordMiss(kind string)

	// RecordInvalidation records a pattern invalidation and how many
	// entries it dropped.
	RecordInvalidation(pattern string, dropped int)

	// RecordEntryCount records the current number of entries.
	RecordEntryCount(count int)
}

// PrometheusMetrics implements Metrics on prometheus collectors.
type PrometheusMetrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	invalidations prometheus.Counter
	dropped       prometheus.Counter
	entries       prometheus.Gauge
}

// NewPrometheusMetrics builds and registers the cache collectors.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfd_cache_hits_total",
			Help: "Cache hits by key kind.",
		}, []string{"kind"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfd_cache_misses_total",
			Help: "Cache misses by key kind.",
		}, []string{"kind"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfd_cache_invalidations_total",
			Help: "Pattern invalidation calls that dropped at least one entry.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfd_cache_invalidated_entries_total",
			Help: "Entries dropped by pattern invalidation.",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shelfd_cache_entries",
			Help: "Current number of cache entries.",
		}),
	}
	reg.MustRegister(m.hits, m.misses, m.invalidations, m.dropped, m.entries)
	return m
}

func (m *PrometheusMetrics) RecordHit(kind string) {
	m.hits.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) RecordMiss(kind string) {
	m.misses.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) RecordInvalidation(pattern string, dropped int) {
	m.invalidations.Inc()
	m.dropped.Add(float64(dropped))
}

func (m *PrometheusMetrics) RecordEntryCount(count int) {
	m.entries.Set(float64(count))
}
