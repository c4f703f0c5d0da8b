package indexer

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes pipeline counters. A nil registerer keeps the
// collectors unregistered, which tests rely on.
type Metrics struct {
	filesIndexed  prometheus.Counter
	chunksIndexed prometheus.Counter
	chunksRemoved prometheus.Counter
	failures      prometheus.Counter
	queueDepth    prometheus.Gauge
}

// NewMetrics builds the collectors and registers them when reg is not
// nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		filesIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfd_index_files_total",
			Help: "Files successfully indexed.",
		}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfd_index_chunks_total",
			Help: "Chunks upserted into the vector store.",
		}),
		chunksRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfd_index_chunks_removed_total",
			Help: "Chunks removed by de-index jobs.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfd_index_failures_total",
			Help: "Indexing jobs that failed and were dropped.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shelfd_index_queue_depth",
			Help: "Jobs waiting in the indexing queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.filesIndexed, m.chunksIndexed, m.chunksRemoved, m.failures, m.queueDepth)
	}
	return m
}
