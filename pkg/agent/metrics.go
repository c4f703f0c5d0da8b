package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks the tool surface. A nil *Metrics is legal and records
// nothing.
type Metrics struct {
	toolCalls     *prometheus.CounterVec
	rateLimited   prometheus.Counter
	queryLatency  prometheus.Histogram
	queries       prometheus.Counter
	noResults     prometheus.Counter
	lowConfidence prometheus.Counter
}

// NewMetrics creates the metric set, registering with reg when it is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfd_agent_tool_calls_total",
			Help: "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfd_agent_rate_limited_total",
			Help: "Tool calls rejected by the rate limiter.",
		}),
		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelfd_agent_query_duration_seconds",
			Help:    "vector.query latency.",
			Buckets: prometheus.DefBuckets,
		}),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfd_agent_queries_total",
			Help: "vector.query invocations.",
		}),
		noResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfd_agent_query_no_results_total",
			Help: "vector.query invocations returning no results.",
		}),
		lowConfidence: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfd_agent_query_low_confidence_total",
			Help: "vector.query invocations flagged low confidence.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.toolCalls, m.rateLimited, m.queryLatency, m.queries, m.noResults, m.lowConfidence)
	}
	return m
}

func (m *Metrics) observeCall(tool, outcome string) {
	if m != nil {
		m.toolCalls.WithLabelValues(tool, outcome).Inc()
	}
}

func (m *Metrics) observeRateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) observeQuery(elapsed time.Duration, resultCount int, lowConfidence bool) {
	if m == nil {
		return
	}
	m.queries.Inc()
	m.queryLatency.Observe(elapsed.Seconds())
	if resultCount == 0 {
		m.noResults.Inc()
	}
	if lowConfidence {
		m.lowConfidence.Inc()
	}
}
