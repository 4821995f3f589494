// Package metrics exposes reconciliation counters and timings to Prometheus.
package metrics

import (
	"time"

	"github.com/ha1tch/fieldsync/pkg/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors registered for one service
type Metrics struct {
	rowsWritten   *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
	syncErrors    *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// expose them on the default handler, or a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rowsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldsync",
			Name:      "rows_written_total",
			Help:      "Rows written by reconciliation, by entity kind and operation",
		}, []string{"kind", "op"}),
		syncDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fieldsync",
			Name:      "sync_duration_seconds",
			Help:      "Duration of reconciliation transactions",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
		syncErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldsync",
			Name:      "sync_errors_total",
			Help:      "Reconciliations that failed and rolled back",
		}, []string{"operation"}),
		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldsync",
			Name:      "cache_requests_total",
			Help:      "Read model cache lookups, by query and result",
		}, []string{"query", "result"}),
	}
}

// ObserveSync records one reconciliation. summary is nil when it failed.
func (m *Metrics) ObserveSync(operation string, took time.Duration, summary *reconcile.Summary, err error) {
	m.syncDuration.WithLabelValues(operation).Observe(took.Seconds())
	if err != nil {
		m.syncErrors.WithLabelValues(operation).Inc()
		return
	}
	if summary == nil {
		return
	}
	for _, kind := range summary.Kinds() {
		c := summary.Get(kind)
		m.rowsWritten.WithLabelValues(string(kind), "insert").Add(float64(c.Inserted))
		m.rowsWritten.WithLabelValues(string(kind), "update").Add(float64(c.Updated))
		m.rowsWritten.WithLabelValues(string(kind), "delete").Add(float64(c.Deleted))
	}
}

// CacheHit counts a read served from the cache
func (m *Metrics) CacheHit(query string) {
	m.cacheRequests.WithLabelValues(query, "hit").Inc()
}

// CacheMiss counts a read that went to the store
func (m *Metrics) CacheMiss(query string) {
	m.cacheRequests.WithLabelValues(query, "miss").Inc()
}
