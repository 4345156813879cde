// Package metrics exposes Prometheus instrumentation for the access
// layer: per-table operation durations and batch-insert row failures.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pharmadb_operation_duration_seconds",
		Help:    "Duration of data-access operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"table", "op"})

	batchInsertFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadb_batch_insert_failures_total",
		Help: "Rows skipped by the batch-insert row-by-row fallback.",
	}, []string{"table"})
)

// Observe records the duration of one operation against a table.
func Observe(table, op string, start time.Time) {
	operationDuration.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
}

// BatchInsertFailure counts one skipped row during batch insertion.
func BatchInsertFailure(table string) {
	batchInsertFailures.WithLabelValues(table).Inc()
}
