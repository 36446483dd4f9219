// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsFetched counts rows returned by the backing store per collection.
	RowsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoquery_rows_fetched_total",
		Help: "Rows fetched from the backing store",
	}, []string{"collection"})

	// RowsSkipped counts rows dropped because their geometry failed to parse.
	RowsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoquery_rows_skipped_total",
		Help: "Rows skipped due to malformed geometry",
	}, []string{"collection"})

	// QueryDuration observes end-to-end query execution time.
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geoquery_query_duration_seconds",
		Help:    "Benchmark query execution time",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"query"})
)
