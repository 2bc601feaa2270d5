// Package metrics provides Prometheus metrics for stream-comb.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "streamcomb"

var (
	// FetchTotal counts upstream fetches by source kind and outcome.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Total number of upstream fetches",
		},
		[]string{"kind", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// ItemsExtracted counts normalized items by source kind and detected payload format.
	ItemsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_extracted_total",
			Help:      "Total number of items produced by source adapters",
		},
		[]string{"kind", "format"},
	)

	SkippedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_records_total",
			Help:      "Upstream records dropped by schema validation",
		},
		[]string{"kind"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result",
		},
		[]string{"result"},
	)

	// AggregationsTotal counts served aggregation requests per handler.
	AggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      "Total number of aggregation requests",
		},
		[]string{"handler", "status"},
	)

	AggregatedItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregated_items",
			Help:      "Distribution of items returned per aggregation",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250},
		},
		[]string{"handler"},
	)
)

// RecordFetch records one upstream fetch.
func RecordFetch(kind, status, format string, items int, duration float64) {
	FetchTotal.WithLabelValues(kind, status).Inc()
	FetchDuration.WithLabelValues(kind).Observe(duration)
	if items > 0 {
		ItemsExtracted.WithLabelValues(kind, format).Add(float64(items))
	}
}

func RecordSkipped(kind string, n int) {
	if n > 0 {
		SkippedRecords.WithLabelValues(kind).Add(float64(n))
	}
}

func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

// RecordAggregation records one served aggregation.
func RecordAggregation(handler, status string, items int) {
	AggregationsTotal.WithLabelValues(handler, status).Inc()
	AggregatedItems.WithLabelValues(handler).Observe(float64(items))
}
