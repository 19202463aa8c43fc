// Package metrics provides Prometheus metrics for lar.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lar"

var (
	// CacheLookupsTotal counts handle cache lookups by result (hit, miss).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_cache_lookups_total",
			Help:      "Archive handle cache lookups by result",
		},
		[]string{"result"},
	)

	// CacheEvictionsTotal counts handles dropped for capacity.
	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_cache_evictions_total",
			Help:      "Archive handles evicted from the cache",
		},
	)

	// OpenHandles tracks archive handles not yet closed.
	OpenHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_open_handles",
			Help:      "Archive handles currently open",
		},
	)

	// OpensTotal counts cold opens by status.
	OpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_opens_total",
			Help:      "Archive cold opens by status",
		},
		[]string{"status"},
	)

	// OpenDuration measures cold open latency.
	OpenDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "archive_open_duration_seconds",
			Help:      "Duration of archive cold opens in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ExtractionsTotal counts extracted entries by content kind.
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Entries extracted by content kind",
		},
		[]string{"kind"},
	)

	// ExtractionDuration measures extraction latency by content kind.
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Duration of content extraction in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"kind"},
	)

	// RandomEntriesTotal counts entries returned by random sampling.
	RandomEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "random_entries_total",
			Help:      "Entries returned by random sampling",
		},
	)

	// SearchRequestsTotal counts search requests by status.
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by status",
		},
		[]string{"status"},
	)

	// RequestsTotal counts MCP method calls by method and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mcp_requests_total",
			Help:      "MCP requests by method and status",
		},
		[]string{"method", "status"},
	)
)

// RecordCacheLookup records a handle cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordEviction records one capacity eviction.
func RecordEviction() {
	CacheEvictionsTotal.Inc()
}

// RecordOpen records a cold open attempt.
func RecordOpen(status string, duration float64) {
	OpensTotal.WithLabelValues(status).Inc()
	OpenDuration.Observe(duration)
}

// HandleOpened and HandleClosed track the open handle gauge.
func HandleOpened() { OpenHandles.Inc() }
func HandleClosed() { OpenHandles.Dec() }

// RecordExtraction records one pipeline run.
func RecordExtraction(kind string, duration float64) {
	ExtractionsTotal.WithLabelValues(kind).Inc()
	ExtractionDuration.WithLabelValues(kind).Observe(duration)
}

// RecordRandomEntries records sampled entry count.
func RecordRandomEntries(n int) {
	RandomEntriesTotal.Add(float64(n))
}

// RecordSearch records a search request.
func RecordSearch(status string) {
	SearchRequestsTotal.WithLabelValues(status).Inc()
}

// RecordRequest records an MCP request.
func RecordRequest(method, status string) {
	RequestsTotal.WithLabelValues(method, status).Inc()
}
