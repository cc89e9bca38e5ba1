// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	QueriesTotal       *prometheus.CounterVec
	QueryDuration      *prometheus.HistogramVec
	ListsScored        prometheus.Counter
	ImpressionsFetched prometheus.Counter
	GroupsSuppressed   prometheus.Counter

	// Storage metrics
	StoreErrors *prometheus.CounterVec

	// Ingest metrics
	EventsLoaded     prometheus.Counter
	CatalogRows      prometheus.Counter
	UserRows         prometheus.Counter
	MalformedRecords *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "ranklab"
	}

	return &Metrics{
		// Engine metrics
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "queries_total",
			Help:      "Total number of engine queries by operation",
		}, []string{"operation"}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "Engine query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ListsScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "lists_scored_total",
			Help:      "Total number of impression lists scored",
		}),
		ImpressionsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "impressions_fetched_total",
			Help:      "Total number of impression rows fetched from storage",
		}),
		GroupsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "groups_suppressed_total",
			Help:      "Total number of dimension groups suppressed below the session minimum",
		}),

		// Storage metrics
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "store_errors_total",
			Help:      "Total number of store operation errors",
		}, []string{"store", "operation"}),

		// Ingest metrics
		EventsLoaded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_loaded_total",
			Help:      "Total number of impression events loaded",
		}),
		CatalogRows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "catalog_rows_total",
			Help:      "Total number of catalog rows loaded",
		}),
		UserRows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "user_rows_total",
			Help:      "Total number of user dimension rows loaded",
		}),
		MalformedRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "malformed_records_total",
			Help:      "Total number of malformed input lines skipped by kind",
		}, []string{"kind"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the shared instance wired into the binaries. Components
// receive it through their Options; constructing a second instance would
// panic on duplicate registration.
var DefaultMetrics = NewMetrics("")
