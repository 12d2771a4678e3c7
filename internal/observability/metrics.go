// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Sync metrics
	ListingsFetched  *prometheus.CounterVec
	ListingsUpserted *prometheus.CounterVec
	ListingsSkipped  *prometheus.CounterVec
	PageErrors       *prometheus.CounterVec
	SyncRunsTotal    *prometheus.CounterVec
	SyncDuration     *prometheus.HistogramVec

	// Price refresh metrics
	PricesUpdated      prometheus.Counter
	PricesUnresolved   prometheus.Counter
	RefreshBatchErrors prometheus.Counter
	RefreshRunsTotal   *prometheus.CounterVec
	RefreshDuration    prometheus.Histogram

	// Upstream metrics
	UpstreamLatency *prometheus.HistogramVec
	UpstreamRetries *prometheus.CounterVec

	// API metrics
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	CacheRequests *prometheus.CounterVec
	StreamClients prometheus.Gauge

	// Store metrics
	StoreDegraded *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSync    *prometheus.GaugeVec
	LastSuccessfulRefresh prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "launchpad_index"
	}

	return &Metrics{
		ListingsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "listings_fetched_total",
			Help:      "Total number of raw listings fetched by source",
		}, []string{"source"}),
		ListingsUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "listings_upserted_total",
			Help:      "Total number of listings merged into the record store by source",
		}, []string{"source"}),
		ListingsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "listings_skipped_total",
			Help:      "Total number of listings skipped by source and reason",
		}, []string{"source", "reason"}),
		PageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "page_errors_total",
			Help:      "Total number of failed upstream page fetches by source",
		}, []string{"source"}),
		SyncRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync runs by source and status",
		}, []string{"source", "status"}),
		SyncDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Sync run duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"source"}),

		PricesUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "prices_updated_total",
			Help:      "Total number of records whose market fields were refreshed",
		}),
		PricesUnresolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "prices_unresolved_total",
			Help:      "Total number of addresses with no quote",
		}),
		RefreshBatchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "batch_errors_total",
			Help:      "Total number of failed quote batches",
		}),
		RefreshRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of price refresh runs by status",
		}, []string{"status"}),
		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Price refresh duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_latency_seconds",
			Help:      "Upstream HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
		UpstreamRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Total number of upstream request retries by host and reason",
		}, []string{"host", "reason"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		CacheRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "cache_requests_total",
			Help:      "Query cache lookups by result",
		}, []string{"result"}),
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "stream_clients",
			Help:      "Number of connected websocket stream clients",
		}),

		StoreDegraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "degraded_operations_total",
			Help:      "Operations that fell back to a non-atomic path",
		}, []string{"operation"}),

		LastSuccessfulSync: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sync_timestamp",
			Help:      "Unix timestamp of last successful sync by source",
		}, []string{"source"}),
		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last successful price refresh",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSyncRun records the outcome of one source sync.
func RecordSyncRun(source string, fetched, upserted, rejected, failed, pageErrors int, duration time.Duration) {
	m := DefaultMetrics
	m.ListingsFetched.WithLabelValues(source).Add(float64(fetched))
	m.ListingsUpserted.WithLabelValues(source).Add(float64(upserted))
	m.ListingsSkipped.WithLabelValues(source, "rejected").Add(float64(rejected))
	m.ListingsSkipped.WithLabelValues(source, "store").Add(float64(failed))
	m.PageErrors.WithLabelValues(source).Add(float64(pageErrors))
	m.SyncDuration.WithLabelValues(source).Observe(duration.Seconds())

	status := "ok"
	if pageErrors > 0 || failed > 0 {
		status = "partial"
	}
	m.SyncRunsTotal.WithLabelValues(source, status).Inc()
	m.LastSuccessfulSync.WithLabelValues(source).Set(float64(time.Now().Unix()))
}

// RecordSyncFailure records a sync that could not start or was cancelled.
func RecordSyncFailure(source string) {
	DefaultMetrics.SyncRunsTotal.WithLabelValues(source, "failed").Inc()
}

// RecordRefreshRun records the outcome of one price refresh.
func RecordRefreshRun(updated, unresolved, failedBatches int, duration time.Duration) {
	m := DefaultMetrics
	m.PricesUpdated.Add(float64(updated))
	m.PricesUnresolved.Add(float64(unresolved))
	m.RefreshBatchErrors.Add(float64(failedBatches))
	m.RefreshDuration.Observe(duration.Seconds())

	status := "ok"
	if failedBatches > 0 {
		status = "partial"
	}
	m.RefreshRunsTotal.WithLabelValues(status).Inc()
	m.LastSuccessfulRefresh.Set(float64(time.Now().Unix()))
}

// RecordRefreshFailure records a refresh that could not run.
func RecordRefreshFailure() {
	DefaultMetrics.RefreshRunsTotal.WithLabelValues("failed").Inc()
}

// RecordUpstreamLatency records one upstream request attempt.
func RecordUpstreamLatency(host string, d time.Duration) {
	DefaultMetrics.UpstreamLatency.WithLabelValues(host).Observe(d.Seconds())
}

// RecordUpstreamRetry records a retried upstream request.
func RecordUpstreamRetry(host, reason string) {
	DefaultMetrics.UpstreamRetries.WithLabelValues(host, reason).Inc()
}

// RecordHTTPRequest records an API request.
func RecordHTTPRequest(method, path, status string, d time.Duration) {
	DefaultMetrics.HTTPRequests.WithLabelValues(method, path, status).Inc()
	DefaultMetrics.HTTPDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordCacheLookup records a query cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheRequests.WithLabelValues(result).Inc()
}

// RecordStoreDegraded records a fallback to a non-atomic store path.
func RecordStoreDegraded(operation string) {
	DefaultMetrics.StoreDegraded.WithLabelValues(operation).Inc()
}

// SetStreamClients updates the websocket client gauge.
func SetStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}
