// Package metrics provides Prometheus metrics for the files gateway, the
// tree synchronizer and the reference file store.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vfs_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Gateway (remote backend) metrics
	gatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vfs_gateway_call_duration_seconds",
			Help:    "Remote file store call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	gatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_gateway_calls_total",
			Help: "Total remote file store calls by outcome",
		},
		[]string{"operation", "outcome"},
	)

	contentBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_content_bytes_total",
			Help: "File content bytes moved through the gateway",
		},
		[]string{"direction"},
	)

	// Registry metrics
	tenantsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vfs_registry_tenants",
			Help: "Number of tenant gateways created in this process",
		},
	)

	// Builder metrics
	listingsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_tree_listings_total",
			Help: "Directory listings converted to tree nodes",
		},
		[]string{"result"},
	)

	listingEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vfs_tree_listing_entries",
			Help:    "Entries per directory listing",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// Synchronizer metrics
	syncExpandTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_sync_expand_total",
			Help: "Folder expansions by result",
		},
		[]string{"result"},
	)

	syncRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_sync_refresh_total",
			Help: "Full tree refreshes by result",
		},
		[]string{"result"},
	)

	syncTreeSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vfs_sync_tree_nodes",
			Help: "Number of nodes in the synchronizer's current snapshot",
		},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	// Storage (reference file store) metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vfs_storage_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_storage_operations_total",
			Help: "Total storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGatewayCall records one remote store round trip. outcome is
// "success", "backend_error" or "transport_error".
func RecordGatewayCall(operation, outcome string, duration time.Duration) {
	gatewayCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
	gatewayCallsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordContentBytes records file content read ("down") or written ("up").
func RecordContentBytes(direction string, n int64) {
	contentBytes.WithLabelValues(direction).Add(float64(n))
}

// SetTenantCount sets the number of cached tenant gateways.
func SetTenantCount(n int) {
	tenantsActive.Set(float64(n))
}

// RecordListing records a listing passed through the tree builder.
func RecordListing(entries int, success bool) {
	result := "success"
	if !success {
		result = "malformed"
	}
	listingsBuilt.WithLabelValues(result).Inc()
	if success {
		listingEntries.Observe(float64(entries))
	}
}

// RecordExpand records a folder expansion. result is one of "fetched",
// "noop", "missing", "stale" or "failed".
func RecordExpand(result string) {
	syncExpandTotal.WithLabelValues(result).Inc()
}

// RecordRefresh records a full tree refresh.
func RecordRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	syncRefreshTotal.WithLabelValues(result).Inc()
}

// SetTreeSize sets the node count of the current snapshot.
func SetTreeSize(n int) {
	syncTreeSize.Set(float64(n))
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordStorageOperation records a storage backend operation.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
