package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	// HTTPRequests tracks requests by method, route, and status class
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks request latency
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "dashboard_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "route"},
	)
)

// Database/Repository metrics
var (
	// DBOperations tracks total database operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_db_operations_total",
			Help: "Total database operations by repository, operation, and status",
		},
		[]string{"repo", "operation", "status"},
	)

	// DBDuration tracks database operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "dashboard_db_operation_duration_ms",
			Help:                            "Database operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)
)

// Auth flow metrics
var (
	// Logins tracks completed login attempts by outcome
	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_logins_total",
			Help: "Total completed OIDC callback exchanges by status",
		},
		[]string{"status"},
	)

	// TokenRefreshes tracks background refresh attempts by outcome
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_token_refreshes_total",
			Help: "Total background token refresh attempts by status",
		},
		[]string{"status"},
	)

	// SessionsDestroyed tracks session destruction by reason
	SessionsDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_sessions_destroyed_total",
			Help: "Total sessions destroyed by reason (logout, expired, invalid, sweep)",
		},
		[]string{"reason"},
	)
)

// Pocket-ID API metrics
var (
	// CacheHits tracks management API cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_pocketid_cache_hits_total",
			Help: "Total Pocket-ID client-list cache hits",
		},
	)

	// CacheMisses tracks management API cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_pocketid_cache_misses_total",
			Help: "Total Pocket-ID client-list cache misses",
		},
	)

	// UpstreamRequests tracks calls to the Pocket-ID management API
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_pocketid_requests_total",
			Help: "Total Pocket-ID management API requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)
)
