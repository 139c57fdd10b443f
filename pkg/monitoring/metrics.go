// Package monitoring exposes Prometheus metrics and health reporting.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "ecoroute"
)

var (
	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_mcp_requests_total",
			Help: "Total number of MCP tool calls processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_mcp_request_duration_seconds",
			Help:    "MCP tool call duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// REST API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_api_requests_total",
			Help: "Total number of REST API requests",
		},
		[]string{"route", "method", "code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_api_request_duration_seconds",
			Help:    "REST API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_external_service_requests_total",
			Help: "Total number of requests to the maps provider",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_external_service_request_duration_seconds",
			Help:    "Maps provider request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"service"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecoroute_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Domain metrics
	RoutesEnrichedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_routes_enriched_total",
			Help: "Total number of route candidates given an emission estimate",
		},
		[]string{"mode", "policy"},
	)

	RouteFootprintKg = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_route_footprint_kg",
			Help:    "Carbon footprint of enriched routes in kg CO2",
			Buckets: []float64{0, 0.1, 0.5, 1, 2, 5, 10, 25, 50},
		},
		[]string{"mode"},
	)

	TripsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_trips_recorded_total",
			Help: "Total number of trips saved to history",
		},
		[]string{"mode", "owner"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_store_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation", "status"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecoroute_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport", "type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecoroute_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)
)

// TransportInfo holds transport configuration and status
type TransportInfo struct {
	Type     string `json:"type"`                // "http" or "stdio"
	HTTPAddr string `json:"http_addr,omitempty"` // HTTP address if enabled
}

// ServiceHealth is the body of the /health endpoint
type ServiceHealth struct {
	Service       string                `json:"service"`
	Version       string                `json:"version"`
	Status        string                `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration         `json:"uptime"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	StartTime     time.Time             `json:"start_time,omitempty"`
	Connections   map[string]ConnStatus `json:"connections"`
	Metrics       map[string]any        `json:"metrics,omitempty"`
	Transport     *TransportInfo        `json:"transport,omitempty"`
}

// ConnStatus is the last observed state of a dependency
type ConnStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`               // "connected", "degraded", "error"
	Latency   int64     `json:"latency_ms,omitempty"` // Optional latency in milliseconds
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordMCPRequest records a completed MCP tool call
func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, status(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordAPIRequest records a completed REST request
func RecordAPIRequest(route, method, code string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(route, method, code).Inc()
	APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordExternalServiceRequest records a call to the maps provider
func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, status(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordRouteEnriched records one enriched route candidate
func RecordRouteEnriched(mode, policy string, footprintKg float64) {
	RoutesEnrichedTotal.WithLabelValues(mode, policy).Inc()
	RouteFootprintKg.WithLabelValues(mode).Observe(footprintKg)
}

// RecordTrip records a saved trip. Anonymous trips are labelled separately.
func RecordTrip(mode string, anonymous bool) {
	owner := "user"
	if anonymous {
		owner = "anonymous"
	}
	TripsRecordedTotal.WithLabelValues(mode, owner).Inc()
}

// RecordStoreOperation records a database call
func RecordStoreOperation(operation string, duration time.Duration, success bool) {
	StoreOperationDuration.WithLabelValues(operation, status(success)).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitExceeded(service string) {
	RateLimitExceeded.WithLabelValues(service).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport, connType string, count int) {
	ActiveConnections.WithLabelValues(transport, connType).Set(float64(count))
}
