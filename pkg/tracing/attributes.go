package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// External service attributes
	AttrServiceName      = "ecoroute.service.name"
	AttrServiceOperation = "ecoroute.service.operation"
	AttrServiceStatus    = "ecoroute.service.status"

	// Route ranking attributes
	AttrTravelMode     = "ecoroute.travel_mode"
	AttrRouteCount     = "ecoroute.route.count"
	AttrLowestIndex    = "ecoroute.route.lowest_index"
	AttrFootprintKg    = "ecoroute.route.footprint_kg"
	AttrStoreOperation = "ecoroute.store.operation"

	// Cache attributes
	AttrCacheType = "ecoroute.cache.type"
	AttrCacheHit  = "ecoroute.cache.hit"

	// Rate limiting attributes
	AttrRateLimitService = "ecoroute.ratelimit.service"
	AttrRateLimitWaitMs  = "ecoroute.ratelimit.wait_ms"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPSessionID  = "http.session_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate_limited"
)

// Service names
const (
	ServiceDirections     = "directions"
	ServiceDistanceMatrix = "distance_matrix"
	ServiceGeocoding      = "geocoding"
	ServicePlaces         = "places"
	ServiceAirQuality     = "air_quality"
)

// Cache types
const (
	CacheTypeGeocode = "geocode"
)

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// ServiceAttributes returns attributes for external service calls
func ServiceAttributes(service, operation string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
		attribute.Int(AttrServiceStatus, status),
	}
}

// RankingAttributes describes the outcome of ranking a set of routes
func RankingAttributes(mode string, count, lowest int, footprintKg float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTravelMode, mode),
		attribute.Int(AttrRouteCount, count),
		attribute.Int(AttrLowestIndex, lowest),
		attribute.Float64(AttrFootprintKg, footprintKg),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
