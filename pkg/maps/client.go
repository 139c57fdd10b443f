// Package maps talks to the routing, geocoding, places and air quality
// provider on behalf of the API handlers and MCP tools.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/ecoroute/pkg/cache"
	"github.com/NERVsystems/ecoroute/pkg/config"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

const (
	// DefaultUserAgent is sent with every provider request
	DefaultUserAgent = "ecoroute/0.1.0"

	// DefaultPlacesRadius is the nearby search radius in meters
	DefaultPlacesRadius = 5000

	maxResponseBytes = 8 << 20
)

// Options configures a Client. Zero values fall back to the package defaults.
type Options struct {
	APIKey            string
	DirectionsURL     string
	DistanceMatrixURL string
	GeocodeURL        string
	PlacesURL         string
	AirQualityURL     string

	HTTPClient        *http.Client
	RequestsPerSecond float64
	Burst             int
	PlacesRadius      int

	GeocodeCacheSize int
	GeocodeCacheTTL  time.Duration

	UserAgent string
	Logger    *slog.Logger
}

// OptionsFromConfig maps the service configuration onto client options
func OptionsFromConfig(cfg config.MapsConfig) Options {
	return Options{
		APIKey:            cfg.APIKey,
		DirectionsURL:     cfg.DirectionsURL,
		DistanceMatrixURL: cfg.DistanceMatrixURL,
		GeocodeURL:        cfg.GeocodeURL,
		PlacesURL:         cfg.PlacesURL,
		AirQualityURL:     cfg.AirQualityURL,
		HTTPClient:        &http.Client{Timeout: cfg.Timeout, Transport: core.DefaultClient.Transport},
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		PlacesRadius:      cfg.PlacesRadius,
		GeocodeCacheSize:  cfg.GeocodeCacheSize,
		GeocodeCacheTTL:   cfg.GeocodeCacheTTL,
	}
}

// Client is a provider client. It is safe for concurrent use.
type Client struct {
	opts     Options
	http     *http.Client
	limiters map[string]*rate.Limiter
	geocodes *cache.TTLCache[string, json.RawMessage]
	logger   *slog.Logger
}

// NewClient creates a client with one rate limiter per provider service
func NewClient(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = core.DefaultClient
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.PlacesRadius <= 0 {
		opts.PlacesRadius = DefaultPlacesRadius
	}
	if opts.GeocodeCacheSize <= 0 {
		opts.GeocodeCacheSize = 1000
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limiters := make(map[string]*rate.Limiter)
	for _, service := range []string{
		tracing.ServiceDirections,
		tracing.ServiceDistanceMatrix,
		tracing.ServiceGeocoding,
		tracing.ServicePlaces,
		tracing.ServiceAirQuality,
	} {
		limiters[service] = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}

	return &Client{
		opts:     opts,
		http:     opts.HTTPClient,
		limiters: limiters,
		geocodes: cache.New[string, json.RawMessage](tracing.CacheTypeGeocode, opts.GeocodeCacheSize, opts.GeocodeCacheTTL),
		logger:   opts.Logger.With("component", "maps"),
	}
}

// waitForRateLimit blocks until the service's limiter admits a request
func (c *Client) waitForRateLimit(ctx context.Context, service string) error {
	limiter, ok := c.limiters[service]
	if !ok || limiter.Allow() {
		return nil
	}

	startWait := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(
			attribute.String(tracing.AttrRateLimitService, service),
		),
	)

	err := limiter.Wait(ctx)

	waitDuration := time.Since(startWait)
	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, service),
		attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
	)
	if hooks := getMonitoringHooks(); hooks != nil && hooks.OnRateLimit != nil {
		hooks.OnRateLimit(service, waitDuration)
	}
	return err
}

// newRequest builds a provider request, adding the API key to the query
// string unless the service authenticates through a header.
func (c *Client) newRequest(ctx context.Context, method, base string, query url.Values, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid provider url: %w", err)
	}
	if query != nil {
		query.Set("key", c.opts.APIKey)
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do performs a rate limited, monitored request and returns the raw body
func (c *Client) do(ctx context.Context, service, operation string, req *http.Request) ([]byte, error) {
	hooks := getMonitoringHooks()
	if hooks != nil && hooks.OnRequest != nil {
		hooks.OnRequest(service, operation)
	}

	if err := c.waitForRateLimit(ctx, service); err != nil {
		if hooks != nil && hooks.OnError != nil {
			hooks.OnError(service, "rate_limit_wait_error")
		}
		return nil, err
	}

	start := time.Now()
	resp, err := core.Do(ctx, service, req, c.http)
	if err != nil {
		if hooks != nil {
			if hooks.OnResponse != nil {
				hooks.OnResponse(service, operation, time.Since(start), false)
			}
			if hooks.OnError != nil {
				hooks.OnError(service, "request_error")
			}
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	duration := time.Since(start)
	if hooks != nil && hooks.OnResponse != nil {
		hooks.OnResponse(service, operation, duration, err == nil)
	}
	if err != nil {
		return nil, core.NewError(core.ErrNetworkError, fmt.Sprintf("failed to read %s response", service))
	}
	return body, nil
}

// getJSON performs a GET and decodes the body into out
func (c *Client) getJSON(ctx context.Context, service, operation, base string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, base, query, nil)
	if err != nil {
		return err
	}
	body, err := c.do(ctx, service, operation, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("failed to decode provider response", "service", service, "error", err)
		return core.NewError(core.ErrParseError, fmt.Sprintf("invalid %s response", service))
	}
	return nil
}
