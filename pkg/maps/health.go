package maps

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// HealthChecks returns one probe per provider service, keyed by service name.
// The probes issue minimal requests through the same limiters as real calls.
func (c *Client) HealthChecks() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		tracing.ServiceDirections: c.probe(tracing.ServiceDirections, c.opts.DirectionsURL, url.Values{
			"origin":      {"0,0"},
			"destination": {"0,0"},
		}),
		tracing.ServiceGeocoding: c.probe(tracing.ServiceGeocoding, c.opts.GeocodeURL, url.Values{
			"latlng": {"0,0"},
		}),
	}
}

func (c *Client) probe(service, base string, query url.Values) func(context.Context) error {
	return func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodGet, base, query, nil)
		if err != nil {
			return fmt.Errorf("failed to create %s health check request: %w", service, err)
		}
		if _, err := c.do(ctx, service, "health", req); err != nil {
			return fmt.Errorf("%s health check failed: %w", service, err)
		}
		return nil
	}
}
