package maps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// Geocode resolves an address and returns the provider's response unchanged.
// Responses with status OK are cached by normalized address.
func (c *Client) Geocode(ctx context.Context, address string) (json.RawMessage, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, core.NewError(core.ErrMissingParameter, "Address is required")
	}

	ctx, span := tracing.StartSpan(ctx, "maps.geocode")
	defer span.End()

	key := strings.ToLower(strings.Join(strings.Fields(address), " "))
	if cached, ok := c.geocodes.Get(key); ok {
		span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeGeocode, true)...)
		return cached, nil
	}
	span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeGeocode, false)...)

	query := url.Values{}
	query.Set("address", address)

	req, err := c.newRequest(ctx, http.MethodGet, c.opts.GeocodeURL, query, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, tracing.ServiceGeocoding, "geocode", req)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, core.NewError(core.ErrParseError, "invalid geocoding response")
	}
	span.SetAttributes(attribute.String(tracing.AttrServiceStatus, status.Status))
	if status.Status == StatusOK {
		c.geocodes.Set(key, body)
	}
	return body, nil
}
