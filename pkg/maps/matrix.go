package maps

import (
	"context"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/ecoroute/pkg/coords"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// DistanceMatrix fetches travel distances between every origin and
// destination. Origins and destinations are pipe separated lists.
func (c *Client) DistanceMatrix(ctx context.Context, origins, destinations string, mode emissions.TravelMode) (*DistanceMatrixResponse, error) {
	origins = strings.TrimSpace(origins)
	destinations = strings.TrimSpace(destinations)
	if origins == "" || destinations == "" {
		return nil, core.NewError(core.ErrMissingParameter, "Origins and destinations are required")
	}
	if !mode.Valid() {
		return nil, core.NewError(core.ErrInvalidMode, "unsupported travel mode").WithQuery(string(mode))
	}

	ctx, span := tracing.StartSpan(ctx, "maps.distance_matrix")
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrTravelMode, string(mode)))

	query := url.Values{}
	query.Set("origins", normalizePlaces(origins))
	query.Set("destinations", normalizePlaces(destinations))
	query.Set("mode", string(mode))
	query.Set("units", "metric")

	var out DistanceMatrixResponse
	if err := c.getJSON(ctx, tracing.ServiceDistanceMatrix, "distance_matrix", c.opts.DistanceMatrixURL, query, &out); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return &out, nil
}

// normalizePlaces applies coords.Normalize to each "|" separated place
func normalizePlaces(places string) string {
	parts := strings.Split(places, "|")
	for i, p := range parts {
		parts[i] = coords.Normalize(p)
	}
	return strings.Join(parts, "|")
}
