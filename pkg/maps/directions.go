package maps

import (
	"context"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/ecoroute/pkg/coords"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/ranking"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// Directions fetches alternative routes between two places for a mode.
// Places given in MGRS, UTM or DMS notation are sent as decimal degrees. A
// provider status other than OK is returned in the response, not as an error.
func (c *Client) Directions(ctx context.Context, origin, destination string, mode emissions.TravelMode) (*DirectionsResponse, error) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		return nil, core.NewError(core.ErrMissingParameter, "Origin and destination are required")
	}
	if !mode.Valid() {
		return nil, core.NewError(core.ErrInvalidMode, "unsupported travel mode").WithQuery(string(mode))
	}

	ctx, span := tracing.StartSpan(ctx, "maps.directions")
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrTravelMode, string(mode)))

	query := url.Values{}
	query.Set("origin", coords.Normalize(origin))
	query.Set("destination", coords.Normalize(destination))
	query.Set("mode", string(mode))
	query.Set("alternatives", "true")

	var out DirectionsResponse
	if err := c.getJSON(ctx, tracing.ServiceDirections, "directions", c.opts.DirectionsURL, query, &out); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrRouteCount, len(out.Routes)))
	return &out, nil
}

// CandidatesFromRoutes converts provider routes into ranking candidates using
// each route's first leg. A route without legs has zero distance and duration.
func CandidatesFromRoutes(routes []Route) []ranking.RouteCandidate {
	out := make([]ranking.RouteCandidate, 0, len(routes))
	for _, r := range routes {
		cand := ranking.RouteCandidate{
			Summary:          r.Summary,
			OverviewPolyline: r.OverviewPolyline.Points,
		}
		if len(r.Legs) > 0 {
			leg := r.Legs[0]
			cand.DistanceMeters = leg.Distance.Value
			cand.DurationSeconds = leg.Duration.Value
			for _, s := range leg.Steps {
				cand.Steps = append(cand.Steps, ranking.Step{
					Instruction:     s.HTMLInstructions,
					DistanceMeters:  s.Distance.Value,
					DurationSeconds: s.Duration.Value,
					Mode:            s.TravelMode,
				})
			}
		}
		out = append(out, cand)
	}
	return out
}
