package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/maps"
)

// GreenSpace is a park near the requested point
type GreenSpace struct {
	Name           string        `json:"name"`
	PlaceID        string        `json:"place_id,omitempty"`
	Vicinity       string        `json:"vicinity,omitempty"`
	Rating         float64       `json:"rating,omitempty"`
	Location       maps.Location `json:"location"`
	DistanceMeters float64       `json:"distance_meters"`
}

// resolvePoint reads the point a location tool should look at: the midpoint
// of the polyline argument when given, otherwise latitude and longitude.
func resolvePoint(req mcp.CallToolRequest, logger *slog.Logger) (float64, float64, error) {
	encoded := strings.TrimSpace(mcp.ParseString(req, "polyline", ""))
	if encoded == "" {
		return core.ParseCoordsWithLog(req, logger, "", "")
	}

	points, err := maps.DecodePolyline(encoded)
	if err != nil {
		return 0, 0, core.NewError(core.ErrInvalidParameter, "polyline parameter is not a valid encoded polyline").
			WithGuidance(GetToolUsageExample(req.Params.Name))
	}
	mid, ok := maps.Midpoint(points)
	if !ok {
		return 0, 0, core.NewError(core.ErrEmptyParameter, "polyline parameter has no points")
	}
	logger.Debug("using route midpoint", "points", len(points), "lat", mid.Lat, "lng", mid.Lng)
	return mid.Lat, mid.Lng, nil
}

// handleFindGreenSpaces lists parks around a point, nearest first
func (r *Registry) handleFindGreenSpaces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "find_green_spaces")

	lat, lng, err := resolvePoint(req, logger)
	if err != nil {
		return errorResult(logger, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := r.provider.NearbyParks(ctx, lat, lng)
	if err != nil {
		return errorResult(logger, err)
	}

	spaces := make([]GreenSpace, 0, len(resp.Results))
	for _, p := range resp.Results {
		spaces = append(spaces, GreenSpace{
			Name:           p.Name,
			PlaceID:        p.PlaceID,
			Vicinity:       p.Vicinity,
			Rating:         p.Rating,
			Location:       p.Geometry.Location,
			DistanceMeters: p.DistanceMeters,
		})
	}
	return jsonResult(logger, map[string]any{
		"status":       resp.Status,
		"green_spaces": spaces,
	})
}

// handleGetAirQuality returns current air quality conditions at a point
func (r *Registry) handleGetAirQuality(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "get_air_quality")

	lat, lng, err := resolvePoint(req, logger)
	if err != nil {
		return errorResult(logger, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	raw, err := r.provider.AirQuality(ctx, lat, lng)
	if err != nil {
		return errorResult(logger, err)
	}
	return jsonResult(logger, json.RawMessage(raw))
}
