package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/maps"
	"github.com/NERVsystems/ecoroute/pkg/ranking"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// GetDirectionsOutput is the get_directions result
type GetDirectionsOutput struct {
	Origin               string                      `json:"origin"`
	Destination          string                      `json:"destination"`
	Mode                 emissions.TravelMode        `json:"mode"`
	Routes               []ranking.EnrichedCandidate `json:"routes"`
	LowestFootprintIndex int                         `json:"lowest_footprint_index"`
}

// handleGetDirections fetches alternatives from the provider and scores them
func (r *Registry) handleGetDirections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "get_directions")

	origin, err := req.RequireString("origin")
	if err != nil {
		return errorResult(logger, core.NewError(core.ErrMissingParameter, "origin is required"))
	}
	destination, err := req.RequireString("destination")
	if err != nil {
		return errorResult(logger, core.NewError(core.ErrMissingParameter, "destination is required"))
	}
	mode, err := emissions.ParseModeOrDefault(req.GetString("mode", ""))
	if err != nil {
		return errorResult(logger, core.NewError(core.ErrInvalidMode, err.Error()))
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := r.provider.Directions(ctx, origin, destination, mode)
	if err != nil {
		return errorResult(logger, err)
	}
	if resp.Status != maps.StatusOK && resp.Status != maps.StatusZeroResults {
		return errorResult(logger, core.NewError(core.ErrServiceUnavailable, "directions lookup returned "+resp.Status).
			WithGuidance(resp.ErrorMessage))
	}

	enriched, err := ranking.Enrich(maps.CandidatesFromRoutes(resp.Routes), mode)
	if err != nil {
		return errorResult(logger, err)
	}
	_, lowest, err := ranking.LowestFootprint(enriched)
	if err != nil {
		return errorResult(logger, err)
	}
	tracing.SetAttributes(ctx, tracing.RankingAttributes(string(mode), len(enriched), lowest, enriched[lowest].CarbonFootprintKg)...)

	return jsonResult(logger, GetDirectionsOutput{
		Origin:               origin,
		Destination:          destination,
		Mode:                 mode,
		Routes:               enriched,
		LowestFootprintIndex: lowest,
	})
}
