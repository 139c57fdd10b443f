package tools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/ranking"
)

// EstimateEmissionsTool returns the estimate_emissions tool definition
func EstimateEmissionsTool(f *core.ToolFactory) mcp.Tool {
	return mcp.NewTool("estimate_emissions",
		mcp.WithDescription("Estimate the CO2 footprint (kg) and eco score (0-100) of travelling a distance by a given mode"),
		f.ModeOption(true),
		mcp.WithNumber("distance_meters",
			mcp.Required(),
			mcp.Description("Distance travelled in meters"),
		),
		mcp.WithString("policy",
			mcp.Description("Eco score policy: unbounded_floor (single routes) or zero_floor (distance matrices)"),
			mcp.Enum(emissions.UnboundedFloor.String(), emissions.ZeroFloor.String()),
			mcp.DefaultString(emissions.UnboundedFloor.String()),
		),
	)
}

// EstimateEmissionsOutput is the estimate_emissions result
type EstimateEmissionsOutput struct {
	Mode           emissions.TravelMode `json:"mode"`
	DistanceMeters float64              `json:"distance_meters"`
	Policy         string               `json:"policy"`
	emissions.Estimate
}

// HandleEstimateEmissions computes a single emission estimate
func HandleEstimateEmissions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", "estimate_emissions")

	mode, err := emissions.ParseMode(req.GetString("mode", ""))
	if err != nil {
		return errorResult(logger, core.NewError(core.ErrInvalidMode, err.Error()).
			WithGuidance("Use walking, bicycling, transit or driving."))
	}
	policy, err := emissions.ParsePolicy(req.GetString("policy", emissions.UnboundedFloor.String()))
	if err != nil {
		return errorResult(logger, err)
	}

	// Strings such as "1234" are accepted; unparseable input counts as zero.
	var meters float64
	switch v := req.GetArguments()["distance_meters"].(type) {
	case string:
		meters = emissions.ParseDistance(strings.TrimSpace(v))
	default:
		meters = req.GetFloat("distance_meters", 0)
	}

	est, err := emissions.ComputeWith(policy, mode, meters)
	if err != nil {
		return errorResult(logger, err)
	}

	return jsonResult(logger, EstimateEmissionsOutput{
		Mode:           mode,
		DistanceMeters: meters,
		Policy:         policy.String(),
		Estimate:       est,
	})
}

// RankRoutesTool returns the rank_routes tool definition
func RankRoutesTool(f *core.ToolFactory) mcp.Tool {
	return mcp.NewTool("rank_routes",
		mcp.WithDescription("Score alternative routes for one mode and find the one with the lowest carbon footprint"),
		f.ModeOption(false),
		mcp.WithArray("routes",
			mcp.Required(),
			mcp.Description("Routes as objects with distance_meters, duration_seconds and summary, in provider order"),
		),
		mcp.WithBoolean("sort",
			mcp.Description("Return the routes ordered by footprint instead of provider order"),
			mcp.DefaultBool(false),
		),
	)
}

// RankRoutesOutput is the rank_routes result
type RankRoutesOutput struct {
	Mode                 emissions.TravelMode        `json:"mode"`
	Routes               []ranking.EnrichedCandidate `json:"routes"`
	LowestFootprintIndex int                         `json:"lowest_footprint_index"`
	Sorted               bool                        `json:"sorted"`
}

// HandleRankRoutes enriches the given routes and picks the greenest
func HandleRankRoutes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", "rank_routes")

	mode, err := emissions.ParseModeOrDefault(req.GetString("mode", ""))
	if err != nil {
		return errorResult(logger, core.NewError(core.ErrInvalidMode, err.Error()))
	}

	var routes []ranking.RouteCandidate
	if err := decodeArgument(req, "routes", &routes); err != nil {
		return errorResult(logger, err)
	}

	enriched, err := ranking.Enrich(routes, mode)
	if err != nil {
		return errorResult(logger, err)
	}
	_, lowest, err := ranking.LowestFootprint(enriched)
	if err != nil {
		return errorResult(logger, err)
	}

	out := RankRoutesOutput{Mode: mode, Routes: enriched, LowestFootprintIndex: lowest}
	if req.GetBool("sort", false) {
		out.Routes = ranking.SortByFootprint(enriched)
		out.LowestFootprintIndex = 0
		out.Sorted = true
	}
	return jsonResult(logger, out)
}

// CarbonSavedTool returns the carbon_saved tool definition
func CarbonSavedTool(f *core.ToolFactory) mcp.Tool {
	return mcp.NewTool("carbon_saved",
		mcp.WithDescription("Compute the CO2 (kg) saved by a trip compared with driving an equivalent distance"),
		mcp.WithNumber("carbon_footprint_kg",
			mcp.Required(),
			mcp.Description("Footprint of the chosen trip in kg"),
		),
		mcp.WithNumber("driving_distance_km",
			mcp.Required(),
			mcp.Description("Distance in km the same trip would take by car"),
		),
	)
}

// HandleCarbonSaved computes the saving against driving. It is never negative.
func HandleCarbonSaved(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", "carbon_saved")

	footprint := req.GetFloat("carbon_footprint_kg", 0)
	km := req.GetFloat("driving_distance_km", 0)
	if footprint < 0 {
		return errorResult(logger, core.NewValidationError(core.ErrInvalidParameter, "carbon_footprint_kg must not be negative"))
	}

	saved := ranking.CarbonSavedVsDriving(emissions.Estimate{CarbonFootprintKg: footprint}, km)
	return jsonResult(logger, map[string]float64{
		"carbon_footprint_kg": footprint,
		"driving_distance_km": km,
		"carbon_saved_kg":     emissions.Round2(saved),
	})
}
