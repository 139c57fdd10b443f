// Package tools provides the ecoroute MCP tool implementations.
package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
)

// errorResult converts err into a structured MCP error result
func errorResult(logger *slog.Logger, err error) (*mcp.CallToolResult, error) {
	mcpErr := core.FromError(err)
	logger.Warn("tool call failed", "code", mcpErr.Code, "error", err)
	return mcpErr.ToMCPResult(), nil
}

// jsonResult marshals v as the text content of a successful result
func jsonResult(logger *slog.Logger, v any) (*mcp.CallToolResult, error) {
	resultBytes, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		return mcp.NewToolResultError("Failed to generate result"), nil
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}

// decodeArgument round-trips a single argument through JSON into out
func decodeArgument(req mcp.CallToolRequest, name string, out any) error {
	args := req.GetArguments()
	raw, ok := args[name]
	if !ok || raw == nil {
		return core.NewError(core.ErrMissingParameter, fmt.Sprintf("missing required %s parameter", name))
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return core.NewError(core.ErrInvalidParameter, fmt.Sprintf("unable to read %s parameter", name))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return core.NewError(core.ErrParseError, fmt.Sprintf("%s parameter has the wrong shape", name)).
			WithGuidance(GetToolUsageExample(req.Params.Name))
	}
	return nil
}

// GetToolUsageExample returns an example call for a tool, used as guidance
// when its parameters cannot be parsed.
func GetToolUsageExample(toolName string) string {
	switch toolName {
	case "estimate_emissions":
		return `Example: {"mode": "transit", "distance_meters": 10000}`
	case "rank_routes":
		return `Example: {"mode": "driving", "routes": [{"distance_meters": 12000, "duration_seconds": 900, "summary": "A1"}]}`
	case "carbon_saved":
		return `Example: {"carbon_footprint_kg": 0.5, "driving_distance_km": 10}`
	case "get_directions":
		return `Example: {"origin": "Alexanderplatz, Berlin", "destination": "Potsdam", "mode": "transit"}`
	case "monthly_summary":
		return `Example: {"user_id": "user-123", "month": 3, "year": 2024}`
	case "find_green_spaces", "get_air_quality":
		return `Example: {"latitude": 52.52, "longitude": 13.405} or {"polyline": "<overview_polyline from get_directions>"}`
	default:
		return "Please check the tool's parameter documentation."
	}
}
