package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/maps"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// Provider is the part of the maps client the tools call
type Provider interface {
	Directions(ctx context.Context, origin, destination string, mode emissions.TravelMode) (*maps.DirectionsResponse, error)
	NearbyParks(ctx context.Context, lat, lng float64) (*maps.PlacesResponse, error)
	AirQuality(ctx context.Context, lat, lng float64) (json.RawMessage, error)
}

// TripHistory lists stored trips for a period
type TripHistory interface {
	Between(ctx context.Context, owner *string, from, to time.Time) ([]trip.Trip, error)
}

// Registry contains all tool definitions and handlers
type Registry struct {
	logger   *slog.Logger
	factory  *core.ToolFactory
	provider Provider
	trips    TripHistory
	now      func() time.Time
}

// NewRegistry creates a new tool registry
func NewRegistry(logger *slog.Logger, provider Provider, trips TripHistory) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		factory:  core.NewToolFactory(),
		provider: provider,
		trips:    trips,
		now:      time.Now,
	}
}

// ToolDefinition represents an MCP tool definition.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     server.ToolHandlerFunc
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	f := r.factory
	return []ToolDefinition{
		{
			Name:        "get_version",
			Description: "Get the version information for this service",
			Tool:        GetVersionTool(),
			Handler:     r.handleGetVersion,
		},

		// Emission estimates
		{
			Name:        "estimate_emissions",
			Description: "Estimate CO2 and eco score for a mode and distance. Parameters: mode (string), distance_meters (number), policy (string)",
			Tool:        EstimateEmissionsTool(f),
			Handler:     HandleEstimateEmissions,
		},
		{
			Name:        "rank_routes",
			Description: "Score alternative routes and find the lowest footprint. Parameters: mode (string), routes (array), sort (boolean)",
			Tool:        RankRoutesTool(f),
			Handler:     HandleRankRoutes,
		},
		{
			Name:        "carbon_saved",
			Description: "CO2 saved compared with driving. Parameters: carbon_footprint_kg (number), driving_distance_km (number)",
			Tool:        CarbonSavedTool(f),
			Handler:     HandleCarbonSaved,
		},

		// Provider lookups
		{
			Name:        "get_directions",
			Description: "Get alternative routes between two places with emission estimates. Parameters: origin (string), destination (string), mode (string)",
			Tool:        f.CreateRouteTool("get_directions", "Get alternative routes between two places, each scored by carbon footprint and eco score"),
			Handler:     r.handleGetDirections,
		},
		{
			Name:        "find_green_spaces",
			Description: "Find parks near a point or route midpoint, nearest first. Parameters: latitude (number), longitude (number), polyline (string)",
			Tool:        f.CreateLocationTool("find_green_spaces", "Find parks and green spaces within walking distance of a point, nearest first"),
			Handler:     r.handleFindGreenSpaces,
		},
		{
			Name:        "get_air_quality",
			Description: "Current air quality at a point or route midpoint. Parameters: latitude (number), longitude (number), polyline (string)",
			Tool:        f.CreateLocationTool("get_air_quality", "Get current air quality indexes and pollutants at a point"),
			Handler:     r.handleGetAirQuality,
		},

		// Trip history
		{
			Name:        "monthly_summary",
			Description: "Total a month of recorded trips. Parameters: user_id (string), month (number), year (number)",
			Tool:        MonthlySummaryTool(),
			Handler:     r.handleMonthlySummary,
		},
	}
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, r.wrapWithTracing(def.Name, def.Handler))
	}
}

// wrapWithTracing wraps a tool handler with a span and request metrics
func (r *Registry) wrapWithTracing(toolName string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("mcp.tool.%s", toolName),
			trace.WithAttributes(
				attribute.String(tracing.AttrMCPToolName, toolName),
			),
		)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)

		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}
		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, duration.Milliseconds(), resultSize)...)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"result_size", resultSize,
		)
		return result, err
	}
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// RegisterAll registers all tools with the MCP server.
func (r *Registry) RegisterAll(mcpServer *server.MCPServer) {
	r.RegisterTools(mcpServer)
}
