package core

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/emissions"
)

// ToolFactory builds MCP tool definitions with the parameter shapes shared
// across the ecoroute tools.
type ToolFactory struct {
	modes []string
}

// NewToolFactory creates a new tool factory
func NewToolFactory() *ToolFactory {
	modes := make([]string, len(emissions.Modes))
	for i, m := range emissions.Modes {
		modes[i] = string(m)
	}
	return &ToolFactory{modes: modes}
}

// CreateBasicTool creates a tool with only a name and description
func (f *ToolFactory) CreateBasicTool(name, description string) mcp.Tool {
	return mcp.NewTool(name, mcp.WithDescription(description))
}

// ModeOption returns the travel mode parameter, defaulting to driving
func (f *ToolFactory) ModeOption(required bool) mcp.ToolOption {
	opts := []mcp.PropertyOption{
		mcp.Description("Travel mode: walking, bicycling, transit or driving"),
		mcp.Enum(f.modes...),
	}
	if required {
		opts = append(opts, mcp.Required())
	} else {
		opts = append(opts, mcp.DefaultString(string(emissions.DefaultMode)))
	}
	return mcp.WithString("mode", opts...)
}

// CreateLocationTool creates a tool taking either a latitude and longitude
// or the encoded polyline of a route, in which case the route's midpoint is
// used.
func (f *ToolFactory) CreateLocationTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithNumber("latitude",
			mcp.Description("The latitude coordinate of the point"),
		),
		mcp.WithNumber("longitude",
			mcp.Description("The longitude coordinate of the point"),
		),
		mcp.WithString("polyline",
			mcp.Description("Encoded overview_polyline of a route from get_directions, used instead of latitude and longitude"),
		),
	)
}

// CreateRouteTool creates a tool for looking up routes between two places
func (f *ToolFactory) CreateRouteTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("origin",
			mcp.Required(),
			mcp.Description("Starting address, place name or \"lat,lng\""),
		),
		mcp.WithString("destination",
			mcp.Required(),
			mcp.Description("Destination address, place name or \"lat,lng\""),
		),
		f.ModeOption(false),
	)
}
