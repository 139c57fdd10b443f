// Package server exposes ecoroute over MCP (stdio or HTTP+SSE) and serves
// the REST API, health endpoints and middleware from one HTTP listener.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/tools"
	"github.com/NERVsystems/ecoroute/pkg/version"
)

// ServerName is the name reported to MCP clients
const ServerName = "ecoroute"

// Server wraps the MCP server with the ecoroute tools registered.
type Server struct {
	srv    *mcpserver.MCPServer
	logger *slog.Logger
}

// NewServer creates an MCP server with every tool in registry and the
// travel advisor prompt.
func NewServer(registry *tools.Registry, logger *slog.Logger) (*Server, error) {
	if registry == nil {
		return nil, errors.New("server: nil tool registry")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing MCP server", "name", ServerName, "version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)
	registry.RegisterAll(srv)
	srv.AddPrompt(advisorPrompt(), handleAdvisorPrompt)

	return &Server{srv: srv, logger: logger}, nil
}

func advisorPrompt() mcp.Prompt {
	return mcp.NewPrompt("eco_travel_advisor",
		mcp.WithPromptDescription("Instructions for recommending low-carbon travel options with the ecoroute tools"),
		mcp.WithArgument("origin",
			mcp.ArgumentDescription("Where the trip starts"),
		),
		mcp.WithArgument("destination",
			mcp.ArgumentDescription("Where the trip ends"),
		),
	)
}

func handleAdvisorPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	text := advisorInstructions
	if origin, destination := req.Params.Arguments["origin"], req.Params.Arguments["destination"]; origin != "" && destination != "" {
		text += "\n\nThe user is travelling from " + origin + " to " + destination + "."
	}
	return mcp.NewGetPromptResult(
		"Eco travel advisor",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(text)),
		},
	), nil
}

const advisorInstructions = `You help people choose greener ways to travel.

1. Call get_directions once per travel mode the user could realistically use
   (walking, bicycling, transit, driving). Each route comes back with
   carbonFootprint in kg CO2 and an ecoScore from 0 to 100.
2. Recommend the route with the lowest footprint unless it is impractical,
   for example walking more than about 5 km. Say how long each option takes.
3. Use carbon_saved with the driving distance to tell the user how much CO2
   their choice saves compared with driving.
4. When the user asks about a pleasant or healthy route, pass the chosen
   route's overview_polyline to find_green_spaces or get_air_quality.

Emission factors are 0.21 kg/km for driving, 0.05 kg/km for transit and
zero for walking and cycling. Do not invent other figures.`

// ServeStdio speaks MCP over in and out until ctx is cancelled or in is
// exhausted.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.srv)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("serving MCP over stdio")
	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MCPServer returns the underlying MCP server for the HTTP transport
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.srv
}
