package tools

import (
	"context"
	"runtime/debug"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/version"
)

// VersionInfo is the get_version result
type VersionInfo struct {
	Version     string            `json:"version"`
	Commit      string            `json:"commit"`
	BuildDate   string            `json:"build_date"`
	GoVersion   string            `json:"go_version"`
	VCSRevision string            `json:"vcs_revision,omitempty"`
	Tools       []string          `json:"tools,omitempty"`
	Settings    map[string]string `json:"settings,omitempty"`
}

// GetVersionTool returns the get_version tool definition
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version, build information and tool list of the ecoroute service"),
	)
}

func (r *Registry) handleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "get_version")

	info := version.Info()
	out := VersionInfo{
		Version:   info["version"],
		Commit:    info["commit"],
		BuildDate: info["build_date"],
		GoVersion: info["go_version"],
		Tools:     r.GetToolNames(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		out.Settings = make(map[string]string)
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				out.VCSRevision = setting.Value
			case "GOOS", "GOARCH", "CGO_ENABLED":
				out.Settings[setting.Key] = setting.Value
			}
		}
	}

	return jsonResult(logger, out)
}

