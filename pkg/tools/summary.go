package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/ranking"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// MonthlySummaryTool returns the monthly_summary tool definition
func MonthlySummaryTool() mcp.Tool {
	return mcp.NewTool("monthly_summary",
		mcp.WithDescription("Total the emissions and carbon saved by a user's recorded trips in one calendar month (UTC)"),
		mcp.WithString("user_id",
			mcp.Description("User whose trips to total. Omit or use \"anonymous\" for anonymous trips"),
		),
		mcp.WithNumber("month",
			mcp.Description("Month 1-12, defaults to the current month"),
		),
		mcp.WithNumber("year",
			mcp.Description("Four digit year, defaults to the current year"),
		),
	)
}

// MonthlySummaryOutput is the monthly_summary result
type MonthlySummaryOutput struct {
	UserID *string `json:"user_id"`
	Month  int     `json:"month"`
	Year   int     `json:"year"`
	ranking.MonthlySummary
}

func (r *Registry) handleMonthlySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "monthly_summary")

	now := r.now().UTC()
	month := req.GetInt("month", int(now.Month()))
	year := req.GetInt("year", now.Year())
	if month < 1 || month > 12 {
		return errorResult(logger, core.NewValidationError(core.ErrInvalidParameter, fmt.Sprintf("month must be between 1 and 12, got %d", month)))
	}
	if year < 1970 || year > 9999 {
		return errorResult(logger, core.NewValidationError(core.ErrInvalidParameter, fmt.Sprintf("invalid year %d", year)))
	}

	owner := trip.Owner(req.GetString("user_id", ""))
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	trips, err := r.trips.Between(ctx, owner, from, from.AddDate(0, 1, 0))
	if err != nil {
		return errorResult(logger, err)
	}

	return jsonResult(logger, MonthlySummaryOutput{
		UserID:         owner,
		Month:          month,
		Year:           year,
		MonthlySummary: ranking.AggregateMonthly(trips, time.Month(month), year),
	})
}
