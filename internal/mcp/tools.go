package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wondertwin-ai/ecoscan/internal/client"
	"github.com/wondertwin-ai/ecoscan/internal/offers"
)

// Tool describes an MCP tool definition.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// ToolResult is returned from tool invocations.
type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ToolContent holds a single piece of tool output.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textResult(text string) ToolResult {
	return ToolResult{Content: []ToolContent{{Type: "text", Text: text}}}
}

func errorResult(format string, args ...any) ToolResult {
	r := textResult(fmt.Sprintf(format, args...))
	r.IsError = true
	return r
}

type toolHandler func(ctx context.Context, c *client.Client, params json.RawMessage) ToolResult

type toolEntry struct {
	Tool    Tool
	Handler toolHandler
}

const emptySchema = `{"type": "object", "properties": {}, "required": []}`

func allTools() []toolEntry {
	return []toolEntry{
		{
			Tool: Tool{
				Name:        "ecoscan_health",
				Description: "Check that the ecoscan server is reachable via GET /admin/health.",
				InputSchema: json.RawMessage(emptySchema),
			},
			Handler: handleHealth,
		},
		{
			Tool: Tool{
				Name:        "ecoscan_state",
				Description: "Show total points, carbon score, and the available and upcoming offers.",
				InputSchema: json.RawMessage(emptySchema),
			},
			Handler: handleState,
		},
		{
			Tool: Tool{
				Name:        "ecoscan_add_points",
				Description: "Credit points to the session and return the recalculated offers.",
				InputSchema: json.RawMessage(`{"type": "object", "properties": {"points": {"type": "integer", "minimum": 0, "description": "Points to add"}}, "required": ["points"]}`),
			},
			Handler: handleAddPoints,
		},
		{
			Tool: Tool{
				Name:        "ecoscan_add_carbon",
				Description: "Add to the cumulative carbon score (kg CO2e saved).",
				InputSchema: json.RawMessage(`{"type": "object", "properties": {"score": {"type": "number", "minimum": 0, "description": "Carbon saving to add"}}, "required": ["score"]}`),
			},
			Handler: handleAddCarbon,
		},
		{
			Tool: Tool{
				Name:        "ecoscan_export_state",
				Description: "Dump the full store snapshot and scan history from GET /admin/state.",
				InputSchema: json.RawMessage(emptySchema),
			},
			Handler: handleExport,
		},
		{
			Tool: Tool{
				Name:        "ecoscan_seed",
				Description: "Replace the session by POSTing a JSON snapshot file to /admin/state.",
				InputSchema: json.RawMessage(`{"type": "object", "properties": {"file": {"type": "string", "description": "Path to the JSON snapshot file"}}, "required": ["file"]}`),
			},
			Handler: handleSeed,
		},
		{
			Tool: Tool{
				Name:        "ecoscan_reset",
				Description: "Reset the session to zero points and reload the configured catalog.",
				InputSchema: json.RawMessage(emptySchema),
			},
			Handler: handleReset,
		},
	}
}

func handleHealth(ctx context.Context, c *client.Client, _ json.RawMessage) ToolResult {
	ok, body := c.Health(ctx)
	if !ok {
		return errorResult("unhealthy: %s", body)
	}
	return textResult("healthy " + body)
}

func handleState(ctx context.Context, c *client.Client, _ json.RawMessage) ToolResult {
	st, err := c.State(ctx)
	if err != nil {
		return errorResult("Error fetching state: %v", err)
	}
	return textResult(formatState(st))
}

type addPointsParams struct {
	Points *int `json:"points"`
}

func handleAddPoints(ctx context.Context, c *client.Client, params json.RawMessage) ToolResult {
	var p addPointsParams
	if len(params) > 0 {
		json.Unmarshal(params, &p)
	}
	if p.Points == nil {
		return errorResult("Error: 'points' argument is required")
	}
	st, err := c.AddPoints(ctx, *p.Points)
	if err != nil {
		return errorResult("Error adding points: %v", err)
	}
	return textResult(formatState(st))
}

type addCarbonParams struct {
	Score *float64 `json:"score"`
}

func handleAddCarbon(ctx context.Context, c *client.Client, params json.RawMessage) ToolResult {
	var p addCarbonParams
	if len(params) > 0 {
		json.Unmarshal(params, &p)
	}
	if p.Score == nil {
		return errorResult("Error: 'score' argument is required")
	}
	st, err := c.AddCarbon(ctx, *p.Score)
	if err != nil {
		return errorResult("Error updating carbon score: %v", err)
	}
	return textResult(formatState(st))
}

func handleExport(ctx context.Context, c *client.Client, _ json.RawMessage) ToolResult {
	data, err := c.Export(ctx)
	if err != nil {
		return errorResult("Error exporting state: %v", err)
	}
	return textResult(string(data))
}

type seedParams struct {
	File string `json:"file"`
}

func handleSeed(ctx context.Context, c *client.Client, params json.RawMessage) ToolResult {
	var p seedParams
	if len(params) > 0 {
		json.Unmarshal(params, &p)
	}
	if p.File == "" {
		return errorResult("Error: 'file' argument is required")
	}
	resp, err := c.Seed(ctx, p.File)
	if err != nil {
		return errorResult("Error seeding: %v", err)
	}
	return textResult("Seeded: " + resp)
}

func handleReset(ctx context.Context, c *client.Client, _ json.RawMessage) ToolResult {
	resp, err := c.Reset(ctx)
	if err != nil {
		return errorResult("Error resetting: %v", err)
	}
	return textResult("Reset: " + resp)
}

func formatState(st *offers.AppState) string {
	var out strings.Builder
	fmt.Fprintf(&out, "points: %d\ncarbon: %.2f\n", st.TotalPoints, st.CarbonScore)

	out.WriteString("\nAvailable:\n")
	if len(st.AvailableOffers) == 0 {
		out.WriteString("  (none)\n")
	}
	for _, o := range st.AvailableOffers {
		fmt.Fprintf(&out, "  %-12s %-30s %5d pts\n", o.ID, o.Title, o.PointsRequired)
	}

	out.WriteString("\nUpcoming:\n")
	if len(st.UpcomingOffers) == 0 {
		out.WriteString("  (none)\n")
	}
	for _, o := range st.UpcomingOffers {
		fmt.Fprintf(&out, "  %-12s %-30s %5d pts (%d to go)\n", o.ID, o.Title, o.PointsRequired, o.PointsNeeded)
	}
	return out.String()
}
