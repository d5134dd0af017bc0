package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/asrgot/internal/engine"
	"github.com/HendryAvila/asrgot/internal/history"
)

// HistoryTool handles the asrgot_history MCP tool.
// It lists recorded runs, or shows one run in detail.
type HistoryTool struct {
	engine *engine.Engine
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(e *engine.Engine) *HistoryTool {
	return &HistoryTool{engine: e}
}

// Definition returns the MCP tool definition for asrgot_history.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("asrgot_history",
		mcp.WithDescription(
			"Show recorded pipeline runs. Without run_id, lists the most recent runs. "+
				"With run_id, shows that run's stage trace and any feedback applied to its session. "+
				"Runs outlive their sessions.",
		),
		mcp.WithNumber("run_id",
			mcp.Description("Run to show in detail"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum runs to list (default: 10)"),
		),
	)
}

// Handle processes the asrgot_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := intArg(req, "run_id", 0); id > 0 {
		run, err := t.engine.Run(int64(id))
		if err != nil {
			return errorResult("load run", err), nil
		}
		return mcp.NewToolResultText(formatRun(run)), nil
	}

	runs, err := t.engine.History(intArg(req, "limit", 10))
	if err != nil {
		return errorResult("list runs", err), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No runs recorded yet."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Recent Runs (%d)\n\n", len(runs))
	sb.WriteString("| ID | Status | Query | Nodes | Confidence | When |\n")
	sb.WriteString("|----|--------|-------|-------|------------|------|\n")
	for _, r := range runs {
		fmt.Fprintf(&sb, "| %d | %s | %s | %d | %s | %s |\n",
			r.ID, r.Status, truncate(r.Query, 40), r.NodeCount, fmtVector(r.FinalConfidence), r.CreatedAt)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatRun(run *history.Run) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Run #%d\n\n", run.ID)
	fmt.Fprintf(&sb, "- **Session**: `%s`\n", run.SessionID)
	fmt.Fprintf(&sb, "- **Query**: %s\n", run.Query)
	fmt.Fprintf(&sb, "- **Status**: %s\n", run.Status)
	if run.Error != nil {
		fmt.Fprintf(&sb, "- **Error**: %s\n", *run.Error)
	}
	fmt.Fprintf(&sb, "- **Graph**: %d nodes, %d edges\n", run.NodeCount, run.EdgeCount)
	if len(run.FinalConfidence) > 0 {
		fmt.Fprintf(&sb, "- **Confidence**: %s\n", fmtVector(run.FinalConfidence))
	}
	if run.Verdict != "" {
		fmt.Fprintf(&sb, "- **Verdict**: %s\n", run.Verdict)
	}
	fmt.Fprintf(&sb, "- **Recorded**: %s\n", run.CreatedAt)

	if len(run.Stages) > 0 {
		sb.WriteString("\n### Stages\n\n")
		for _, st := range run.Stages {
			fmt.Fprintf(&sb, "%d. **%s**: %s\n", st.Stage, st.Name, st.Summary)
		}
	}
	if len(run.Feedback) > 0 {
		sb.WriteString("\n### Feedback\n\n")
		for _, fb := range run.Feedback {
			status := "applied"
			if !fb.Applied {
				status = "rejected"
			}
			fmt.Fprintf(&sb, "- %s `%s` = %s (%s)\n", fb.Target, fb.TargetID, fb.Value, status)
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
