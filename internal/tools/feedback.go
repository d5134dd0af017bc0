package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/asrgot/internal/engine"
)

// FeedbackTool handles the asrgot_incorporate_feedback MCP tool.
type FeedbackTool struct {
	engine *engine.Engine
}

// NewFeedbackTool creates a FeedbackTool.
func NewFeedbackTool(e *engine.Engine) *FeedbackTool {
	return &FeedbackTool{engine: e}
}

// Definition returns the MCP tool definition for asrgot_incorporate_feedback.
func (t *FeedbackTool) Definition() mcp.Tool {
	return mcp.NewTool("asrgot_incorporate_feedback",
		mcp.WithDescription(
			"Overwrite the confidence of one node or edge in a session's graph. "+
				"Node values are a JSON list of four numbers in [0,1] or a single number "+
				"applied to all four dimensions. Edge values are a single number. "+
				"Nothing is recomputed: only the targeted element changes.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID returned by asrgot_process_query"),
		),
		mcp.WithString("node_id",
			mcp.Description("Node to update (e.g. 'n0'). Takes precedence over edge_id."),
		),
		mcp.WithString("edge_id",
			mcp.Description("Edge or hyperedge to update"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("New confidence, e.g. '0.8' or '[0.9, 0.7, 0.8, 0.6]'"),
		),
		mcp.WithString("type",
			mcp.Description("Feedback type (default: confidence). Other types are ignored."),
		),
	)
}

// Handle processes the asrgot_incorporate_feedback tool call.
func (t *FeedbackTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	value, err := valueArg(req, "value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fb := engine.Feedback{
		NodeID: req.GetString("node_id", ""),
		EdgeID: req.GetString("edge_id", ""),
		Type:   req.GetString("type", engine.FeedbackConfidence),
		Value:  value,
	}

	if err := t.engine.IncorporateFeedback(ctx, id, fb); err != nil {
		return errorResult("incorporate feedback", err), nil
	}

	switch {
	case fb.Type != engine.FeedbackConfidence:
		return mcp.NewToolResultText(fmt.Sprintf("Feedback type %q is not supported; nothing changed.", fb.Type)), nil
	case fb.NodeID != "":
		return mcp.NewToolResultText(fmt.Sprintf("Confidence of node `%s` updated.", fb.NodeID)), nil
	default:
		return mcp.NewToolResultText(fmt.Sprintf("Confidence of edge `%s` updated.", fb.EdgeID)), nil
	}
}
