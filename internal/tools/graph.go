package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/asrgot/internal/engine"
)

// ─── GraphStateTool ──────────────────────────────────────────────────────────

// GraphStateTool handles the asrgot_get_graph_state MCP tool.
type GraphStateTool struct {
	engine *engine.Engine
}

// NewGraphStateTool creates a GraphStateTool.
func NewGraphStateTool(e *engine.Engine) *GraphStateTool {
	return &GraphStateTool{engine: e}
}

// Definition returns the MCP tool definition for asrgot_get_graph_state.
func (t *GraphStateTool) Definition() mcp.Tool {
	return mcp.NewTool("asrgot_get_graph_state",
		mcp.WithDescription(
			"Return the full knowledge graph of a session: nodes, edges, hyperedges, "+
				"layers and summary counts.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID returned by asrgot_process_query"),
		),
	)
}

// Handle processes the asrgot_get_graph_state tool call.
func (t *GraphStateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	st, err := t.engine.GetGraphState(id)
	if err != nil {
		return errorResult("get graph state", err), nil
	}
	return jsonResult(st)
}

// ─── ExportTool ──────────────────────────────────────────────────────────────

// ExportTool handles the asrgot_export_graph MCP tool.
type ExportTool struct {
	engine *engine.Engine
}

// NewExportTool creates an ExportTool.
func NewExportTool(e *engine.Engine) *ExportTool {
	return &ExportTool{engine: e}
}

// Definition returns the MCP tool definition for asrgot_export_graph.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("asrgot_export_graph",
		mcp.WithDescription(
			"Export a session's graph for visualization. With include_cliques, every "+
				"hyperedge is also expanded into virtual pairwise edges for tools that "+
				"cannot draw hyperedges.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID returned by asrgot_process_query"),
		),
		mcp.WithBoolean("include_cliques",
			mcp.Description("Expand hyperedges into virtual clique edges (default: true)"),
		),
	)
}

// Handle processes the asrgot_export_graph tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	doc, err := t.engine.Export(id, boolArg(req, "include_cliques", true))
	if err != nil {
		return errorResult("export graph", err), nil
	}
	return jsonResult(doc)
}

// ─── CloseSessionTool ────────────────────────────────────────────────────────

// CloseSessionTool handles the asrgot_close_session MCP tool.
type CloseSessionTool struct {
	engine *engine.Engine
}

// NewCloseSessionTool creates a CloseSessionTool.
func NewCloseSessionTool(e *engine.Engine) *CloseSessionTool {
	return &CloseSessionTool{engine: e}
}

// Definition returns the MCP tool definition for asrgot_close_session.
func (t *CloseSessionTool) Definition() mcp.Tool {
	return mcp.NewTool("asrgot_close_session",
		mcp.WithDescription("Discard a session and its graph. Recorded run history is kept."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID to close"),
		),
	)
}

// Handle processes the asrgot_close_session tool call.
func (t *CloseSessionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	if err := t.engine.CloseSession(id); err != nil {
		return errorResult("close session", err), nil
	}
	return mcp.NewToolResultText("Session `" + id + "` closed."), nil
}
