package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/asrgot/internal/engine"
	"github.com/HendryAvila/asrgot/internal/templates"
)

// ProcessQueryTool handles the asrgot_process_query MCP tool.
// It runs the full eight-stage pipeline in a new session.
type ProcessQueryTool struct {
	engine   *engine.Engine
	renderer templates.Renderer
}

// NewProcessQueryTool creates a ProcessQueryTool.
func NewProcessQueryTool(e *engine.Engine, renderer templates.Renderer) *ProcessQueryTool {
	return &ProcessQueryTool{engine: e, renderer: renderer}
}

// Definition returns the MCP tool definition for registration.
func (t *ProcessQueryTool) Definition() mcp.Tool {
	return mcp.NewTool("asrgot_process_query",
		mcp.WithDescription(
			"Run the ASR-GoT reasoning pipeline on a research question. "+
				"Builds a knowledge graph through eight stages (initialization, decomposition, "+
				"hypotheses, evidence, pruning, subgraph extraction, composition, reflection) "+
				"and returns the composed report, the stage trace and a four-part confidence "+
				"(empirical support, theoretical basis, methodological rigor, consensus alignment). "+
				"The returned session_id is needed for asrgot_get_graph_state and asrgot_incorporate_feedback.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The research question to analyze"),
		),
		mcp.WithString("context",
			mcp.Description("Optional JSON object with extra context for the run"),
		),
		mcp.WithString("parameters",
			mcp.Description(
				"Optional JSON object overriding pipeline parameters, e.g. "+
					`{"hypotheses_per_dimension": 2, "evidence_max_iterations": 3, "pruning_threshold": 0.2, `+
					`"merging_threshold": 0.8, "disciplines": ["biology"], "seed": 42}`,
			),
		),
		mcp.WithBoolean("include_graph",
			mcp.Description("Include the full graph state in the JSON response (default: false)"),
		),
		mcp.WithString("format",
			mcp.Description("Response format: 'json' (default) or 'markdown' for a readable report"),
			mcp.Enum("json", "markdown"),
		),
	)
}

// Handle processes the asrgot_process_query tool call.
func (t *ProcessQueryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	qctx, err := objectArg(req, "context")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	params, err := objectArg(req, "parameters")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	format := req.GetString("format", "json")
	if format != "json" && format != "markdown" {
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q: use 'json' or 'markdown'", format)), nil
	}

	res, err := t.engine.ProcessQuery(ctx, query, qctx, params)
	if err != nil {
		return errorResult("process query", err), nil
	}

	if format == "markdown" {
		text, err := t.renderer.Render(templates.Report, templates.ReportData{
			SessionID:   res.Result.SessionID,
			Query:       query,
			Composition: res.Result.Composition,
			Audit:       res.Result.Reflection,
			Confidence:  res.Confidence,
		})
		if err != nil {
			return nil, fmt.Errorf("rendering report: %w", err)
		}
		return mcp.NewToolResultText(text), nil
	}

	out := *res
	if !boolArg(req, "include_graph", false) {
		out.GraphState = nil
	}
	return jsonResult(queryResponse{
		Result:  out,
		Summary: summarize(res),
	})
}

type queryResponse struct {
	engine.Result
	Summary string `json:"summary"`
}

func summarize(res *engine.Result) string {
	md := res.GraphState.Metadata
	verdict := "no reflection audit"
	if res.Result.Reflection != nil {
		verdict = res.Result.Reflection.Verdict
	}
	return fmt.Sprintf("Session %s: %d nodes, %d edges, %d hyperedges. Confidence %s. %s",
		res.Result.SessionID, md.NodeCount, md.EdgeCount, md.HyperedgeCount,
		fmtVector(res.Confidence.Slice()), verdict)
}
