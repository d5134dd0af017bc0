// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates the engine and its concrete
// collaborators and injects them into the tools, prompts and resources.
// No reasoning logic lives here, only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/asrgot/internal/config"
	"github.com/HendryAvila/asrgot/internal/engine"
	"github.com/HendryAvila/asrgot/internal/history"
	"github.com/HendryAvila/asrgot/internal/logging"
	"github.com/HendryAvila/asrgot/internal/prompts"
	"github.com/HendryAvila/asrgot/internal/resources"
	"github.com/HendryAvila/asrgot/internal/templates"
	"github.com/HendryAvila/asrgot/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewEngine builds the engine described by cfg.
//
// The run ledger is an independent subsystem: if it fails to open, the
// engine still works without history. A warning is logged and the ledger
// tools report that history is disabled.
func NewEngine(cfg config.Config, log *logging.Logger) *engine.Engine {
	opts := []engine.Option{engine.WithLogger(log)}
	if cfg.History.Enabled {
		hcfg := history.DefaultConfig()
		hcfg.DSN = cfg.History.DSN
		store, err := history.New(hcfg)
		if err != nil {
			log.Warn("run history disabled", "dsn", cfg.History.DSN, "error", err)
		} else {
			opts = append(opts, engine.WithHistory(store))
		}
	}
	return engine.New(cfg, opts...)
}

// New creates the MCP server with every tool, prompt and resource
// registered against e.
func New(cfg config.Config, e *engine.Engine) (*server.MCPServer, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("creating template renderer: %w", err)
	}

	s := server.NewMCPServer(
		cfg.Server.Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Reasoning ---

	queryTool := tools.NewProcessQueryTool(e, renderer)
	s.AddTool(queryTool.Definition(), queryTool.Handle)

	graphTool := tools.NewGraphStateTool(e)
	s.AddTool(graphTool.Definition(), graphTool.Handle)

	feedbackTool := tools.NewFeedbackTool(e)
	s.AddTool(feedbackTool.Definition(), feedbackTool.Handle)

	// --- Sessions & history ---

	exportTool := tools.NewExportTool(e)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	closeTool := tools.NewCloseSessionTool(e)
	s.AddTool(closeTool.Definition(), closeTool.Handle)

	historyTool := tools.NewHistoryTool(e)
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	// --- Prompts ---

	analyzePrompt := prompts.NewAnalyzePrompt()
	s.AddPrompt(analyzePrompt.Definition(), analyzePrompt.Handle)

	reviewPrompt := prompts.NewReviewPrompt()
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	// --- Resources ---

	rh := resources.NewHandler(e)
	s.AddResource(rh.SessionsResource(), rh.HandleSessions)
	s.AddResource(rh.HistoryResource(), rh.HandleHistory)

	return s, nil
}

// serverInstructions returns the system instructions that tell the AI
// how to use the ASR-GoT tools.
func serverInstructions() string {
	return fmt.Sprintf(`You have access to ASR-GoT (v%s), a graph-of-thoughts reasoning engine for research questions.

## How it works
asrgot_process_query builds a knowledge graph in eight stages:
1. Initialization: a root node for the question
2. Decomposition: one node per analysis dimension
3. Hypothesis generation: falsifiable hypotheses with impact and evaluation plans
4. Evidence integration: evidence nodes, Bayesian confidence updates, interdisciplinary bridges
5. Pruning and merging: weak nodes removed, near-duplicates folded together
6. Subgraph extraction: high-confidence, high-impact and interdisciplinary views
7. Composition: a structured report with citations
8. Reflection: an audit producing the final confidence

Confidence is always four numbers in [0,1]: empirical support, theoretical basis,
methodological rigor, consensus alignment.

## Workflow
1. Call asrgot_process_query with the user's question. Keep the session_id.
2. Present the composition and the reflection verdict. Mention failed checks.
3. Use asrgot_get_graph_state or asrgot_export_graph when the user wants the graph itself.
4. When the user disagrees with a confidence, apply it with asrgot_incorporate_feedback.
   Feedback changes only the targeted node or edge; nothing is recomputed.
5. asrgot_history lists earlier runs, which survive after their sessions expire.

Evidence in this build is simulated. Say so when presenting findings.`, Version)
}
