// Package prompts implements MCP prompt handlers for ASR-GoT analyses.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// AnalyzePrompt handles the asrgot-analyze MCP prompt.
// It guides the AI through running a query and presenting the report.
type AnalyzePrompt struct{}

// NewAnalyzePrompt creates an AnalyzePrompt.
func NewAnalyzePrompt() *AnalyzePrompt {
	return &AnalyzePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *AnalyzePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("asrgot-analyze",
		mcp.WithPromptDescription(
			"Analyze a research question with the ASR-GoT pipeline. "+
				"Runs the eight reasoning stages and walks you through the findings, "+
				"knowledge gaps and the reflection audit.",
		),
		mcp.WithArgument("question",
			mcp.ArgumentDescription("The research question to analyze"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("disciplines",
			mcp.ArgumentDescription("Comma-separated disciplines to seed the analysis with (optional)"),
		),
	)
}

// Handle processes the asrgot-analyze prompt request.
func (p *AnalyzePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	question := strings.TrimSpace(req.Params.Arguments["question"])
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	params := "{}"
	if raw := req.Params.Arguments["disciplines"]; raw != "" {
		var disciplines []string
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				disciplines = append(disciplines, d)
			}
		}
		if len(disciplines) > 0 {
			data, err := json.Marshal(map[string]any{"disciplines": disciplines})
			if err != nil {
				return nil, fmt.Errorf("encoding parameters: %w", err)
			}
			params = string(data)
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("ASR-GoT analysis: %s", question),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to analyze this research question: %q\n\n"+
						"Please:\n"+
						"1. Run `asrgot_process_query` with query=%q and parameters='%s'\n"+
						"2. Present the executive summary and each analysis section with its key findings\n"+
						"3. List the knowledge gaps and the interdisciplinary insights, if any\n"+
						"4. Explain the four confidence values (empirical support, theoretical basis, "+
						"methodological rigor, consensus alignment) and the reflection verdict\n"+
						"5. Point out failed or warning checks and suggest what evidence would address them\n\n"+
						"Keep the session_id: I may want to correct confidences with `asrgot_incorporate_feedback`.",
					question, question, params,
				)),
			},
		},
	}, nil
}
