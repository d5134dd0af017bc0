package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the asrgot-review MCP prompt.
// It instructs the AI to inspect an existing session's graph.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("asrgot-review",
		mcp.WithPromptDescription(
			"Review the knowledge graph of an earlier analysis. "+
				"Shows the weakest hypotheses and helps you correct confidences.",
		),
		mcp.WithArgument("session_id",
			mcp.ArgumentDescription("Session to review. Defaults to the most recent one in asrgot://sessions."),
		),
	)
}

// Handle processes the asrgot-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	target := "the most recent session listed in the `asrgot://sessions` resource"
	if id := req.Params.Arguments["session_id"]; id != "" {
		target = fmt.Sprintf("session `%s`", id)
	}

	return &mcp.GetPromptResult{
		Description: "ASR-GoT graph review",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `asrgot_get_graph_state` for " + target + ".\n\n" +
						"Then:\n" +
						"1. Summarize the graph: node and edge counts, layers, interdisciplinary bridges\n" +
						"2. Show the hypotheses with the lowest mean confidence and their falsification criteria\n" +
						"3. Show nodes flagged with biases and knowledge-gap placeholders\n" +
						"4. Ask me which confidences I want to correct, and apply each correction with " +
						"`asrgot_incorporate_feedback`",
				),
			},
		},
	}, nil
}
