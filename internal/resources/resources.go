// Package resources implements MCP resource handlers for the ASR-GoT engine.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (asrgot://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/asrgot/internal/engine"
)

// Resource URIs.
const (
	SessionsURI = "asrgot://sessions"
	HistoryURI  = "asrgot://history"
)

// historyLimit caps the runs listed by the history resource.
const historyLimit = 20

// Handler manages ASR-GoT resource endpoints.
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

// SessionsResource returns the MCP resource definition for live sessions.
func (h *Handler) SessionsResource() mcp.Resource {
	return mcp.NewResource(
		SessionsURI,
		"ASR-GoT Sessions",
		mcp.WithResourceDescription("Live reasoning sessions, most recently used first"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleSessions returns the live sessions as JSON.
func (h *Handler) HandleSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.engine.Sessions())
}

// HistoryResource returns the MCP resource definition for recorded runs.
func (h *Handler) HistoryResource() mcp.Resource {
	return mcp.NewResource(
		HistoryURI,
		"ASR-GoT Run History",
		mcp.WithResourceDescription("Most recent recorded pipeline runs, newest first"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleHistory returns the most recent runs as JSON.
func (h *Handler) HandleHistory(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs, err := h.engine.History(historyLimit)
	if errors.Is(err, engine.ErrHistoryDisabled) {
		return errorResource(req.Params.URI, "run history is disabled"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return jsonResource(req.Params.URI, runs)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
