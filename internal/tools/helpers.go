// Package tools implements the MCP tool handlers over the reasoning engine.
//
// Each tool follows the same shape:
//   - a struct holding the *engine.Engine, injected via its constructor
//   - Definition() returns the mcp.Tool schema
//   - Handle() decodes arguments, calls one engine operation and renders
//     the outcome
//
// Structured arguments (query context, parameters, feedback values) travel
// as JSON strings so every MCP host can send them.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/asrgot/internal/apperr"
	"github.com/HendryAvila/asrgot/internal/engine"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// objectArg decodes a JSON object argument. Hosts that send a real object
// instead of a string are accepted too. A missing or blank argument is nil.
func objectArg(req mcp.CallToolRequest, key string) (map[string]any, error) {
	switch v := req.GetArguments()[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("%s must be a JSON object: %w", key, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%s must be a JSON object, got %T", key, v)
	}
}

// valueArg decodes a JSON scalar or list argument.
func valueArg(req mcp.CallToolRequest, key string) (any, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%s is required", key)
	}
	s, isString := raw.(string)
	if !isString {
		return raw, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("%s must be a number or a JSON list: %w", key, err)
	}
	return v, nil
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult maps an engine error to a tool error the host can show.
func errorResult(action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, engine.ErrHistoryDisabled):
		return mcp.NewToolResultError("Run history is disabled. Set `history.enabled: true` in the config to record runs.")
	case apperr.IsNotFound(err):
		return mcp.NewToolResultError(fmt.Sprintf("Not found: %v", err))
	case apperr.IsValidation(err):
		return mcp.NewToolResultError(fmt.Sprintf("Invalid input: %v", err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", action, err))
}

// fmtVector renders a confidence vector compactly.
func fmtVector(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%.2f", f)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
