package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/asrgot/internal/config"
	"github.com/HendryAvila/asrgot/internal/engine"
	"github.com/HendryAvila/asrgot/internal/history"
	"github.com/HendryAvila/asrgot/internal/templates"
)

// --- Test helpers ---

// newTestEngine creates an engine with a temp-file run ledger.
func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	h, err := history.New(history.Config{DSN: filepath.Join(t.TempDir(), "runs.db"), MaxResults: 20})
	if err != nil {
		t.Fatalf("setup: history: %v", err)
	}
	e := engine.New(config.Default(), engine.WithHistory(h))
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// newQueryTool creates a ProcessQueryTool with the embedded renderer.
func newQueryTool(t *testing.T, e *engine.Engine) *ProcessQueryTool {
	t.Helper()
	r, err := templates.NewRenderer()
	if err != nil {
		t.Fatalf("setup: renderer: %v", err)
	}
	return NewProcessQueryTool(e, r)
}

// makeReq builds a CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

const smallParams = `{"hypotheses_per_dimension": 2, "evidence_max_iterations": 1, "seed": 3}`

// runQuery processes a small query and returns its session ID.
func runQuery(t *testing.T, e *engine.Engine) string {
	t.Helper()
	tool := newQueryTool(t, e)
	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"query":      "Explore photosynthesis efficiency",
		"parameters": smallParams,
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", resultText(result))
	}
	var out struct {
		Result struct {
			SessionID string `json:"session_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(resultText(result)), &out); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if out.Result.SessionID == "" {
		t.Fatal("response has no session_id")
	}
	return out.Result.SessionID
}

// --- Definitions ---

func TestDefinitions(t *testing.T) {
	e := newTestEngine(t)
	defs := map[string]mcp.Tool{
		"asrgot_process_query":        newQueryTool(t, e).Definition(),
		"asrgot_get_graph_state":      NewGraphStateTool(e).Definition(),
		"asrgot_incorporate_feedback": NewFeedbackTool(e).Definition(),
		"asrgot_export_graph":         NewExportTool(e).Definition(),
		"asrgot_close_session":        NewCloseSessionTool(e).Definition(),
		"asrgot_history":              NewHistoryTool(e).Definition(),
	}
	for want, def := range defs {
		if def.Name != want {
			t.Errorf("name = %q, want %q", def.Name, want)
		}
		if def.Description == "" {
			t.Errorf("%s has no description", want)
		}
	}
}

// --- ProcessQueryTool ---

func TestProcessQueryTool_Handle(t *testing.T) {
	e := newTestEngine(t)
	tool := newQueryTool(t, e)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"query":      "Explore photosynthesis efficiency",
		"context":    `{"audience": "botanists"}`,
		"parameters": smallParams,
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := resultText(result)
	if result.IsError {
		t.Fatalf("expected success, got error: %s", text)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	for _, key := range []string{"result", "reasoning_trace", "confidence", "summary"} {
		if _, ok := out[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}
	if _, ok := out["graph_state"]; ok {
		t.Error("graph_state should be omitted unless include_graph is set")
	}
	if trace, _ := out["reasoning_trace"].([]any); len(trace) != 8 {
		t.Errorf("trace length = %d, want 8", len(trace))
	}
	if summary, _ := out["summary"].(string); !strings.Contains(summary, "Session ") {
		t.Errorf("summary = %q", out["summary"])
	}
}

func TestProcessQueryTool_IncludeGraph(t *testing.T) {
	e := newTestEngine(t)
	result, _ := newQueryTool(t, e).Handle(context.Background(), makeReq(map[string]interface{}{
		"query":         "q",
		"parameters":    smallParams,
		"include_graph": true,
	}))
	if !strings.Contains(resultText(result), `"graph_state"`) {
		t.Error("expected graph_state in the response")
	}
}

func TestProcessQueryTool_Markdown(t *testing.T) {
	e := newTestEngine(t)
	result, err := newQueryTool(t, e).Handle(context.Background(), makeReq(map[string]interface{}{
		"query":      "Explore photosynthesis efficiency",
		"parameters": smallParams,
		"format":     "markdown",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := resultText(result)
	if result.IsError {
		t.Fatalf("expected success, got error: %s", text)
	}
	for _, want := range []string{"# ASR-GoT Analysis: Explore photosynthesis", "## Executive Summary", "## Knowledge Gaps", "## Reflection", "**Verdict:**"} {
		if !strings.Contains(text, want) {
			t.Errorf("markdown report missing %q", want)
		}
	}
}

func TestProcessQueryTool_Errors(t *testing.T) {
	e := newTestEngine(t)
	tool := newQueryTool(t, e)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing query", map[string]interface{}{}, "'query' is required"},
		{"bad context", map[string]interface{}{"query": "q", "context": "[1,2"}, "context must be a JSON object"},
		{"bad format", map[string]interface{}{"query": "q", "format": "pdf"}, "unknown format"},
		{"bad parameters", map[string]interface{}{"query": "q", "parameters": `{"pruning_threshold": 2}`}, "Invalid input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Handle(context.Background(), makeReq(tt.args))
			if err != nil {
				t.Fatalf("Handle failed: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if !strings.Contains(resultText(result), tt.want) {
				t.Errorf("error = %q, want it to contain %q", resultText(result), tt.want)
			}
		})
	}
	if n := len(e.Sessions()); n != 0 {
		t.Errorf("sessions = %d, want 0 after rejected queries", n)
	}
}

// --- GraphStateTool / ExportTool ---

func TestGraphStateTool_Handle(t *testing.T) {
	e := newTestEngine(t)
	id := runQuery(t, e)
	tool := NewGraphStateTool(e)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"session_id": id}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	var st struct {
		Nodes    []map[string]any `json:"nodes"`
		Metadata struct {
			NodeCount int `json:"node_count"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(resultText(result)), &st); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if st.Metadata.NodeCount != len(st.Nodes) || st.Metadata.NodeCount < 22 {
		t.Errorf("node_count = %d, nodes = %d", st.Metadata.NodeCount, len(st.Nodes))
	}

	result, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"session_id": "nope"}))
	if !result.IsError || !strings.Contains(resultText(result), "Not found") {
		t.Errorf("unknown session: %q", resultText(result))
	}
}

func TestExportTool_Handle(t *testing.T) {
	e := newTestEngine(t)
	id := runQuery(t, e)

	result, err := NewExportTool(e).Handle(context.Background(), makeReq(map[string]interface{}{
		"session_id":      id,
		"include_cliques": false,
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", resultText(result))
	}
	if strings.Contains(resultText(result), "virtual_edges") {
		t.Error("virtual edges should be absent without include_cliques")
	}
}

// --- FeedbackTool ---

func TestFeedbackTool_Handle(t *testing.T) {
	e := newTestEngine(t)
	id := runQuery(t, e)
	tool := NewFeedbackTool(e)

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"session_id": id,
		"node_id":    "n0",
		"value":      "[1, 1, 1, 1]",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", resultText(result))
	}
	if !strings.Contains(resultText(result), "node `n0`") {
		t.Errorf("text = %q", resultText(result))
	}

	st, err := e.GetGraphState(id)
	if err != nil {
		t.Fatalf("GetGraphState: %v", err)
	}
	for _, n := range st.Nodes {
		if n.ID == "n0" && n.Confidence.Mean() != 1 {
			t.Errorf("n0 confidence = %v, want all ones", n.Confidence)
		}
	}
}

func TestFeedbackTool_EdgeAndIgnoredType(t *testing.T) {
	e := newTestEngine(t)
	id := runQuery(t, e)
	tool := NewFeedbackTool(e)

	result, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"session_id": id,
		"edge_id":    "e_root_dim_1",
		"value":      "0.25",
	}))
	if result.IsError || !strings.Contains(resultText(result), "edge `e_root_dim_1`") {
		t.Errorf("edge feedback: %q", resultText(result))
	}

	result, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"session_id": id,
		"node_id":    "n0",
		"value":      "0.1",
		"type":       "rating",
	}))
	if result.IsError || !strings.Contains(resultText(result), "not supported") {
		t.Errorf("ignored type: %q", resultText(result))
	}
}

func TestFeedbackTool_Errors(t *testing.T) {
	e := newTestEngine(t)
	id := runQuery(t, e)
	tool := NewFeedbackTool(e)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing session", map[string]interface{}{"node_id": "n0", "value": "0.5"}, "'session_id' is required"},
		{"missing value", map[string]interface{}{"session_id": id, "node_id": "n0"}, "value is required"},
		{"malformed value", map[string]interface{}{"session_id": id, "node_id": "n0", "value": "[0.1,"}, "value must be"},
		{"out of range", map[string]interface{}{"session_id": id, "node_id": "n0", "value": "1.5"}, "Invalid input"},
		{"unknown node", map[string]interface{}{"session_id": id, "node_id": "ghost", "value": "0.5"}, "Not found"},
		{"unknown session", map[string]interface{}{"session_id": "nope", "node_id": "n0", "value": "0.5"}, "Not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Handle(context.Background(), makeReq(tt.args))
			if err != nil {
				t.Fatalf("Handle failed: %v", err)
			}
			if !result.IsError || !strings.Contains(resultText(result), tt.want) {
				t.Errorf("result = %q, want error containing %q", resultText(result), tt.want)
			}
		})
	}
}

// --- CloseSessionTool ---

func TestCloseSessionTool_Handle(t *testing.T) {
	e := newTestEngine(t)
	id := runQuery(t, e)
	tool := NewCloseSessionTool(e)

	result, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"session_id": id}))
	if result.IsError {
		t.Fatalf("expected success, got error: %s", resultText(result))
	}
	result, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"session_id": id}))
	if !result.IsError {
		t.Error("closing twice should fail")
	}
}

// --- HistoryTool ---

func TestHistoryTool_ListAndDetail(t *testing.T) {
	e := newTestEngine(t)
	tool := NewHistoryTool(e)

	result, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !strings.Contains(resultText(result), "No runs recorded yet") {
		t.Errorf("empty history: %q", resultText(result))
	}

	id := runQuery(t, e)
	result, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"limit": float64(5)}))
	text := resultText(result)
	if !strings.Contains(text, "Recent Runs (1)") || !strings.Contains(text, "photosynthesis") {
		t.Errorf("list: %q", text)
	}

	runs, err := e.History(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("History: %v, %d runs", err, len(runs))
	}
	result, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"run_id": float64(runs[0].ID)}))
	text = resultText(result)
	if !strings.Contains(text, id) || !strings.Contains(text, "8. **Reflection**") {
		t.Errorf("detail: %q", text)
	}

	result, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"run_id": float64(999)}))
	if !result.IsError {
		t.Error("unknown run should be an error")
	}
}

func TestHistoryTool_Disabled(t *testing.T) {
	e := engine.New(config.Default())
	result, _ := NewHistoryTool(e).Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !result.IsError || !strings.Contains(resultText(result), "history is disabled") {
		t.Errorf("result = %q", resultText(result))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("truncate = %q", got)
	}
}
