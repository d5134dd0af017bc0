package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/asrgot/internal/apperr"
	"github.com/HendryAvila/asrgot/internal/config"
	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/history"
	"github.com/HendryAvila/asrgot/internal/pipeline"
	"github.com/HendryAvila/asrgot/internal/stages"
)

var smallRun = map[string]any{
	"hypotheses_per_dimension": 2,
	"evidence_max_iterations":  1,
	"seed":                     11,
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := New(config.Default(), opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func newHistory(t *testing.T) *history.Store {
	t.Helper()
	h, err := history.New(history.Config{DSN: filepath.Join(t.TempDir(), "runs.db"), MaxResults: 10})
	require.NoError(t, err)
	return h
}

func process(t *testing.T, e *Engine, query string) *Result {
	t.Helper()
	res, err := e.ProcessQuery(context.Background(), query, nil, smallRun)
	require.NoError(t, err)
	return res
}

// ─── Stage doubles ───────────────────────────────────────────────────────────

type failingStage struct{ panics bool }

func (failingStage) Name() string { return "Broken" }

func (f failingStage) Execute(context.Context, *graph.Store, *pipeline.RunContext) (pipeline.Result, error) {
	if f.panics {
		panic("stage blew up")
	}
	return pipeline.Result{}, errors.New("stage failed")
}

// gateStage blocks its first run until release is closed.
type gateStage struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGateStage() *gateStage {
	return &gateStage{started: make(chan struct{}), release: make(chan struct{})}
}

func (*gateStage) Name() string { return "Gate" }

func (g *gateStage) Execute(context.Context, *graph.Store, *pipeline.RunContext) (pipeline.Result, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return pipeline.Result{Summary: "passed"}, nil
}

type pairSource struct{}

func (pairSource) Retrieve(context.Context, *graph.Node, graph.Plan) ([]stages.EvidenceItem, error) {
	return []stages.EvidenceItem{
		{Content: "first", Source: "lab-a", Confidence: graph.Uniform(0.8), DisciplinaryTags: []string{"astronomy"}, StatisticalPower: 0.9},
		{Content: "second", Source: "lab-b", Confidence: graph.Vector{0.6, 0.65, 0.7, 0.75}, DisciplinaryTags: []string{"biology"}, StatisticalPower: 0.4},
	}, nil
}

// ─── ProcessQuery ────────────────────────────────────────────────────────────

func TestProcessQuery_EndToEnd(t *testing.T) {
	e := newEngine(t)
	res := process(t, e, "Explore photosynthesis efficiency")

	require.Len(t, res.ReasoningTrace, 8)
	names := make([]string, len(res.ReasoningTrace))
	for i, entry := range res.ReasoningTrace {
		assert.Equal(t, i+1, entry.Stage)
		assert.NotNil(t, entry.Metrics)
		names[i] = entry.Name
	}
	assert.Equal(t, []string{
		"Initialization", "Decomposition", "Hypothesis Generation", "Evidence Integration",
		"Pruning and Merging", "Subgraph Extraction", "Composition", "Reflection",
	}, names)

	assert.True(t, res.Confidence.Valid())
	require.NotNil(t, res.Result.Reflection)
	assert.Equal(t, res.Result.Reflection.FinalConfidence, res.Confidence)
	require.NotNil(t, res.Result.Composition)
	assert.Contains(t, res.Result.Composition.ExecutiveSummary, "photosynthesis")

	// root + 7 dimensions + 14 hypotheses, before any evidence
	assert.GreaterOrEqual(t, res.GraphState.Metadata.NodeCount, 22)
	assert.Equal(t, len(res.GraphState.Nodes), res.GraphState.Metadata.NodeCount)

	sessions := e.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, res.Result.SessionID, sessions[0].ID)

	st, err := e.GetGraphState(res.Result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.GraphState.Metadata, st.Metadata)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().Queries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().SessionsActive))
}

func TestProcessQuery_SameSeedSameGraph(t *testing.T) {
	e := newEngine(t)
	a := process(t, e, "Explore photosynthesis efficiency")
	b := process(t, e, "Explore photosynthesis efficiency")

	assert.NotEqual(t, a.Result.SessionID, b.Result.SessionID)
	assert.Equal(t, a.GraphState.Metadata, b.GraphState.Metadata)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestProcessQuery_Validation(t *testing.T) {
	e := newEngine(t)

	_, err := e.ProcessQuery(context.Background(), "  ", nil, nil)
	assert.True(t, apperr.IsValidation(err))

	_, err = e.ProcessQuery(context.Background(), "q", nil, map[string]any{"pruning_threshold": 1.5})
	assert.True(t, apperr.IsValidation(err))

	_, err = e.ProcessQuery(context.Background(), "q", nil, map[string]any{"hypotheses_per_dimension": "many"})
	assert.True(t, apperr.IsValidation(err))

	assert.Empty(t, e.Sessions())
}

func TestProcessQuery_StageFailureDiscardsSession(t *testing.T) {
	for _, panics := range []bool{false, true} {
		h := newHistory(t)
		e := newEngine(t, WithHistory(h), WithStages([]pipeline.Stage{&stages.Initialization{}, failingStage{panics: panics}}))

		res, err := e.ProcessQuery(context.Background(), "q", nil, nil)
		require.Error(t, err)
		assert.Nil(t, res)
		assert.Contains(t, err.Error(), "stage 2 (Broken)")
		assert.Empty(t, e.Sessions())
		assert.Equal(t, 0.0, testutil.ToFloat64(e.Metrics().SessionsActive))
		assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().Queries.WithLabelValues("error")))

		runs, err := e.History(10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, history.StatusError, runs[0].Status)
	}
}

func TestProcessQuery_CancelledContext(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ProcessQuery(ctx, "q", nil, smallRun)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.Sessions())
}

func TestProcessQuery_FallbackConfidence(t *testing.T) {
	e := newEngine(t, WithStages([]pipeline.Stage{&stages.Initialization{}}))
	res, err := e.ProcessQuery(context.Background(), "q", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, graph.Uniform(0.5), res.Confidence)
	assert.Nil(t, res.Result.Composition)
	assert.Nil(t, res.Result.Reflection)
}

// ─── GetGraphState ───────────────────────────────────────────────────────────

func TestGetGraphState_UnknownSession(t *testing.T) {
	e := newEngine(t)
	_, err := e.GetGraphState("nope")
	assert.True(t, apperr.IsNotFound(err))
}

// ─── Feedback ────────────────────────────────────────────────────────────────

func confidences(st *graph.State) (map[string]graph.Vector, map[string]float64) {
	nodes := make(map[string]graph.Vector, len(st.Nodes))
	for _, n := range st.Nodes {
		nodes[n.ID] = n.Confidence
	}
	edges := make(map[string]float64, len(st.Edges))
	for _, e := range st.Edges {
		edges[e.ID] = e.Confidence
	}
	return nodes, edges
}

func TestIncorporateFeedback_NodeIsExact(t *testing.T) {
	h := newHistory(t)
	e := newEngine(t, WithHistory(h))
	res := process(t, e, "q")
	id := res.Result.SessionID
	beforeNodes, beforeEdges := confidences(res.GraphState)

	err := e.IncorporateFeedback(context.Background(), id, Feedback{
		NodeID: stages.RootID, Type: FeedbackConfidence, Value: []any{1.0, 1.0, 1.0, 1.0},
	})
	require.NoError(t, err)

	st, err := e.GetGraphState(id)
	require.NoError(t, err)
	afterNodes, afterEdges := confidences(st)
	assert.Equal(t, graph.Uniform(1), afterNodes[stages.RootID])
	for nid, v := range beforeNodes {
		if nid != stages.RootID {
			assert.Equal(t, v, afterNodes[nid], "node %s changed", nid)
		}
	}
	assert.Equal(t, beforeEdges, afterEdges)

	items, err := h.FeedbackFor(id)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Applied)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().Feedback.WithLabelValues("node", "applied")))
}

func TestIncorporateFeedback_ScalarAndEdge(t *testing.T) {
	e := newEngine(t)
	id := process(t, e, "q").Result.SessionID

	require.NoError(t, e.IncorporateFeedback(context.Background(), id, Feedback{
		NodeID: "dim_1", Type: FeedbackConfidence, Value: 0.4,
	}))
	require.NoError(t, e.IncorporateFeedback(context.Background(), id, Feedback{
		EdgeID: "e_root_dim_2", Type: FeedbackConfidence, Value: []any{0.3},
	}))

	st, err := e.GetGraphState(id)
	require.NoError(t, err)
	nodes, edges := confidences(st)
	assert.Equal(t, graph.Uniform(0.4), nodes["dim_1"])
	assert.Equal(t, 0.3, edges["e_root_dim_2"])
}

func TestIncorporateFeedback_Errors(t *testing.T) {
	e := newEngine(t)
	id := process(t, e, "q").Result.SessionID
	ctx := context.Background()

	tests := []struct {
		name  string
		sid   string
		fb    Feedback
		check func(error) bool
	}{
		{"unknown session", "missing", Feedback{NodeID: stages.RootID, Type: FeedbackConfidence, Value: 0.5}, apperr.IsNotFound},
		{"unknown node", id, Feedback{NodeID: "ghost", Type: FeedbackConfidence, Value: 0.5}, apperr.IsNotFound},
		{"unknown edge", id, Feedback{EdgeID: "ghost", Type: FeedbackConfidence, Value: 0.5}, apperr.IsNotFound},
		{"vector out of range", id, Feedback{NodeID: stages.RootID, Type: FeedbackConfidence, Value: []any{1.2, 0, 0, 0}}, apperr.IsValidation},
		{"wrong vector length", id, Feedback{NodeID: stages.RootID, Type: FeedbackConfidence, Value: []any{0.1, 0.2}}, apperr.IsValidation},
		{"edge list too long", id, Feedback{EdgeID: "e_root_dim_1", Type: FeedbackConfidence, Value: []any{0.1, 0.2}}, apperr.IsValidation},
		{"no target", id, Feedback{Type: FeedbackConfidence, Value: 0.5}, apperr.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.IncorporateFeedback(ctx, tt.sid, tt.fb)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestIncorporateFeedback_UnknownTypeIsNoop(t *testing.T) {
	e := newEngine(t)
	res := process(t, e, "q")
	before, _ := confidences(res.GraphState)

	err := e.IncorporateFeedback(context.Background(), res.Result.SessionID, Feedback{
		NodeID: stages.RootID, Type: "rating", Value: 0.0,
	})
	require.NoError(t, err)

	st, err := e.GetGraphState(res.Result.SessionID)
	require.NoError(t, err)
	after, _ := confidences(st)
	assert.Equal(t, before, after)
}

// ─── Sessions, export, history ───────────────────────────────────────────────

func TestCloseSession(t *testing.T) {
	e := newEngine(t)
	id := process(t, e, "q").Result.SessionID

	require.NoError(t, e.CloseSession(id))
	assert.True(t, apperr.IsNotFound(e.CloseSession(id)))
	_, err := e.GetGraphState(id)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().SessionsEvicted.WithLabelValues("closed")))
}

func TestCapacityEvictsOldest(t *testing.T) {
	cfg := config.Default()
	cfg.Sessions.Capacity = 1
	e := New(cfg)

	first := process(t, e, "first").Result.SessionID
	second := process(t, e, "second").Result.SessionID

	_, err := e.GetGraphState(first)
	assert.True(t, apperr.IsNotFound(err))
	_, err = e.GetGraphState(second)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().SessionsEvicted.WithLabelValues("capacity")))
}

func TestCapacityKeepsRunningSession(t *testing.T) {
	cfg := config.Default()
	cfg.Sessions.Capacity = 1
	gate := newGateStage()
	e := New(cfg, WithStages([]pipeline.Stage{&stages.Initialization{}, gate}))
	t.Cleanup(func() { _ = e.Close() })

	type outcome struct {
		res *Result
		err error
	}
	slow := make(chan outcome, 1)
	go func() {
		res, err := e.ProcessQuery(context.Background(), "slow", nil, nil)
		slow <- outcome{res, err}
	}()
	<-gate.started

	fast, err := e.ProcessQuery(context.Background(), "fast", nil, nil)
	require.NoError(t, err)
	close(gate.release)
	got := <-slow
	require.NoError(t, got.err)

	_, err = e.GetGraphState(got.res.Result.SessionID)
	assert.NoError(t, err)
	_, err = e.GetGraphState(fast.Result.SessionID)
	assert.NoError(t, err)
	assert.NoError(t, e.IncorporateFeedback(context.Background(), got.res.Result.SessionID,
		Feedback{NodeID: stages.RootID, Type: FeedbackConfidence, Value: []any{1.0, 1.0, 1.0, 1.0}}))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.Metrics().SessionsEvicted.WithLabelValues("capacity")))
}

func TestExport_Cliques(t *testing.T) {
	e := newEngine(t, WithEvidenceSource(pairSource{}))
	id := process(t, e, "q").Result.SessionID

	plain, err := e.Export(id, false)
	require.NoError(t, err)
	assert.Empty(t, plain.VirtualEdges)

	doc, err := e.Export(id, true)
	require.NoError(t, err)
	require.NotEmpty(t, doc.Hyperedges)
	want := 0
	for _, h := range doc.Hyperedges {
		n := len(h.Nodes)
		want += n * (n - 1) / 2
	}
	assert.Len(t, doc.VirtualEdges, want)

	_, err = e.Export("missing", true)
	assert.True(t, apperr.IsNotFound(err))
}

func TestHistory(t *testing.T) {
	e := newEngine(t)
	_, err := e.History(5)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = e.Run(1)
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	e = newEngine(t, WithHistory(newHistory(t)))
	res := process(t, e, "Explore photosynthesis efficiency")

	runs, err := e.History(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusOK, runs[0].Status)
	assert.Equal(t, res.Result.SessionID, runs[0].SessionID)
	assert.Equal(t, res.GraphState.Metadata.NodeCount, runs[0].NodeCount)
	assert.Equal(t, res.Result.Reflection.Verdict, runs[0].Verdict)

	run, err := e.Run(runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, run.Stages, 8)
}

func TestHeuristicBiasDetectorIsWired(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.BiasDetector = "heuristic"
	e := New(cfg)
	res, err := e.ProcessQuery(context.Background(), "q", nil, smallRun)
	require.NoError(t, err)
	assert.Len(t, res.ReasoningTrace, 8)
}
