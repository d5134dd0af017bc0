package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/asrgot/internal/apperr"
	"github.com/HendryAvila/asrgot/internal/config"
	"github.com/HendryAvila/asrgot/internal/graph"
)

// --- Test doubles ---

type fakeStage struct {
	name  string
	run   func(rc *RunContext) (Result, error)
	calls *[]string
}

func (f fakeStage) Name() string { return f.name }

func (f fakeStage) Execute(_ context.Context, _ *graph.Store, rc *RunContext) (Result, error) {
	*f.calls = append(*f.calls, f.name)
	if f.run == nil {
		return Result{Summary: f.name + " done"}, nil
	}
	return f.run(rc)
}

type recordingObserver struct {
	names []string
	errs  int
}

func (o *recordingObserver) StageFinished(name string, _ time.Duration, err error) {
	o.names = append(o.names, name)
	if err != nil {
		o.errs++
	}
}

func newRunContext() *RunContext {
	return NewRunContext("s1", "q", nil, DefaultParameters(config.Default().Pipeline))
}

// ─── Runner ──────────────────────────────────────────────────────────────────

func TestRunner_RunsInOrderAndMerges(t *testing.T) {
	var calls []string
	stages := []Stage{
		fakeStage{name: "one", calls: &calls, run: func(rc *RunContext) (Result, error) {
			return Result{Summary: "root", Update: Update{RootNodeID: "n0"}}, nil
		}},
		fakeStage{name: "two", calls: &calls, run: func(rc *RunContext) (Result, error) {
			if rc.RootNodeID != "n0" {
				return Result{}, errors.New("root not merged before stage two")
			}
			return Result{Summary: "dims", Metrics: map[string]any{"dimension_count": 2},
				Update: Update{DimensionNodes: []string{"dim_1", "dim_2"}}}, nil
		}},
		fakeStage{name: "three", calls: &calls},
	}
	obs := &recordingObserver{}
	rc := newRunContext()

	trace, err := NewRunner(stages, WithObserver(obs)).Run(context.Background(), graph.NewStore(), rc)
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "three"}, calls)
	assert.Equal(t, calls, obs.names)
	require.Len(t, trace, 3)
	for i, entry := range trace {
		assert.Equal(t, i+1, entry.Stage)
		assert.NotNil(t, entry.Metrics)
	}
	assert.Equal(t, 2, trace[1].Metrics["dimension_count"])
	assert.Equal(t, "n0", rc.RootNodeID)
	assert.Equal(t, []string{"dim_1", "dim_2"}, rc.DimensionNodes)
}

func TestRunner_StageErrorAborts(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	stages := []Stage{
		fakeStage{name: "one", calls: &calls},
		fakeStage{name: "two", calls: &calls, run: func(*RunContext) (Result, error) { return Result{}, boom }},
		fakeStage{name: "three", calls: &calls},
	}
	obs := &recordingObserver{}

	trace, err := NewRunner(stages, WithObserver(obs)).Run(context.Background(), graph.NewStore(), newRunContext())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stage 2 (two)")
	assert.Nil(t, trace)
	assert.Equal(t, []string{"one", "two"}, calls)
	assert.Equal(t, 1, obs.errs)
}

func TestRunner_StagePanicBecomesError(t *testing.T) {
	var calls []string
	stages := []Stage{
		fakeStage{name: "one", calls: &calls, run: func(*RunContext) (Result, error) {
			var m map[string]int
			m["x"] = 1
			return Result{}, nil
		}},
	}
	trace, err := NewRunner(stages).Run(context.Background(), graph.NewStore(), newRunContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Nil(t, trace)
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner([]Stage{fakeStage{name: "one", calls: &calls}}).Run(ctx, graph.NewStore(), newRunContext())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestRunContext_SeededRandIsReproducible(t *testing.T) {
	p := DefaultParameters(config.Default().Pipeline)
	p.Seed = 7
	a := NewRunContext("a", "q", nil, p)
	b := NewRunContext("b", "q", nil, p)
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Rand.Float64(), b.Rand.Float64())
	}
}

// ─── Parameters ──────────────────────────────────────────────────────────────

func TestParseParameters_Defaults(t *testing.T) {
	p, err := ParseParameters(nil, config.Default().Pipeline)
	require.NoError(t, err)

	assert.Len(t, p.Dimensions, 7)
	assert.Equal(t, "Scope", p.Dimensions[0].Label)
	assert.Equal(t, graph.Uniform(0.8), p.DimensionConfidence)
	assert.Equal(t, graph.Uniform(0.5), p.HypothesisConfidence)
	assert.Equal(t, 0, p.HypothesesPerDimension)
	assert.Equal(t, 5, p.EvidenceMaxIterations)
	assert.Equal(t, 0.2, p.PruningThreshold)
	assert.Equal(t, 0.3, p.ImpactThreshold)
	assert.Equal(t, 0.8, p.MergingThreshold)
	assert.Equal(t, 0.6, p.Extraction.MinConfidence)
	assert.Equal(t, 0.5, p.Extraction.MinImpact)
	assert.Len(t, p.Disciplines, 12)
	assert.Equal(t, "root", p.InitialLayer)
}

func TestParseParameters_Overrides(t *testing.T) {
	raw := map[string]any{
		"hypotheses_per_dimension": float64(2),
		"evidence_max_iterations":  "1",
		"dimensions": []any{
			"Yield",
			map[string]any{"label": "Light", "description": "Photon capture"},
		},
		"dimension_confidence": []any{0.7, 0.7, 0.6, 0.6},
		"hypothesis_confidence": 0.4,
		"extraction_criteria": map[string]any{
			"min_confidence":    0.5,
			"focus_disciplines": []any{"botany"},
			"edge_patterns":     []string{"causal"},
		},
		"layers":      map[string]any{"micro": map[string]any{}, "macro": map[string]any{}},
		"disciplines": []string{"botany", "biochemistry"},
		"seed":        42,
		"unknown_key": "ignored",
	}
	p, err := ParseParameters(raw, config.Default().Pipeline)
	require.NoError(t, err)

	assert.Equal(t, 2, p.HypothesesPerDimension)
	assert.Equal(t, 1, p.EvidenceMaxIterations)
	assert.Equal(t, []Dimension{{"Yield", "Yield"}, {"Light", "Photon capture"}}, p.Dimensions)
	assert.Equal(t, graph.Vector{0.7, 0.7, 0.6, 0.6}, p.DimensionConfidence)
	assert.Equal(t, graph.Uniform(0.4), p.HypothesisConfidence)
	assert.Equal(t, 0.5, p.Extraction.MinConfidence)
	assert.Equal(t, 0.5, p.Extraction.MinImpact)
	assert.Equal(t, []string{"botany"}, p.Extraction.FocusDisciplines)
	assert.Equal(t, []string{"causal"}, p.Extraction.EdgePatterns)
	assert.Equal(t, []string{"macro", "micro"}, p.Layers)
	assert.Equal(t, []string{"botany", "biochemistry"}, p.Disciplines)
	assert.Equal(t, uint64(42), p.Seed)
}

func TestParseParameters_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"threshold above one", map[string]any{"pruning_threshold": 1.5}},
		{"negative iterations", map[string]any{"evidence_max_iterations": -1}},
		{"vector wrong length", map[string]any{"hypothesis_confidence": []any{0.1, 0.2}}},
		{"vector out of range", map[string]any{"dimension_confidence": []any{0.1, 0.2, 0.3, 1.4}}},
		{"non-numeric count", map[string]any{"hypotheses_per_dimension": "many"}},
		{"empty dimensions", map[string]any{"dimensions": []any{}}},
		{"dimensions not a list", map[string]any{"dimensions": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParameters(tt.raw, config.Default().Pipeline)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}
