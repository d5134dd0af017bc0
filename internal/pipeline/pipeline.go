// Package pipeline runs the reasoning stages over a session's graph.
//
// Design:
//   - Stage is the single extension point; each stage reads the running
//     RunContext, mutates the graph and returns an Update.
//   - The Runner executes stages strictly in order. There is no branching,
//     skipping, retry or rollback: a stage error (or panic) aborts the run.
//   - Stage-internal failures that should not abort a run are the stage's
//     own business to log and degrade.
package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/report"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// ─── Stage contract ──────────────────────────────────────────────────────────

// Stage is one step of the reasoning pipeline.
type Stage interface {
	Name() string
	Execute(ctx context.Context, g *graph.Store, rc *RunContext) (Result, error)
}

// Result is what a stage hands back to the runner.
type Result struct {
	Summary string
	Metrics map[string]any
	Update  Update
}

// Update carries the context keys a stage produces. Zero fields are left
// untouched on merge.
type Update struct {
	RootNodeID      string
	Disciplines     []string
	DimensionNodes  []string
	Hypotheses      []string
	Subgraphs       []report.Subgraph
	Composition     *report.Composition
	Audit           *report.Audit
	FinalConfidence *graph.Vector
}

// RunContext is the state threaded through one pipeline run.
type RunContext struct {
	SessionID string
	Query     string
	Context   map[string]any
	Params    Parameters
	Rand      *rand.Rand

	RootNodeID      string
	Disciplines     []string
	DimensionNodes  []string
	Hypotheses      []string
	Subgraphs       []report.Subgraph
	Composition     *report.Composition
	Audit           *report.Audit
	FinalConfidence *graph.Vector
}

// NewRunContext builds a RunContext whose random source is seeded from
// params.Seed, or from the clock when the seed is zero.
func NewRunContext(sessionID, query string, qctx map[string]any, params Parameters) *RunContext {
	seed := params.Seed
	if seed == 0 {
		seed = uint64(timeNow().UnixNano())
	}
	if qctx == nil {
		qctx = map[string]any{}
	}
	return &RunContext{
		SessionID: sessionID,
		Query:     query,
		Context:   qctx,
		Params:    params,
		Rand:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Merge folds u into the context.
func (rc *RunContext) Merge(u Update) {
	if u.RootNodeID != "" {
		rc.RootNodeID = u.RootNodeID
	}
	if u.Disciplines != nil {
		rc.Disciplines = u.Disciplines
	}
	if u.DimensionNodes != nil {
		rc.DimensionNodes = u.DimensionNodes
	}
	if u.Hypotheses != nil {
		rc.Hypotheses = u.Hypotheses
	}
	if u.Subgraphs != nil {
		rc.Subgraphs = u.Subgraphs
	}
	if u.Composition != nil {
		rc.Composition = u.Composition
	}
	if u.Audit != nil {
		rc.Audit = u.Audit
	}
	if u.FinalConfidence != nil {
		rc.FinalConfidence = u.FinalConfidence
	}
}

// ─── Runner ──────────────────────────────────────────────────────────────────

// TraceEntry records one executed stage.
type TraceEntry struct {
	Stage   int            `json:"stage"`
	Name    string         `json:"name"`
	Summary string         `json:"summary"`
	Metrics map[string]any `json:"metrics"`
}

// Observer is notified after every stage.
type Observer interface {
	StageFinished(name string, elapsed time.Duration, err error)
}

// Runner executes a fixed, ordered list of stages.
type Runner struct {
	stages   []Stage
	observer Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// NewRunner creates a Runner over stages, in the given order.
func NewRunner(stages []Stage, opts ...Option) *Runner {
	r := &Runner{stages: stages}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stages returns the configured stages.
func (r *Runner) Stages() []Stage { return r.stages }

// Run executes every stage in order. Cancellation is honored only before
// the first stage starts; once running, the pipeline completes or fails
// as a whole and never returns a partial trace.
func (r *Runner) Run(ctx context.Context, g *graph.Store, rc *RunContext) ([]TraceEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	trace := make([]TraceEntry, 0, len(r.stages))
	for i, st := range r.stages {
		start := timeNow()
		res, err := runStage(ctx, st, g, rc)
		if r.observer != nil {
			r.observer.StageFinished(st.Name(), timeNow().Sub(start), err)
		}
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i+1, st.Name(), err)
		}
		if res.Metrics == nil {
			res.Metrics = map[string]any{}
		}
		trace = append(trace, TraceEntry{
			Stage:   i + 1,
			Name:    st.Name(),
			Summary: res.Summary,
			Metrics: res.Metrics,
		})
		rc.Merge(res.Update)
	}
	return trace, nil
}

func runStage(ctx context.Context, st Stage, g *graph.Store, rc *RunContext) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return st.Execute(ctx, g, rc)
}
