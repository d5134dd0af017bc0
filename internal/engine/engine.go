// Package engine is the service facade over the reasoning pipeline.
//
// It owns the session registry, runs the eight stages against a fresh
// graph per query, applies user feedback and feeds the run ledger and the
// Prometheus collector. The MCP adapter and the CLI both talk only to an
// Engine.
package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cast"

	"github.com/HendryAvila/asrgot/internal/apperr"
	"github.com/HendryAvila/asrgot/internal/config"
	"github.com/HendryAvila/asrgot/internal/export"
	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/history"
	"github.com/HendryAvila/asrgot/internal/logging"
	"github.com/HendryAvila/asrgot/internal/metrics"
	"github.com/HendryAvila/asrgot/internal/pipeline"
	"github.com/HendryAvila/asrgot/internal/report"
	"github.com/HendryAvila/asrgot/internal/session"
	"github.com/HendryAvila/asrgot/internal/stages"
)

// ErrHistoryDisabled is returned by the ledger queries when no history
// store is attached.
var ErrHistoryDisabled = errors.New("engine: run history is disabled")

// fallbackConfidence is reported when no reflection audit produced one.
var fallbackConfidence = graph.Uniform(0.5)

// ─── Types ───────────────────────────────────────────────────────────────────

// Outcome is the composed answer of one run.
type Outcome struct {
	SessionID   string              `json:"session_id"`
	Composition *report.Composition `json:"composition"`
	Reflection  *report.Audit       `json:"reflection"`
}

// Result is returned by ProcessQuery.
type Result struct {
	Result         Outcome               `json:"result"`
	ReasoningTrace []pipeline.TraceEntry `json:"reasoning_trace"`
	Confidence     graph.Vector          `json:"confidence"`
	GraphState     *graph.State          `json:"graph_state,omitempty"`
}

// Feedback types.
const FeedbackConfidence = "confidence"

// Feedback targets one node or one edge. Value is a four-element list or
// a scalar for nodes, and a number or one-element list for edges.
type Feedback struct {
	NodeID string `json:"node_id,omitempty"`
	EdgeID string `json:"edge_id,omitempty"`
	Type   string `json:"type"`
	Value  any    `json:"value"`
}

// ─── Engine ──────────────────────────────────────────────────────────────────

// Engine runs queries and keeps their sessions.
type Engine struct {
	cfg      config.Config
	log      *logging.Logger
	metrics  *metrics.Collector
	history  *history.Store
	stages   []pipeline.Stage
	source   stages.EvidenceSource
	runner   *pipeline.Runner
	sessions *session.Registry
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics sets the collector. The default is a private collector
// under the configured namespace.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithHistory attaches a run ledger. The engine closes it on Close.
func WithHistory(h *history.Store) Option {
	return func(e *Engine) { e.history = h }
}

// WithEvidenceSource replaces the demo evidence source of the default
// stage list.
func WithEvidenceSource(src stages.EvidenceSource) Option {
	return func(e *Engine) { e.source = src }
}

// WithStages replaces the whole stage list.
func WithStages(st []pipeline.Stage) Option {
	return func(e *Engine) { e.stages = st }
}

// New creates an Engine from cfg.
func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, log: logging.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New(cfg.Metrics.Namespace)
	}
	if e.stages == nil {
		e.stages = stages.Default(stages.Options{
			Source: e.source,
			Hooks:  hooksFor(cfg.Pipeline.BiasDetector),
			Log:    e.log.With("component", "stages"),
		})
	}
	e.runner = pipeline.NewRunner(e.stages, pipeline.WithObserver(e.metrics))
	e.sessions = session.NewRegistry(
		session.WithCapacity(cfg.Sessions.Capacity),
		session.WithTTL(cfg.Sessions.TTL),
		session.WithEvictCallback(e.onEvict),
	)
	return e
}

func hooksFor(detector string) stages.Hooks {
	var h stages.Hooks
	if detector == "heuristic" {
		h.DetectBias = stages.HeuristicBiasHook
	}
	return h
}

// Start sweeps expired sessions until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.sessions.Start(ctx, e.cfg.Sessions.SweepInterval)
}

// Metrics returns the engine's collector.
func (e *Engine) Metrics() *metrics.Collector { return e.metrics }

// Close releases the run ledger, if any.
func (e *Engine) Close() error {
	if e.history == nil {
		return nil
	}
	return e.history.Close()
}

func (e *Engine) onEvict(id, reason string) {
	e.metrics.SessionEvicted(reason)
	e.log.Info("session closed", "session_id", id, "reason", reason)
}

// ─── Operations ──────────────────────────────────────────────────────────────

// ProcessQuery runs the full pipeline for query in a new session. On
// failure the session is discarded and no partial result is returned.
func (e *Engine) ProcessQuery(ctx context.Context, query string, qctx, rawParams map[string]any) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Validation("query is required")
	}
	params, err := pipeline.ParseParameters(rawParams, e.cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	s := e.sessions.Begin(query, qctx)
	defer e.sessions.Release(s)
	e.metrics.SessionOpened()
	log := e.log.With("session_id", s.ID)
	rc := pipeline.NewRunContext(s.ID, query, qctx, params)

	var res *Result
	err = e.sessions.With(s.ID, func(s *session.Session) error {
		trace, err := e.runner.Run(ctx, s.Graph, rc)
		if err != nil {
			return err
		}
		final := fallbackConfidence
		if rc.FinalConfidence != nil {
			final = *rc.FinalConfidence
		} else {
			log.Warn("no reflection audit ran, reporting neutral confidence")
		}
		s.Params = params
		s.Trace = trace
		s.Composition = rc.Composition
		s.Audit = rc.Audit
		s.FinalConfidence = final
		res = &Result{
			Result: Outcome{
				SessionID:   s.ID,
				Composition: rc.Composition,
				Reflection:  rc.Audit,
			},
			ReasoningTrace: trace,
			Confidence:     final,
			GraphState:     s.Graph.Serialize(),
		}
		return nil
	})
	if err != nil {
		e.sessions.Destroy(s.ID)
		e.metrics.QueryFinished(err, 0)
		e.recordRun(history.RecordRunParams{SessionID: s.ID, Query: query, Err: err})
		log.Error("query failed", "error", err)
		return nil, err
	}

	st := res.GraphState.Metadata
	e.metrics.QueryFinished(nil, st.NodeCount)
	verdict := ""
	if res.Result.Reflection != nil {
		verdict = res.Result.Reflection.Verdict
	}
	e.recordRun(history.RecordRunParams{
		SessionID:       s.ID,
		Query:           query,
		NodeCount:       st.NodeCount,
		EdgeCount:       st.EdgeCount,
		FinalConfidence: res.Confidence.Slice(),
		Verdict:         verdict,
		Trace:           res.ReasoningTrace,
	})
	log.Info("query processed", "nodes", st.NodeCount, "edges", st.EdgeCount, "hyperedges", st.HyperedgeCount)
	return res, nil
}

// GetGraphState returns a snapshot of a session's graph.
func (e *Engine) GetGraphState(sessionID string) (*graph.State, error) {
	var st *graph.State
	err := e.sessions.With(sessionID, func(s *session.Session) error {
		st = s.Graph.Serialize()
		return nil
	})
	return st, err
}

// IncorporateFeedback applies fb to the session's graph. Feedback of an
// unknown type is ignored.
func (e *Engine) IncorporateFeedback(ctx context.Context, sessionID string, fb Feedback) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.sessions.With(sessionID, func(s *session.Session) error {
		if fb.Type != FeedbackConfidence {
			e.log.Debug("ignoring feedback", "session_id", sessionID, "type", fb.Type)
			return nil
		}
		target, id, err := applyFeedback(s.Graph, fb)
		e.metrics.FeedbackApplied(target, err == nil)
		if target != "" && e.history != nil {
			if _, herr := e.history.RecordFeedback(history.RecordFeedbackParams{
				SessionID: sessionID,
				Target:    target,
				TargetID:  id,
				Value:     fb.Value,
				Err:       err,
			}); herr != nil {
				e.log.Warn("failed to record feedback", "session_id", sessionID, "error", herr)
			}
		}
		return err
	})
}

func applyFeedback(g *graph.Store, fb Feedback) (target, id string, err error) {
	switch {
	case fb.NodeID != "":
		v, err := pipeline.ParseVector(fb.Value)
		if err != nil {
			return "node", fb.NodeID, apperr.Validation("node %q: invalid confidence value", fb.NodeID).WithCause(err)
		}
		return "node", fb.NodeID, g.UpdateNodeConfidence(fb.NodeID, v)
	case fb.EdgeID != "":
		c, err := edgeValue(fb.Value)
		if err != nil {
			return "edge", fb.EdgeID, apperr.Validation("edge %q: invalid confidence value", fb.EdgeID).WithCause(err)
		}
		return "edge", fb.EdgeID, g.UpdateEdgeConfidence(fb.EdgeID, c)
	default:
		return "", "", apperr.Validation("feedback needs node_id or edge_id")
	}
}

func edgeValue(val any) (float64, error) {
	switch v := val.(type) {
	case []any:
		if len(v) != 1 {
			return 0, errors.New("expected a single value")
		}
		return cast.ToFloat64E(v[0])
	case []float64:
		if len(v) != 1 {
			return 0, errors.New("expected a single value")
		}
		return v[0], nil
	}
	return cast.ToFloat64E(val)
}

// Export renders a session's graph, optionally with hyperedge cliques.
func (e *Engine) Export(sessionID string, cliques bool) (*export.Document, error) {
	st, err := e.GetGraphState(sessionID)
	if err != nil {
		return nil, err
	}
	return export.Render(st, cliques), nil
}

// Sessions lists live sessions, most recently used first.
func (e *Engine) Sessions() []session.Info { return e.sessions.List() }

// CloseSession discards a session.
func (e *Engine) CloseSession(sessionID string) error {
	if !e.sessions.Destroy(sessionID) {
		return apperr.NotFound("session %q not found", sessionID)
	}
	return nil
}

// ─── History ─────────────────────────────────────────────────────────────────

// History returns the most recent runs, newest first.
func (e *Engine) History(limit int) ([]history.RunSummary, error) {
	if e.history == nil {
		return nil, ErrHistoryDisabled
	}
	return e.history.RecentRuns(limit)
}

// Run returns one recorded run with its stage trace.
func (e *Engine) Run(id int64) (*history.Run, error) {
	if e.history == nil {
		return nil, ErrHistoryDisabled
	}
	return e.history.GetRun(id)
}

func (e *Engine) recordRun(p history.RecordRunParams) {
	if e.history == nil {
		return
	}
	if _, err := e.history.RecordRun(p); err != nil {
		e.log.Warn("failed to record run", "session_id", p.SessionID, "error", err)
	}
}
