package stages

import (
	"context"
	"fmt"
	"math"

	"github.com/HendryAvila/asrgot/internal/confidence"
	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/logging"
	"github.com/HendryAvila/asrgot/internal/pipeline"
)

// EvidenceIntegration repeatedly picks the most promising hypothesis,
// runs its plan and folds the returned evidence into the graph.
type EvidenceIntegration struct {
	source     EvidenceSource
	classifier RelationClassifier
	hooks      Hooks
	log        *logging.Logger
}

// Name implements pipeline.Stage.
func (*EvidenceIntegration) Name() string { return "Evidence Integration" }

type evidenceTally struct {
	iterations int
	evidence   int
	ibns       int
	hyperedges int
	updates    int
	gaps       int
}

// Execute implements pipeline.Stage.
func (s *EvidenceIntegration) Execute(ctx context.Context, g *graph.Store, rc *pipeline.RunContext) (pipeline.Result, error) {
	var t evidenceTally
	for iter := 0; iter < rc.Params.EvidenceMaxIterations; iter++ {
		h := selectHypothesis(g, rc.Hypotheses)
		if h == nil {
			break
		}
		t.iterations++
		s.integrate(ctx, g, h, rc, &t)
	}
	g.TopologyMetrics()

	return pipeline.Result{
		Summary: fmt.Sprintf("Integrated %d evidence nodes over %d iterations", t.evidence, t.iterations),
		Metrics: map[string]any{
			"iterations":             t.iterations,
			"evidence_nodes_created": t.evidence,
			"ibns_created":           t.ibns,
			"hyperedges_created":     t.hyperedges,
			"confidence_updates":     t.updates,
			"gaps_recorded":          t.gaps,
		},
	}, nil
}

func (s *EvidenceIntegration) integrate(ctx context.Context, g *graph.Store, h *graph.Node, rc *pipeline.RunContext, t *evidenceTally) {
	prior := h.Confidence
	details := h.Metadata.HypothesisDetails

	items, err := s.source.Retrieve(ctx, h, details.Plan)
	if err != nil {
		s.log.Warn("evidence retrieval failed", "hypothesis", h.ID, "error", err)
		return
	}
	if len(items) == 0 {
		if recordGap(g, h) {
			t.gaps++
		}
		return
	}

	var batch []string
	for _, item := range items {
		ev, err := graph.NewNode(fmt.Sprintf("ev_%s_%d", h.ID, t.evidence+1),
			fmt.Sprintf("Evidence for %s", h.Label),
			graph.NodeEvidence,
			item.Confidence,
			graph.Metadata{
				Common: graph.Common{
					DisciplinaryTags: item.DisciplinaryTags,
					LayerID:          h.Metadata.LayerID,
					Provenance:       item.Source,
				},
				EvidenceDetails: &graph.EvidenceDetails{
					Source:            item.Source,
					Content:           item.Content,
					StatisticalPower:  item.StatisticalPower,
					RelatedHypothesis: h.ID,
				},
			},
		)
		if err == nil {
			err = g.AddNode(ev)
		}
		if err != nil {
			s.log.Warn("skipping evidence", "hypothesis", h.ID, "error", err)
			continue
		}
		t.evidence++

		rel := s.classifier.Classify(ev, h, rc.Rand)
		edge, err := graph.NewEdge(fmt.Sprintf("e_%s_%s", ev.ID, h.ID), ev.ID, h.ID, rel.Type, item.Confidence[0],
			graph.EdgeMetadata{Subtype: rel.Subtype, Causal: rel.Causal, Temporal: rel.Temporal})
		if err == nil {
			err = g.AddEdge(edge)
		}
		if err != nil {
			s.log.Warn("evidence edge not added", "evidence", ev.ID, "error", err)
		}

		updated := confidence.BayesianUpdate(h.Confidence, item.Confidence, item.StatisticalPower, rel.Type)
		if err := g.UpdateNodeConfidence(h.ID, updated); err != nil {
			s.log.Warn("confidence update rejected", "hypothesis", h.ID, "error", err)
		} else {
			t.updates++
		}

		if _, created, err := g.CreateInterdisciplinaryBridge(ev.ID, h.ID); err != nil {
			s.log.Warn("bridge not created", "evidence", ev.ID, "error", err)
		} else if created {
			t.ibns++
		}
		batch = append(batch, ev.ID)
	}

	if len(batch) >= 2 {
		members := append([]string{h.ID}, batch...)
		hyper, err := graph.NewHyperedge(fmt.Sprintf("hyper_%s_%d", h.ID, t.hyperedges+1), members, 0.7,
			graph.HyperedgeMetadata{Relationship: "joint_support", Provenance: "Evidence integration"})
		if err == nil {
			err = g.AddHyperedge(hyper)
		}
		if err != nil {
			s.log.Warn("hyperedge not added", "hypothesis", h.ID, "error", err)
		} else {
			t.hyperedges++
		}
	}

	s.refine(g, h.ID)
	details.InfoMetrics = infoMetrics(g, h, prior)
}

func (s *EvidenceIntegration) refine(g *graph.Store, hypothesisID string) {
	if s.hooks.TemporalDecay != nil {
		s.hooks.TemporalDecay(g, hypothesisID)
	}
	if s.hooks.TemporalPatterns != nil {
		s.hooks.TemporalPatterns(g, hypothesisID)
	}
	if s.hooks.TopologyAdaptation != nil {
		s.hooks.TopologyAdaptation(g)
	}
	if s.hooks.DetectBias == nil {
		return
	}
	h, err := g.Node(hypothesisID)
	if err != nil {
		return
	}
	for _, flag := range s.hooks.DetectBias(g, hypothesisID) {
		if !hasBias(h.Metadata.BiasFlags, flag.Type) {
			h.Metadata.BiasFlags = append(h.Metadata.BiasFlags, flag)
		}
	}
}

// selectHypothesis returns the hypothesis with the highest
// impact * (1 - neutral deviation) / cost. Ties keep the earliest.
func selectHypothesis(g *graph.Store, ids []string) *graph.Node {
	var best *graph.Node
	bestScore := math.Inf(-1)
	for _, id := range ids {
		n, err := g.Node(id)
		if err != nil || n.Metadata.HypothesisDetails == nil {
			continue
		}
		cost := n.Metadata.HypothesisDetails.ComputationalCost
		if cost <= 0 {
			cost = 1
		}
		score := n.ImpactOr(0) * (1 - n.Confidence.NeutralDeviation()) / cost
		if score > bestScore {
			best, bestScore = n, score
		}
	}
	return best
}

// recordGap adds a placeholder node for a hypothesis that produced no
// evidence. It reports whether a new node was added.
func recordGap(g *graph.Store, h *graph.Node) bool {
	id := "gap_" + h.ID
	if g.HasNode(id) {
		return false
	}
	gap, err := graph.NewNode(id, fmt.Sprintf("Evidence gap for %s", h.Label), graph.NodePlaceholder,
		graph.Uniform(0.3),
		graph.Metadata{
			Common: graph.Common{
				DisciplinaryTags: h.Tags(),
				LayerID:          h.Metadata.LayerID,
				Provenance:       "Evidence integration",
			},
			GapDetails: &graph.GapDetails{
				GapFor:            h.ID,
				ResearchQuestions: []string{fmt.Sprintf("What evidence would confirm or refute %q?", h.Label)},
			},
		},
	)
	if err != nil || g.AddNode(gap) != nil {
		return false
	}
	if e, err := graph.NewEdge(fmt.Sprintf("e_%s_%s", id, h.ID), id, h.ID, graph.EdgeCorrelative, 0.3,
		graph.EdgeMetadata{Subtype: "gap"}); err == nil {
		_ = g.AddEdge(e)
	}
	return true
}

func infoMetrics(g *graph.Store, h *graph.Node, prior graph.Vector) *graph.InfoMetrics {
	m := &graph.InfoMetrics{
		Entropy:       confidence.Entropy(h.Confidence.Slice()),
		MDLComplexity: float64(len(g.Successors(h.ID))) * 0.1,
		Timestamp:     timeNow(),
	}
	if kl := confidence.KLDivergence(h.Confidence.Slice(), prior.Slice()); !math.IsInf(kl, 0) {
		m.KLDivergence = &kl
	}
	return m
}

func hasBias(flags []graph.BiasFlag, typ string) bool {
	for _, f := range flags {
		if f.Type == typ {
			return true
		}
	}
	return false
}
