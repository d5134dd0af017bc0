package stages

import (
	"context"
	"math/rand/v2"
	"slices"

	"github.com/HendryAvila/asrgot/internal/confidence"
	"github.com/HendryAvila/asrgot/internal/graph"
)

// ─── Evidence source ─────────────────────────────────────────────────────────

// EvidenceItem is one piece of evidence returned for a plan.
type EvidenceItem struct {
	Content          string
	Source           string
	Confidence       graph.Vector
	DisciplinaryTags []string
	StatisticalPower float64
}

// EvidenceSource executes a hypothesis's evaluation plan.
type EvidenceSource interface {
	Retrieve(ctx context.Context, hypothesis *graph.Node, plan graph.Plan) ([]EvidenceItem, error)
}

// DemoSource fabricates evidence deterministically from the plan type.
// It stands in for real retrieval or experiment execution.
type DemoSource struct{}

// Retrieve implements EvidenceSource.
func (DemoSource) Retrieve(_ context.Context, h *graph.Node, plan graph.Plan) ([]EvidenceItem, error) {
	switch plan.Type {
	case graph.PlanSearch:
		return []EvidenceItem{{
			Content:          "Search result supporting hypothesis",
			Source:           "simulated_search",
			Confidence:       graph.Vector{0.7, 0.6, 0.8, 0.5},
			DisciplinaryTags: slices.Clone(h.Tags()),
			StatisticalPower: 0.6,
		}}, nil
	case graph.PlanExperiment:
		return []EvidenceItem{{
			Content:          "Experimental result for hypothesis",
			Source:           "simulated_experiment",
			Confidence:       graph.Vector{0.8, 0.7, 0.9, 0.6},
			DisciplinaryTags: []string{"experimental_biology"},
			StatisticalPower: 0.8,
		}}, nil
	case graph.PlanMetaAnalysis:
		return []EvidenceItem{
			{
				Content:          "Pooled effect estimate across studies",
				Source:           "simulated_meta_analysis",
				Confidence:       graph.Vector{0.75, 0.7, 0.8, 0.7},
				DisciplinaryTags: append(slices.Clone(h.Tags()), "biostatistics"),
				StatisticalPower: 0.85,
			},
			{
				Content:          "Between-study heterogeneity assessment",
				Source:           "simulated_meta_analysis",
				Confidence:       graph.Vector{0.6, 0.65, 0.7, 0.6},
				DisciplinaryTags: []string{"biostatistics"},
				StatisticalPower: 0.7,
			},
		}, nil
	default:
		return []EvidenceItem{{
			Content:          "Generic evidence for hypothesis",
			Source:           "simulated_generic",
			Confidence:       graph.Uniform(0.6),
			StatisticalPower: 0.5,
		}}, nil
	}
}

// ─── Relation classifier ─────────────────────────────────────────────────────

// Relation is the classified link from evidence to hypothesis.
type Relation struct {
	Type     graph.EdgeType
	Subtype  string
	Causal   *graph.CausalMetadata
	Temporal *graph.TemporalMetadata
}

// RelationClassifier decides how a piece of evidence relates to a hypothesis.
type RelationClassifier interface {
	Classify(evidence, hypothesis *graph.Node, rng *rand.Rand) Relation
}

// RandomClassifier draws the relation type from fixed probability bands:
// 30% correlative, 20% causal, 20% temporal, 30% supportive.
type RandomClassifier struct{}

// Classify implements RelationClassifier.
func (RandomClassifier) Classify(_, _ *graph.Node, rng *rand.Rand) Relation {
	r := rng.Float64()
	switch {
	case r < 0.3:
		return Relation{Type: graph.EdgeCorrelative}
	case r < 0.5:
		return Relation{
			Type:    graph.EdgeCausal,
			Subtype: "direct",
			Causal:  &graph.CausalMetadata{Mechanism: "unknown"},
		}
	case r < 0.7:
		return Relation{
			Type:     graph.EdgeTemporal,
			Subtype:  "precedence",
			Temporal: &graph.TemporalMetadata{Delay: "unknown", Pattern: "linear"},
		}
	default:
		return Relation{Type: graph.EdgeSupportive}
	}
}

// ─── Refinement hooks ────────────────────────────────────────────────────────

// Hooks are the refinement passes run after each evidence iteration.
// Nil fields are skipped.
type Hooks struct {
	TemporalDecay      func(g *graph.Store, hypothesisID string)
	TemporalPatterns   func(g *graph.Store, hypothesisID string)
	TopologyAdaptation func(g *graph.Store)
	DetectBias         func(g *graph.Store, hypothesisID string) []graph.BiasFlag
}

// HeuristicBiasHook flags a hypothesis using the confidences of the
// hypothesis and the evidence pointing at it.
func HeuristicBiasHook(g *graph.Store, hypothesisID string) []graph.BiasFlag {
	h, err := g.Node(hypothesisID)
	if err != nil {
		return nil
	}
	confs := []graph.Vector{h.Confidence}
	for _, e := range g.InEdges(hypothesisID) {
		if src, err := g.Node(e.Source); err == nil && src.Type == graph.NodeEvidence {
			confs = append(confs, src.Confidence)
		}
	}
	return confidence.DetectBiases(confs, h.Metadata.Provenance)
}
