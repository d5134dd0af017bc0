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

// falsificationTemplates are filled with the dimension label.
var falsificationTemplates = []string{
	"A controlled experiment measuring %s would contradict this hypothesis if no effect is observed.",
	"This hypothesis predicts a measurable change in %s; observation of no change would refute it.",
	"Statistical analysis of %s data can test this hypothesis against a null threshold.",
	"Comparing %s across independent cases would show whether the claimed pattern holds.",
}

var biasTypes = []string{"confirmation_bias", "selection_bias", "anchoring_bias"}

var severities = []graph.Severity{graph.SeverityLow, graph.SeverityMedium, graph.SeverityHigh}

// HypothesisGeneration attaches candidate hypotheses to every dimension.
type HypothesisGeneration struct {
	log *logging.Logger
}

// Name implements pipeline.Stage.
func (*HypothesisGeneration) Name() string { return "Hypothesis Generation" }

// Execute implements pipeline.Stage.
func (s *HypothesisGeneration) Execute(_ context.Context, g *graph.Store, rc *pipeline.RunContext) (pipeline.Result, error) {
	p := rc.Params
	hypotheses := []string{}

	for _, dimID := range rc.DimensionNodes {
		dim, err := g.Node(dimID)
		if err != nil {
			s.log.Warn("dimension vanished before hypothesis generation", "dimension", dimID)
			continue
		}
		k := p.HypothesesPerDimension
		if k == 0 {
			k = p.HypothesesMin + rc.Rand.IntN(p.HypothesesMax-p.HypothesesMin+1)
		}
		for i := 1; i <= k; i++ {
			node, err := s.newHypothesis(rc, dim, i)
			if err == nil {
				err = g.AddNode(node)
			}
			if err != nil {
				s.log.Warn("skipping hypothesis", "dimension", dimID, "index", i, "error", err)
				continue
			}
			edge, err := graph.NewEdge(fmt.Sprintf("e_%s_%s", dimID, node.ID), dimID, node.ID,
				graph.EdgeHypothesis, 0.8, graph.EdgeMetadata{})
			if err == nil {
				err = g.AddEdge(edge)
			}
			if err != nil {
				s.log.Warn("hypothesis edge not added", "hypothesis", node.ID, "error", err)
			}
			hypotheses = append(hypotheses, node.ID)
		}
	}

	perDim := any(p.HypothesesPerDimension)
	if p.HypothesesPerDimension == 0 {
		perDim = fmt.Sprintf("%d-%d", p.HypothesesMin, p.HypothesesMax)
	}
	return pipeline.Result{
		Summary: fmt.Sprintf("Generated %d hypotheses across %d dimensions", len(hypotheses), len(rc.DimensionNodes)),
		Metrics: map[string]any{
			"hypothesis_count":         len(hypotheses),
			"hypotheses_per_dimension": perDim,
		},
		Update: pipeline.Update{Hypotheses: hypotheses},
	}, nil
}

func (s *HypothesisGeneration) newHypothesis(rc *pipeline.RunContext, dim *graph.Node, i int) (*graph.Node, error) {
	p := rc.Params
	pool := p.HypothesisDisciplines
	n := 1 + rc.Rand.IntN(min(3, len(pool)))
	tags := make([]string, 0, n)
	for _, idx := range rc.Rand.Perm(len(pool))[:n] {
		tags = append(tags, pool[idx])
	}

	criteria := fmt.Sprintf(pick(rc, falsificationTemplates), dim.Label)
	plan := graph.Plan{
		Type:              pick(rc, graph.PlanTypes),
		Description:       fmt.Sprintf("Plan to evaluate hypothesis %d for %s", i, dim.Label),
		EstimatedCost:     round2(0.1 + 0.9*rc.Rand.Float64()),
		EstimatedDuration: round2(1 + 29*rc.Rand.Float64()),
	}

	var flags []graph.BiasFlag
	if rc.Rand.Float64() < 0.3 {
		bias := pick(rc, biasTypes)
		flags = append(flags, graph.BiasFlag{
			Type:        bias,
			Description: fmt.Sprintf("Potential %s in hypothesis formulation", bias),
			Severity:    pick(rc, severities),
		})
	}

	return graph.NewNode(fmt.Sprintf("hypo_%s_%d", dim.ID, i),
		fmt.Sprintf("Hypothesis %d for %s", i, dim.Label),
		graph.NodeHypothesis,
		p.HypothesisConfidence,
		graph.Metadata{
			Common: graph.Common{
				DisciplinaryTags: tags,
				LayerID:          p.HypothesisLayer,
				Provenance:       "Hypothesis generation",
				BiasFlags:        flags,
			},
			HypothesisDetails: &graph.HypothesisDetails{
				Dimension:             dim.ID,
				FalsificationCriteria: criteria,
				FalsifiabilityScore:   confidence.FalsifiabilityScore(criteria),
				ImpactScore:           impactScore(rc.Rand.Float64()),
				Plan:                  plan,
			},
		},
	)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// impactScore maps u in [0,1) onto the open interval (0.3, 0.9) at two
// decimal places.
func impactScore(u float64) float64 {
	return min(max(round2(0.3+0.6*u), 0.31), 0.89)
}
