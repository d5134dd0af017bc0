package stages

import (
	"context"
	"fmt"

	"github.com/HendryAvila/asrgot/internal/confidence"
	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/logging"
	"github.com/HendryAvila/asrgot/internal/pipeline"
)

// PruningMerging removes weak nodes and folds near-duplicates together.
// Root and dimension nodes are never touched.
type PruningMerging struct {
	log *logging.Logger
}

// Name implements pipeline.Stage.
func (*PruningMerging) Name() string { return "Pruning and Merging" }

// derivedFields are computed from graph structure, not node content, and
// take no part in merge decisions.
var derivedFields = []string{"topology_metrics", "info_metrics"}

type mergePair struct {
	loser, survivor string
	overlap         float64
}

// Execute implements pipeline.Stage.
func (s *PruningMerging) Execute(_ context.Context, g *graph.Store, rc *pipeline.RunContext) (pipeline.Result, error) {
	p := rc.Params

	pruned := make(map[string]bool)
	var toPrune []string
	for _, n := range g.Nodes() {
		if protected(n) {
			continue
		}
		if n.Confidence.Min() < p.PruningThreshold && n.ImpactOr(0.5) < p.ImpactThreshold {
			pruned[n.ID] = true
			toPrune = append(toPrune, n.ID)
		}
	}

	merges := planMerges(g, pruned, p.MergingThreshold)

	removed := 0
	for _, id := range toPrune {
		if err := g.RemoveNode(id); err != nil {
			s.log.Warn("prune failed", "node", id, "error", err)
			continue
		}
		removed++
	}

	merged := 0
	for _, m := range merges {
		if !g.HasNode(m.loser) || !g.HasNode(m.survivor) {
			continue
		}
		desc := fmt.Sprintf("Merged %s into %s (overlap %.2f)", m.loser, m.survivor, m.overlap)
		if _, err := g.MergeNodes(m.loser, m.survivor, desc); err != nil {
			s.log.Warn("merge failed", "loser", m.loser, "survivor", m.survivor, "error", err)
			continue
		}
		merged++
	}

	return pipeline.Result{
		Summary: fmt.Sprintf("Pruned %d nodes and merged %d nodes", removed, merged),
		Metrics: map[string]any{
			"pruned_nodes":    removed,
			"merged_nodes":    merged,
			"remaining_nodes": g.NodeCount(),
			"remaining_edges": g.EdgeCount(),
		},
	}, nil
}

// planMerges compares every same-type pair of surviving nodes and keeps
// the one with the higher mean confidence times impact. A node chosen as
// a loser takes part in no further pairs.
func planMerges(g *graph.Store, pruned map[string]bool, threshold float64) []mergePair {
	byType := make(map[graph.NodeType][]*graph.Node)
	var order []graph.NodeType
	for _, n := range g.Nodes() {
		if protected(n) || pruned[n.ID] {
			continue
		}
		if _, seen := byType[n.Type]; !seen {
			order = append(order, n.Type)
		}
		byType[n.Type] = append(byType[n.Type], n)
	}

	losers := make(map[string]bool)
	var out []mergePair
	for _, typ := range order {
		group := byType[typ]
		fields := make([]map[string]any, len(group))
		for i, n := range group {
			fields[i] = n.Fields()
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if losers[a.ID] || losers[b.ID] {
					continue
				}
				overlap := confidence.SemanticOverlap(fields[i], fields[j], nil, derivedFields...)
				if overlap < threshold {
					continue
				}
				survivor, loser := a, b
				if mergeScore(b) > mergeScore(a) {
					survivor, loser = b, a
				}
				losers[loser.ID] = true
				out = append(out, mergePair{loser: loser.ID, survivor: survivor.ID, overlap: overlap})
			}
		}
	}
	return out
}

func mergeScore(n *graph.Node) float64 {
	return n.Confidence.Mean() * n.ImpactOr(0.5)
}

func protected(n *graph.Node) bool {
	return n.Type == graph.NodeRoot || n.Type == graph.NodeDimension
}
