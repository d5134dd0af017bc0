package stages

import (
	"context"
	"fmt"

	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/logging"
	"github.com/HendryAvila/asrgot/internal/pipeline"
)

// Decomposition splits the root into one dimension node per configured
// dimension.
type Decomposition struct {
	log *logging.Logger
}

// Name implements pipeline.Stage.
func (*Decomposition) Name() string { return "Decomposition" }

// Execute implements pipeline.Stage. A missing root degrades the stage to
// an empty result instead of failing the run.
func (s *Decomposition) Execute(_ context.Context, g *graph.Store, rc *pipeline.RunContext) (pipeline.Result, error) {
	dims := []string{}
	if rc.RootNodeID == "" || !g.HasNode(rc.RootNodeID) {
		return pipeline.Result{
			Summary: "Decomposition failed: root node not found",
			Metrics: map[string]any{"dimension_count": 0},
			Update:  pipeline.Update{DimensionNodes: dims},
		}, nil
	}

	p := rc.Params
	for i, d := range p.Dimensions {
		id := fmt.Sprintf("dim_%d", i+1)
		node, err := graph.NewNode(id, d.Label, graph.NodeDimension, p.DimensionConfidence, graph.Metadata{
			Common: graph.Common{
				DisciplinaryTags: rc.Disciplines,
				LayerID:          p.DimensionLayer,
				Provenance:       "Task decomposition",
			},
			DimensionDetails: &graph.DimensionDetails{Description: d.Description},
		})
		if err == nil {
			err = g.AddNode(node)
		}
		if err != nil {
			s.log.Warn("skipping dimension", "dimension", d.Label, "error", err)
			continue
		}

		edge, err := graph.NewEdge(fmt.Sprintf("e_root_dim_%d", i+1), rc.RootNodeID, id,
			graph.EdgeDecomposition, 0.9, graph.EdgeMetadata{Subtype: "dimension"})
		if err == nil {
			err = g.AddEdge(edge)
		}
		if err != nil {
			s.log.Warn("dimension edge not added", "dimension", id, "error", err)
		}
		dims = append(dims, id)
	}

	return pipeline.Result{
		Summary: fmt.Sprintf("Decomposed task into %d dimensions", len(dims)),
		Metrics: map[string]any{"dimension_count": len(dims)},
		Update:  pipeline.Update{DimensionNodes: dims},
	}, nil
}
