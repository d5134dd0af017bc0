package stages

import (
	"context"
	"fmt"

	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/pipeline"
)

// Initialization creates the root node for the query.
type Initialization struct{}

// Name implements pipeline.Stage.
func (*Initialization) Name() string { return "Initialization" }

// Execute implements pipeline.Stage.
func (*Initialization) Execute(_ context.Context, g *graph.Store, rc *pipeline.RunContext) (pipeline.Result, error) {
	p := rc.Params
	for _, layer := range p.Layers {
		g.RegisterLayer(layer)
	}

	conf := graph.Uniform(0.9)
	root, err := graph.NewNode(RootID, "Task Understanding", graph.NodeRoot, conf, graph.Metadata{
		Common: graph.Common{
			DisciplinaryTags: p.Disciplines,
			LayerID:          p.InitialLayer,
			Provenance:       "User query",
		},
		RootDetails: &graph.RootDetails{
			Query:           rc.Query,
			EpistemicStatus: "Initial",
		},
	})
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("building root node: %w", err)
	}
	if err := g.AddNode(root); err != nil {
		return pipeline.Result{}, err
	}

	return pipeline.Result{
		Summary: fmt.Sprintf("Initialized graph with root node for query: %s", truncate(rc.Query, 50)),
		Metrics: map[string]any{
			"initial_confidence": conf.Slice(),
			"disciplines":        len(root.Tags()),
		},
		Update: pipeline.Update{
			RootNodeID:  RootID,
			Disciplines: root.Tags(),
		},
	}, nil
}
