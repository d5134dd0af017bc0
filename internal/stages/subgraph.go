package stages

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/pipeline"
	"github.com/HendryAvila/asrgot/internal/report"
)

// SubgraphExtraction carves named views out of the graph.
type SubgraphExtraction struct{}

// Name implements pipeline.Stage.
func (*SubgraphExtraction) Name() string { return "Subgraph Extraction" }

// Execute implements pipeline.Stage. Subgraphs are emitted in a fixed
// order; criteria that are not configured, or that match no node, produce
// no subgraph.
func (*SubgraphExtraction) Execute(_ context.Context, g *graph.Store, rc *pipeline.RunContext) (pipeline.Result, error) {
	c := rc.Params.Extraction
	subgraphs := []report.Subgraph{}

	add := func(sg report.Subgraph) {
		if len(sg.Nodes) == 0 {
			return
		}
		sg.Metrics.NodeCount = len(sg.Nodes)
		sg.Metrics.EdgeCount = len(sg.Edges)
		subgraphs = append(subgraphs, sg)
	}

	add(induced(g, "high_confidence",
		fmt.Sprintf("Nodes with average confidence of at least %.2f", c.MinConfidence),
		func(n *graph.Node) bool { return n.Confidence.Mean() >= c.MinConfidence }))

	add(induced(g, "high_impact",
		fmt.Sprintf("Nodes with impact score of at least %.2f", c.MinImpact),
		func(n *graph.Node) bool { return n.ImpactOr(0) >= c.MinImpact }))

	if len(c.FocusDisciplines) > 0 {
		add(induced(g, "discipline_focus",
			fmt.Sprintf("Nodes tagged with %s", strings.Join(c.FocusDisciplines, ", ")),
			func(n *graph.Node) bool {
				return slices.ContainsFunc(n.Tags(), func(t string) bool { return slices.Contains(c.FocusDisciplines, t) })
			}))
	}

	if len(c.FocusLayers) > 0 {
		add(induced(g, "layer_focus",
			fmt.Sprintf("Nodes in layers %s", strings.Join(c.FocusLayers, ", ")),
			func(n *graph.Node) bool { return slices.Contains(c.FocusLayers, n.Metadata.LayerID) }))
	}

	if len(c.EdgePatterns) > 0 {
		add(edgePattern(g, c.EdgePatterns))
	}

	if ibns := g.IBNs(); len(ibns) > 0 {
		keep := make(map[string]bool)
		for _, id := range ibns {
			keep[id] = true
			for _, nb := range g.Neighbors(id) {
				keep[nb] = true
			}
		}
		sg := induced(g, "interdisciplinary", "Interdisciplinary bridge nodes and their neighbors",
			func(n *graph.Node) bool { return keep[n.ID] })
		sg.Metrics.IBNCount = len(ibns)
		add(sg)
	}

	names := make([]string, len(subgraphs))
	for i, sg := range subgraphs {
		names[i] = sg.Name
	}
	return pipeline.Result{
		Summary: fmt.Sprintf("Extracted %d subgraphs", len(subgraphs)),
		Metrics: map[string]any{
			"subgraph_count": len(subgraphs),
			"subgraphs":      names,
		},
		Update: pipeline.Update{Subgraphs: subgraphs},
	}, nil
}

// induced keeps the matching nodes and every edge between two of them.
func induced(g *graph.Store, name, desc string, match func(*graph.Node) bool) report.Subgraph {
	sg := report.Subgraph{Name: name, Description: desc, Nodes: []string{}, Edges: []string{}}
	keep := make(map[string]bool)
	for _, n := range g.Nodes() {
		if match(n) {
			keep[n.ID] = true
			sg.Nodes = append(sg.Nodes, n.ID)
		}
	}
	for _, e := range g.Edges() {
		if keep[e.Source] && keep[e.Target] {
			sg.Edges = append(sg.Edges, e.ID)
		}
	}
	return sg
}

// edgePattern keeps edges whose type or subtype is listed, with their
// endpoints.
func edgePattern(g *graph.Store, patterns []string) report.Subgraph {
	sg := report.Subgraph{
		Name:        "edge_pattern",
		Description: fmt.Sprintf("Edges of type %s", strings.Join(patterns, ", ")),
		Nodes:       []string{},
		Edges:       []string{},
	}
	seen := make(map[string]bool)
	addNode := func(id string) {
		if !seen[id] {
			seen[id] = true
			sg.Nodes = append(sg.Nodes, id)
		}
	}
	for _, e := range g.Edges() {
		if !slices.Contains(patterns, string(e.Type)) && !slices.Contains(patterns, e.Metadata.Subtype) {
			continue
		}
		sg.Edges = append(sg.Edges, e.ID)
		addNode(e.Source)
		addNode(e.Target)
	}
	return sg
}
