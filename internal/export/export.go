// Package export renders graph snapshots for presentation.
//
// Hyperedges stay first-class in the graph. Only here are they expanded
// into "virtual" clique edges, for consumers that can draw binary edges
// only. Virtual edges never flow back into a Store.
package export

import (
	"fmt"

	"github.com/HendryAvila/asrgot/internal/graph"
)

// CliqueEdgeType is the type reported for virtual edges.
const CliqueEdgeType = "hyperedge_clique"

// VirtualEdge links two members of the same hyperedge.
type VirtualEdge struct {
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence"`
	HyperedgeID string  `json:"hyperedge_id"`
}

// Document is a GraphState plus optional virtual edges.
type Document struct {
	*graph.State
	VirtualEdges []VirtualEdge `json:"virtual_edges,omitempty"`
}

// Render wraps st for export. With includeCliques, every hyperedge of n
// members contributes n*(n-1)/2 virtual edges carrying its confidence.
func Render(st *graph.State, includeCliques bool) *Document {
	doc := &Document{State: st}
	if !includeCliques {
		return doc
	}
	for _, h := range st.Hyperedges {
		for i := 0; i < len(h.Nodes); i++ {
			for j := i + 1; j < len(h.Nodes); j++ {
				a, b := h.Nodes[i], h.Nodes[j]
				doc.VirtualEdges = append(doc.VirtualEdges, VirtualEdge{
					ID:          fmt.Sprintf("%s:%s-%s", h.ID, a, b),
					Source:      a,
					Target:      b,
					Type:        CliqueEdgeType,
					Confidence:  h.Confidence,
					HyperedgeID: h.ID,
				})
			}
		}
	}
	return doc
}
