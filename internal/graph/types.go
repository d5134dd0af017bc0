// Package graph holds the entity model and the in-memory graph store that
// every reasoning stage mutates.
//
// Design:
//   - Nodes, edges and hyperedges are three owned collections. Adjacency is
//     kept as explicit per-node outgoing/incoming edge-id lists, so parallel
//     edges between the same ordered pair are distinguished by id.
//   - Hyperedges stay first-class. Rendering them as cliques is left to the
//     export layer.
//   - Node metadata is a set of typed variants, one per node type, checked
//     at construction (see ValidateNode).
package graph

import (
	"fmt"
	"math"
	"time"
)

// timeNow is a package-level var to allow test injection.
var timeNow = func() time.Time { return time.Now().UTC() }

// ─── Node types ──────────────────────────────────────────────────────────────

// NodeType identifies the role of a node in the reasoning graph.
type NodeType string

const (
	NodeRoot        NodeType = "root"
	NodeDimension   NodeType = "dimension"
	NodeHypothesis  NodeType = "hypothesis"
	NodeEvidence    NodeType = "evidence"
	NodeBridge      NodeType = "interdisciplinary_bridge"
	NodePlaceholder NodeType = "placeholder_gap"
)

var validNodeTypes = map[NodeType]bool{
	NodeRoot:        true,
	NodeDimension:   true,
	NodeHypothesis:  true,
	NodeEvidence:    true,
	NodeBridge:      true,
	NodePlaceholder: true,
}

// ValidNodeType reports whether t is a known node type.
func ValidNodeType(t NodeType) bool { return validNodeTypes[t] }

// ─── Edge types ──────────────────────────────────────────────────────────────

// EdgeType identifies the relation an edge expresses.
type EdgeType string

const (
	EdgeDecomposition EdgeType = "decomposition"
	EdgeHypothesis    EdgeType = "hypothesis"
	EdgeSupportive    EdgeType = "supportive"
	EdgeCorrelative   EdgeType = "correlative"
	EdgeCausal        EdgeType = "causal"
	EdgeTemporal      EdgeType = "temporal"
	EdgeContradictory EdgeType = "contradictory"
	EdgeIBNSource     EdgeType = "ibn_source"
	EdgeIBNTarget     EdgeType = "ibn_target"
)

var validEdgeTypes = map[EdgeType]bool{
	EdgeDecomposition: true,
	EdgeHypothesis:    true,
	EdgeSupportive:    true,
	EdgeCorrelative:   true,
	EdgeCausal:        true,
	EdgeTemporal:      true,
	EdgeContradictory: true,
	EdgeIBNSource:     true,
	EdgeIBNTarget:     true,
}

// ValidEdgeType reports whether t is a known edge type.
func ValidEdgeType(t EdgeType) bool { return validEdgeTypes[t] }

// ─── Confidence vector ───────────────────────────────────────────────────────

// Dimension names of a confidence Vector, in index order.
var VectorDimensions = [4]string{"empirical", "theoretical", "methodological", "consensus"}

// Vector is a four-dimensional confidence: empirical, theoretical,
// methodological, consensus. Each component lies in [0,1].
type Vector [4]float64

// Uniform returns a Vector with every component set to v.
func Uniform(v float64) Vector { return Vector{v, v, v, v} }

// VectorFromSlice converts a 4-element slice into a Vector.
func VectorFromSlice(s []float64) (Vector, error) {
	if len(s) != 4 {
		return Vector{}, fmt.Errorf("confidence vector needs 4 components, got %d", len(s))
	}
	return Vector{s[0], s[1], s[2], s[3]}, nil
}

// Valid reports whether every component is a finite number in [0,1].
func (v Vector) Valid() bool {
	for _, c := range v {
		if math.IsNaN(c) || c < 0 || c > 1 {
			return false
		}
	}
	return true
}

// Clamp returns v with every component forced into [0,1].
func (v Vector) Clamp() Vector {
	for i, c := range v {
		v[i] = math.Max(0, math.Min(1, c))
	}
	return v
}

// Mean returns the arithmetic mean of the components.
func (v Vector) Mean() float64 {
	return (v[0] + v[1] + v[2] + v[3]) / 4
}

// Min returns the smallest component.
func (v Vector) Min() float64 {
	return math.Min(math.Min(v[0], v[1]), math.Min(v[2], v[3]))
}

// Variance returns the population variance about the mean.
func (v Vector) Variance() float64 {
	m := v.Mean()
	var sum float64
	for _, c := range v {
		sum += (c - m) * (c - m)
	}
	return sum / 4
}

// NeutralDeviation returns the mean squared deviation from 0.5.
func (v Vector) NeutralDeviation() float64 {
	var sum float64
	for _, c := range v {
		sum += (c - 0.5) * (c - 0.5)
	}
	return sum / 4
}

// Slice returns the components as a new slice.
func (v Vector) Slice() []float64 {
	return []float64{v[0], v[1], v[2], v[3]}
}
