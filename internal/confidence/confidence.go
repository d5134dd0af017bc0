// Package confidence implements the numeric core used to score and
// refine the reasoning graph: Bayesian confidence updates, entropy and
// KL-divergence, and semantic-overlap similarity between metadata maps.
//
// Every function here is pure.
package confidence

import (
	"math"

	"github.com/HendryAvila/asrgot/internal/graph"
)

// Relation weights applied by BayesianUpdate.
var typeWeights = map[graph.EdgeType]float64{
	graph.EdgeSupportive:    1.0,
	graph.EdgeCausal:        1.2,
	graph.EdgeCorrelative:   0.6,
	graph.EdgeContradictory: -0.8,
}

const defaultTypeWeight = 0.5

// TypeWeight returns the update weight for an edge type.
func TypeWeight(t graph.EdgeType) float64 {
	if w, ok := typeWeights[t]; ok {
		return w
	}
	return defaultTypeWeight
}

// BayesianUpdate blends evidence into prior per dimension:
// prior + w*(evidence-prior), with w = TypeWeight(t) * power. The result is
// clamped to [0,1].
func BayesianUpdate(prior, evidence graph.Vector, power float64, t graph.EdgeType) graph.Vector {
	w := TypeWeight(t) * power
	var out graph.Vector
	for i := range prior {
		out[i] = prior[i] + w*(evidence[i]-prior[i])
	}
	return out.Clamp()
}

// Entropy returns the Shannon entropy (bits) of dist after normalization.
// It is 0 when dist sums to 0.
func Entropy(dist []float64) float64 {
	total := sum(dist)
	if total == 0 {
		return 0
	}
	var h float64
	for _, v := range dist {
		if v <= 0 {
			continue
		}
		p := v / total
		h -= p * math.Log2(p)
	}
	return h
}

// KLDivergence returns D(p||q) in bits over the normalized vectors. Terms
// where either probability is zero are skipped. It is +Inf when either
// vector sums to 0.
func KLDivergence(p, q []float64) float64 {
	ps, qs := sum(p), sum(q)
	if ps == 0 || qs == 0 {
		return math.Inf(1)
	}
	var kl float64
	for i := 0; i < len(p) && i < len(q); i++ {
		pi, qi := p[i]/ps, q[i]/qs
		if pi > 0 && qi > 0 {
			kl += pi * math.Log2(pi/qi)
		}
	}
	return kl
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}
