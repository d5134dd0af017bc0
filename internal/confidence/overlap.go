package confidence

import (
	"fmt"
	"math"
	"reflect"
)

// DefaultExclusions are keys never compared by SemanticOverlap.
var DefaultExclusions = []string{"id", "node_id", "edge_id", "timestamp", "revision_history"}

// SemanticOverlap scores how alike two metadata maps are, in [0,1].
//
// When keys is empty the union of both maps' keys is used. Keys in
// DefaultExclusions or exclude are skipped, as are keys missing from
// either map. Each remaining key contributes:
//   - lists: Jaccard similarity of their elements (1 when both empty)
//   - numbers: 1 - |a-b|/max(|a|,|b|), floored at 0 (1 when both zero)
//   - anything else: 1 if equal, 0 otherwise
//
// The result is the mean over compared keys, or 0 when nothing compared.
func SemanticOverlap(a, b map[string]any, keys []string, exclude ...string) float64 {
	skip := make(map[string]bool, len(DefaultExclusions)+len(exclude))
	for _, k := range DefaultExclusions {
		skip[k] = true
	}
	for _, k := range exclude {
		skip[k] = true
	}

	if len(keys) == 0 {
		seen := make(map[string]bool, len(a)+len(b))
		for k := range a {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
		for k := range b {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	var total float64
	compared := 0
	for _, k := range keys {
		if skip[k] {
			continue
		}
		va, okA := a[k]
		vb, okB := b[k]
		if !okA || !okB {
			continue
		}
		total += valueSimilarity(va, vb)
		compared++
	}
	if compared == 0 {
		return 0
	}
	return total / float64(compared)
}

func valueSimilarity(a, b any) float64 {
	la, aList := asList(a)
	lb, bList := asList(b)
	if aList && bList {
		return jaccard(la, lb)
	}
	na, aNum := asNumber(a)
	nb, bNum := asNumber(b)
	if aNum && bNum {
		return numericProximity(na, nb)
	}
	if reflect.DeepEqual(a, b) {
		return 1
	}
	return 0
}

func jaccard(a, b []any) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA, setB := keySet(a), keySet(b)
	inter := 0
	for k := range setA {
		if setB[k] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// keySet canonicalizes list elements so that maps and nested lists can
// participate in set comparison.
func keySet(list []any) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, v := range list {
		out[fmt.Sprintf("%T:%v", v, v)] = true
	}
	return out
}

func numericProximity(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	return math.Max(0, 1-math.Abs(a-b)/denom)
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}
