package confidence

import (
	"math"
	"strings"

	"github.com/HendryAvila/asrgot/internal/graph"
)

// testVocabulary are terms that make a falsification statement concrete.
var testVocabulary = []string{
	"experiment", "measurement", "observation", "predict", "test",
	"quantify", "threshold", "statistical", "validate", "verify", "contradict",
}

// FalsifiabilityScore grades a falsification statement in [0,1]: 0.1 per
// test-vocabulary term present, plus 0.2 for statements longer than 100
// characters or 0.1 for those longer than 50.
func FalsifiabilityScore(criteria string) float64 {
	if criteria == "" {
		return 0
	}
	lower := strings.ToLower(criteria)
	score := 0.0
	for _, term := range testVocabulary {
		if strings.Contains(lower, term) {
			score += 0.1
		}
	}
	switch n := len(criteria); {
	case n > 100:
		score += 0.2
	case n > 50:
		score += 0.1
	}
	return math.Min(math.Round(score*100)/100, 1)
}

// DetectBiases flags heuristic biases for a node: confirmation bias when
// the average confidence across nodes exceeds 0.9, recency bias when the
// provenance leans on historical sources.
func DetectBiases(confidences []graph.Vector, provenance string) []graph.BiasFlag {
	var flags []graph.BiasFlag
	if len(confidences) > 0 {
		var total float64
		for _, c := range confidences {
			total += c.Mean()
		}
		if total/float64(len(confidences)) > 0.9 {
			flags = append(flags, graph.BiasFlag{
				Type:        "confirmation_bias",
				Description: "Unusually high confidence across nodes may indicate confirmation bias",
				Severity:    graph.SeverityMedium,
			})
		}
	}
	if strings.Contains(strings.ToLower(provenance), "historical") {
		flags = append(flags, graph.BiasFlag{
			Type:        "recency_bias",
			Description: "Potential recency bias in provenance",
			Severity:    graph.SeverityLow,
		})
	}
	return flags
}
