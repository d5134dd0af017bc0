// Package stages implements the eight reasoning stages run by the pipeline.
//
// Each file holds one stage (SRP). Stages are stateless: everything that
// varies per run lives in the pipeline.RunContext, so one stage set can
// serve concurrent sessions. Capabilities a stage consumes (evidence
// source, relation classifier, refinement hooks) are injected through
// Options (DIP).
package stages

import (
	"strings"
	"time"
	"unicode"

	"github.com/HendryAvila/asrgot/internal/logging"
	"github.com/HendryAvila/asrgot/internal/pipeline"
)

// timeNow is a package-level var to allow test injection.
var timeNow = func() time.Time { return time.Now().UTC() }

// RootID is the id of the root node.
const RootID = "n0"

// Options wires the capabilities used by the stages.
type Options struct {
	Source     EvidenceSource
	Classifier RelationClassifier
	Hooks      Hooks
	Log        *logging.Logger
}

// Default returns the eight stages in pipeline order. Missing options fall
// back to the demo source, the random classifier and a no-op logger.
func Default(opts Options) []pipeline.Stage {
	if opts.Source == nil {
		opts.Source = DemoSource{}
	}
	if opts.Classifier == nil {
		opts.Classifier = RandomClassifier{}
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	return []pipeline.Stage{
		&Initialization{},
		&Decomposition{log: opts.Log},
		&HypothesisGeneration{log: opts.Log},
		&EvidenceIntegration{source: opts.Source, classifier: opts.Classifier, hooks: opts.Hooks, log: opts.Log},
		&PruningMerging{log: opts.Log},
		&SubgraphExtraction{},
		&Composition{},
		&Reflection{},
	}
}

// --- helpers ---

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// titleCase turns "high_confidence" into "High Confidence".
func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func pick[T any](rc *pipeline.RunContext, items []T) T {
	return items[rc.Rand.IntN(len(items))]
}
