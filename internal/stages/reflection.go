package stages

import (
	"context"
	"fmt"

	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/pipeline"
	"github.com/HendryAvila/asrgot/internal/report"
)

// Audit check names, in the order they are run.
const (
	CheckCoverage       = "confidence_impact_coverage"
	CheckBias           = "bias_assessment"
	CheckGaps           = "knowledge_gap_acknowledgment"
	CheckFalsifiability = "falsifiability"
	CheckCausal         = "causal_substantiation"
	CheckTemporal       = "temporal_completeness"
	CheckStatistical    = "statistical_rigor"
	CheckAttribution    = "attribution"
)

// Verdicts.
const (
	VerdictRobust   = "Analysis is robust with high confidence in findings."
	VerdictImprove  = "Analysis has some areas that could be improved."
	VerdictWeakness = "Analysis has significant weaknesses that should be addressed."
)

// Reflection audits the finished graph and derives the final confidence.
type Reflection struct{}

// Name implements pipeline.Stage.
func (*Reflection) Name() string { return "Reflection" }

// Execute implements pipeline.Stage.
func (*Reflection) Execute(_ context.Context, g *graph.Store, rc *pipeline.RunContext) (pipeline.Result, error) {
	audit := &report.Audit{Checks: []report.Check{
		checkCoverage(g),
		checkBias(g),
		checkGaps(g, rc.Composition),
		checkFalsifiability(g),
		checkCausal(g),
		checkTemporal(g),
		checkStatistical(g),
		checkAttribution(g),
	}}

	score := func(name string) float64 {
		c, _ := audit.Check(name)
		return c.Status.Score()
	}
	audit.FinalConfidence = graph.Vector{
		score(CheckStatistical),
		score(CheckCausal),
		(score(CheckFalsifiability) + score(CheckBias)) / 2,
		score(CheckAttribution),
	}

	passed := audit.Count(report.StatusPass)
	warnings := audit.Count(report.StatusWarning)
	failures := audit.Count(report.StatusFailure)
	switch {
	case failures > 0:
		audit.Verdict = VerdictWeakness
	case warnings > 0:
		audit.Verdict = VerdictImprove
	default:
		audit.Verdict = VerdictRobust
	}

	final := audit.FinalConfidence
	return pipeline.Result{
		Summary: fmt.Sprintf("Audit complete: %d passed, %d warnings, %d failures", passed, warnings, failures),
		Metrics: map[string]any{
			"passed_checks":    passed,
			"warning_checks":   warnings,
			"failed_checks":    failures,
			"total_checks":     len(audit.Checks),
			"final_confidence": final.Slice(),
		},
		Update: pipeline.Update{Audit: audit, FinalConfidence: &final},
	}, nil
}

// ratioCheck grades a ratio: pass at 0.8, warning at 0.5, failure below.
func ratioCheck(name string, ok, total int, what string) report.Check {
	ratio := float64(ok) / float64(total)
	status := report.StatusFailure
	switch {
	case ratio >= 0.8:
		status = report.StatusPass
	case ratio >= 0.5:
		status = report.StatusWarning
	}
	return report.Check{
		Name:    name,
		Status:  status,
		Message: fmt.Sprintf("%d of %d %s (%.0f%%)", ok, total, what, ratio*100),
	}
}

func checkCoverage(g *graph.Store) report.Check {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return report.Check{Name: CheckCoverage, Status: report.StatusFailure, Message: "Graph is empty"}
	}
	var highConf, highImpact int
	for _, n := range nodes {
		if n.Confidence.Mean() >= 0.7 {
			highConf++
		}
		if n.ImpactOr(0) >= 0.7 {
			highImpact++
		}
	}
	total := float64(len(nodes))
	hc, hi := float64(highConf)/total, float64(highImpact)/total
	status := report.StatusFailure
	switch {
	case hc >= 0.3 && hi >= 0.2:
		status = report.StatusPass
	case hc >= 0.1 && hi >= 0.1:
		status = report.StatusWarning
	}
	return report.Check{
		Name:    CheckCoverage,
		Status:  status,
		Message: fmt.Sprintf("%.0f%% high-confidence and %.0f%% high-impact nodes", hc*100, hi*100),
	}
}

func checkBias(g *graph.Store) report.Check {
	flagged, high := 0, 0
	for _, n := range g.Nodes() {
		if len(n.Metadata.BiasFlags) == 0 {
			continue
		}
		flagged++
		for _, f := range n.Metadata.BiasFlags {
			if f.Severity == graph.SeverityHigh {
				high++
				break
			}
		}
	}
	switch {
	case high > 0:
		return report.Check{Name: CheckBias, Status: report.StatusWarning,
			Message: fmt.Sprintf("%d nodes carry high-severity bias flags", high)}
	case flagged > 0:
		return report.Check{Name: CheckBias, Status: report.StatusPass,
			Message: fmt.Sprintf("Bias assessed: %d nodes flagged", flagged)}
	case g.NodeCount() > 20:
		return report.Check{Name: CheckBias, Status: report.StatusWarning,
			Message: "No bias flags recorded on a large graph"}
	default:
		return report.Check{Name: CheckBias, Status: report.StatusPass, Message: "No bias flags recorded"}
	}
}

func checkGaps(g *graph.Store, comp *report.Composition) report.Check {
	gaps := len(g.NodesOfType(graph.NodePlaceholder))
	if gaps == 0 {
		return report.Check{Name: CheckGaps, Status: report.StatusPass, Message: "No explicit knowledge gaps recorded"}
	}
	addressed := false
	if comp != nil {
		for _, s := range comp.Sections {
			if s.Type == report.SectionGaps {
				addressed = true
				break
			}
		}
	}
	if !addressed {
		return report.Check{Name: CheckGaps, Status: report.StatusWarning,
			Message: fmt.Sprintf("%d knowledge gaps are not addressed in the composition", gaps)}
	}
	return report.Check{Name: CheckGaps, Status: report.StatusPass,
		Message: fmt.Sprintf("%d knowledge gaps acknowledged", gaps)}
}

func checkFalsifiability(g *graph.Store) report.Check {
	hyps := g.NodesOfType(graph.NodeHypothesis)
	if len(hyps) == 0 {
		return report.Check{Name: CheckFalsifiability, Status: report.StatusWarning, Message: "No hypotheses to assess"}
	}
	ok := 0
	for _, h := range hyps {
		if d := h.Metadata.HypothesisDetails; d != nil && d.FalsificationCriteria != "" {
			ok++
		}
	}
	return ratioCheck(CheckFalsifiability, ok, len(hyps), "hypotheses have falsification criteria")
}

func checkCausal(g *graph.Store) report.Check {
	total, ok := 0, 0
	for _, e := range g.Edges() {
		if e.Type != graph.EdgeCausal {
			continue
		}
		total++
		if e.Metadata.Causal != nil {
			ok++
		}
	}
	if total == 0 {
		return report.Check{Name: CheckCausal, Status: report.StatusPass, Message: "No causal claims to substantiate"}
	}
	return ratioCheck(CheckCausal, ok, total, "causal edges carry causal metadata")
}

func checkTemporal(g *graph.Store) report.Check {
	total, ok := 0, 0
	for _, e := range g.Edges() {
		if e.Type != graph.EdgeTemporal {
			continue
		}
		total++
		if t := e.Metadata.Temporal; t != nil && (t.Delay != "" || t.Pattern != "") {
			ok++
		}
	}
	if total == 0 {
		return report.Check{Name: CheckTemporal, Status: report.StatusPass, Message: "No temporal relations to check"}
	}
	return ratioCheck(CheckTemporal, ok, total, "temporal edges carry delay or pattern")
}

func checkStatistical(g *graph.Store) report.Check {
	evs := g.NodesOfType(graph.NodeEvidence)
	if len(evs) == 0 {
		return report.Check{Name: CheckStatistical, Status: report.StatusWarning, Message: "No evidence to assess"}
	}
	ok := 0
	for _, ev := range evs {
		if d := ev.Metadata.EvidenceDetails; d != nil && d.StatisticalPower >= 0.7 {
			ok++
		}
	}
	return ratioCheck(CheckStatistical, ok, len(evs), "evidence nodes have statistical power of at least 0.7")
}

func checkAttribution(g *graph.Store) report.Check {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return report.Check{Name: CheckAttribution, Status: report.StatusWarning, Message: "No nodes to attribute"}
	}
	ok := 0
	for _, n := range nodes {
		if n.Metadata.Provenance != "" || n.Metadata.Attribution != "" {
			ok++
		}
	}
	return ratioCheck(CheckAttribution, ok, len(nodes), "nodes carry provenance or attribution")
}
