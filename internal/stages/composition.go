package stages

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/pipeline"
	"github.com/HendryAvila/asrgot/internal/report"
)

const (
	keyFindingConfidence = 0.7
	maxKeyFindings       = 5
	maxEvidencePerFind   = 3
	gapVarianceThreshold = 0.1
)

// Composition narrates the extracted subgraphs into a cited report.
type Composition struct{}

// Name implements pipeline.Stage.
func (*Composition) Name() string { return "Composition" }

// Execute implements pipeline.Stage. With no subgraphs the stage records
// nothing and the run carries no composition.
func (*Composition) Execute(_ context.Context, g *graph.Store, rc *pipeline.RunContext) (pipeline.Result, error) {
	if len(rc.Subgraphs) == 0 {
		return pipeline.Result{
			Summary: "Composition skipped: no subgraphs were extracted",
			Metrics: map[string]any{"section_count": 0, "citation_count": 0},
		}, nil
	}

	c := &citer{g: g, ids: make(map[string]int)}
	comp := &report.Composition{
		Title:          "ASR-GoT Analysis: " + truncate(rc.Query, 50),
		Timestamp:      timeNow(),
		NodeCount:      g.NodeCount(),
		EdgeCount:      g.EdgeCount(),
		HyperedgeCount: g.HyperedgeCount(),
		IBNCount:       len(g.IBNs()),
	}
	comp.ExecutiveSummary = fmt.Sprintf(
		"This analysis of %q built a reasoning graph of %d nodes, %d edges and %d hyperedges, "+
			"from which %d focused subgraphs were extracted. %d interdisciplinary bridge nodes connect findings across disciplines.",
		rc.Query, comp.NodeCount, comp.EdgeCount, comp.HyperedgeCount, len(rc.Subgraphs), comp.IBNCount)

	for _, sg := range rc.Subgraphs {
		comp.Sections = append(comp.Sections, analysisSection(g, sg, c))
	}
	if comp.IBNCount > 0 {
		comp.Sections = append(comp.Sections, bridgeSection(g, c))
	}
	comp.Sections = append(comp.Sections, gapSection(g, c))
	comp.Citations = c.list

	return pipeline.Result{
		Summary: fmt.Sprintf("Composed %d sections with %d citations", len(comp.Sections), len(comp.Citations)),
		Metrics: map[string]any{
			"section_count":  len(comp.Sections),
			"citation_count": len(comp.Citations),
		},
		Update: pipeline.Update{Composition: comp},
	}, nil
}

// citer hands out one citation number per cited node.
type citer struct {
	g    *graph.Store
	ids  map[string]int
	list []report.Citation
}

func (c *citer) cite(n *graph.Node) string {
	if id, ok := c.ids[n.ID]; ok {
		return fmt.Sprintf("[%d]", id)
	}
	id := len(c.list) + 1
	c.ids[n.ID] = id
	c.list = append(c.list, report.Citation{
		ID:     id,
		NodeID: n.ID,
		Text: fmt.Sprintf("%s. ASR-GoT Node %s. Type: %s. Generated: %s.",
			n.Label, n.ID, n.Type, n.Metadata.Timestamp.Format(time.RFC3339)),
	})
	return fmt.Sprintf("[%d]", id)
}

func analysisSection(g *graph.Store, sg report.Subgraph, c *citer) report.Section {
	var b strings.Builder
	b.WriteString(sg.Description)
	b.WriteString("\n\n")

	var findings []*graph.Node
	for _, id := range sg.Nodes {
		if n, err := g.Node(id); err == nil && n.Confidence.Mean() >= keyFindingConfidence {
			findings = append(findings, n)
		}
	}
	slices.SortStableFunc(findings, func(a, b *graph.Node) int {
		switch ma, mb := a.Confidence.Mean(), b.Confidence.Mean(); {
		case ma > mb:
			return -1
		case ma < mb:
			return 1
		}
		return 0
	})

	if len(findings) == 0 {
		fmt.Fprintf(&b, "No nodes in this subgraph reached a confidence of %.2f.", keyFindingConfidence)
	}
	for _, n := range findings[:min(len(findings), maxKeyFindings)] {
		fmt.Fprintf(&b, "- %s (confidence %.2f) %s\n", n.Label, n.Confidence.Mean(), c.cite(n))
		if n.Type != graph.NodeHypothesis {
			continue
		}
		cited := 0
		for _, e := range g.InEdges(n.ID) {
			if cited == maxEvidencePerFind {
				break
			}
			ev, err := g.Node(e.Source)
			if err != nil || ev.Type != graph.NodeEvidence {
				continue
			}
			fmt.Fprintf(&b, "  - %s evidence: %s %s\n", e.Type, ev.Metadata.EvidenceDetails.Content, c.cite(ev))
			cited++
		}
	}

	return report.Section{
		Title:    titleCase(sg.Name) + " Analysis",
		Content:  strings.TrimRight(b.String(), "\n"),
		Type:     report.SectionAnalysis,
		Subgraph: sg.Name,
	}
}

func bridgeSection(g *graph.Store, c *citer) report.Section {
	var b strings.Builder
	for _, id := range g.IBNs() {
		n, err := g.Node(id)
		if err != nil || n.Metadata.BridgeDetails == nil {
			continue
		}
		d := n.Metadata.BridgeDetails
		fmt.Fprintf(&b, "- %s connects %s with %s %s\n", n.Label,
			strings.Join(d.SourceDisciplines, ", "), strings.Join(d.TargetDisciplines, ", "), c.cite(n))
	}
	return report.Section{
		Title:   "Interdisciplinary Insights",
		Content: strings.TrimRight(b.String(), "\n"),
		Type:    report.SectionInterdisciplinary,
	}
}

func gapSection(g *graph.Store, c *citer) report.Section {
	var b strings.Builder
	for _, n := range g.NodesOfType(graph.NodePlaceholder) {
		questions := ""
		if n.Metadata.GapDetails != nil {
			questions = strings.Join(n.Metadata.GapDetails.ResearchQuestions, " ")
		}
		fmt.Fprintf(&b, "- %s: %s %s\n", n.Label, questions, c.cite(n))
	}
	for _, n := range g.Nodes() {
		if v := n.Confidence.Variance(); v > gapVarianceThreshold {
			fmt.Fprintf(&b, "- %s has inconsistent confidence across dimensions (variance %.2f) %s\n",
				n.Label, v, c.cite(n))
		}
	}
	content := strings.TrimRight(b.String(), "\n")
	if content == "" {
		content = "No significant knowledge gaps were identified."
	}
	return report.Section{
		Title:   "Knowledge Gaps",
		Content: content,
		Type:    report.SectionGaps,
	}
}
