package templates

import (
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/report"
)

// --- NewRenderer ---

func TestNewRenderer_Succeeds(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() failed: %v", err)
	}
	if r == nil {
		t.Fatal("NewRenderer() returned nil")
	}
}

// --- Render: Report ---

func sampleReport() ReportData {
	return ReportData{
		SessionID: "sess-1",
		Query:     "How does CTCL progress?",
		Composition: &report.Composition{
			Title:            "ASR-GoT Analysis: How does CTCL progress?",
			Timestamp:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			ExecutiveSummary: "This analysis examined 30 nodes.",
			Sections: []report.Section{
				{Title: "High Confidence Analysis", Content: "Finding one [1]", Type: report.SectionAnalysis},
				{Title: "Knowledge Gaps", Content: "No significant knowledge gaps were identified.", Type: report.SectionGaps},
			},
			Citations: []report.Citation{{ID: 1, NodeID: "hypo_dim_1_1", Text: "Hypothesis 1. ASR-GoT Node hypo_dim_1_1."}},
			NodeCount: 30,
			EdgeCount: 41,
		},
		Audit: &report.Audit{
			Checks: []report.Check{
				{Name: "bias_assessment", Status: report.StatusPass, Message: "Biases were assessed"},
				{Name: "statistical_rigor", Status: report.StatusFailure, Message: "Evidence lacks power"},
			},
			FinalConfidence: graph.Vector{0.3, 0.9, 0.9, 0.9},
			Verdict:         "Analysis has some areas that could be improved.",
		},
		Confidence: graph.Vector{0.3, 0.9, 0.9, 0.9},
	}
}

func TestRender_Report(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	result, err := r.Render(Report, sampleReport())
	if err != nil {
		t.Fatalf("Render(Report) failed: %v", err)
	}

	checks := []string{
		"# ASR-GoT Analysis: How does CTCL progress?",
		"Session `sess-1`",
		"2026-03-01 12:00 UTC",
		"## Executive Summary",
		"## High Confidence Analysis",
		"Finding one [1]",
		"## Knowledge Gaps",
		"## References",
		"[1] Hypothesis 1.",
		"| bias assessment | ✅ pass | Biases were assessed |",
		"| statistical rigor | ❌ failure | Evidence lacks power |",
		"**Verdict:** Analysis has some areas that could be improved.",
		"- Empirical support: 0.30",
		"- Consensus alignment: 0.90",
	}
	for _, want := range checks {
		if !strings.Contains(result, want) {
			t.Errorf("Report output missing %q", want)
		}
	}
}

func TestRender_ReportWithoutComposition(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	result, err := r.Render(Report, ReportData{SessionID: "s", Query: "q", Confidence: graph.Uniform(0.5)})
	if err != nil {
		t.Fatalf("Render(Report) failed: %v", err)
	}
	for _, want := range []string{"# ASR-GoT Analysis: q", "no composition was produced", "No reflection audit ran.", "Methodological rigor: 0.50"} {
		if !strings.Contains(result, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if _, err := r.Render("nonexistent.md.tmpl", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

// --- Renderer interface compliance ---

func TestEmbedRenderer_ImplementsRenderer(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	// Compile-time interface check.
	var _ Renderer = r
}
