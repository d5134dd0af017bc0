// Package report holds the output records produced by the extraction,
// composition and reflection stages.
package report

import (
	"time"

	"github.com/HendryAvila/asrgot/internal/graph"
)

// Subgraph is a named view over part of the graph.
type Subgraph struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Nodes       []string        `json:"nodes"`
	Edges       []string        `json:"edges"`
	Metrics     SubgraphMetrics `json:"metrics"`
}

// SubgraphMetrics summarizes a Subgraph.
type SubgraphMetrics struct {
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`
	IBNCount  int `json:"ibn_count,omitempty"`
}

// Section types.
const (
	SectionAnalysis          = "analysis"
	SectionInterdisciplinary = "interdisciplinary"
	SectionGaps              = "gaps"
)

// Section is one narrated part of a Composition.
type Section struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Type     string `json:"type"`
	Subgraph string `json:"subgraph,omitempty"`
}

// Citation references a graph node.
type Citation struct {
	ID     int    `json:"id"`
	NodeID string `json:"node_id"`
	Text   string `json:"text"`
}

// Composition is the narrated result of a reasoning run.
type Composition struct {
	Title            string     `json:"title"`
	Timestamp        time.Time  `json:"timestamp"`
	ExecutiveSummary string     `json:"executive_summary"`
	Sections         []Section  `json:"sections"`
	Citations        []Citation `json:"citations"`
	NodeCount        int        `json:"node_count"`
	EdgeCount        int        `json:"edge_count"`
	HyperedgeCount   int        `json:"hyperedge_count"`
	IBNCount         int        `json:"ibn_count"`
}

// Status is the outcome of one audit check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFailure Status = "failure"
)

// Score maps a status onto the confidence scale used for the final vector.
func (s Status) Score() float64 {
	switch s {
	case StatusPass:
		return 0.9
	case StatusWarning:
		return 0.6
	default:
		return 0.3
	}
}

// Check is one audit result.
type Check struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Audit is the self-assessment of a reasoning run.
type Audit struct {
	Checks          []Check      `json:"checks"`
	FinalConfidence graph.Vector `json:"final_confidence"`
	Verdict         string       `json:"verdict"`
}

// Count returns how many checks ended with status s.
func (a *Audit) Count(s Status) int {
	n := 0
	for _, c := range a.Checks {
		if c.Status == s {
			n++
		}
	}
	return n
}

// Check returns the named check.
func (a *Audit) Check(name string) (Check, bool) {
	for _, c := range a.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}
