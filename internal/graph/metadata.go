package graph

import (
	"slices"
	"time"
)

// ─── Node metadata ───────────────────────────────────────────────────────────

// Metadata is the typed replacement for an open metadata map. Common holds
// the fields every node may carry. Exactly one variant pointer is set, and
// it must match the node type (see ValidateNode).
//
// Variants are embedded pointers so JSON encoding stays flat: the variant's
// fields sit next to the common ones and a nil variant is omitted.
type Metadata struct {
	Common
	*RootDetails
	*DimensionDetails
	*HypothesisDetails
	*EvidenceDetails
	*BridgeDetails
	*GapDetails
}

// Common holds fields shared by all node types.
type Common struct {
	DisciplinaryTags []string         `json:"disciplinary_tags,omitempty"`
	LayerID          string           `json:"layer_id,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	Provenance       string           `json:"provenance,omitempty"`
	Attribution      string           `json:"attribution,omitempty"`
	BiasFlags        []BiasFlag       `json:"bias_flags,omitempty" validate:"dive"`
	RevisionHistory  []Revision       `json:"revision_history,omitempty"`
	TopologyMetrics  *TopologyMetrics `json:"topology_metrics,omitempty"`
}

// RootDetails is carried by the root node.
type RootDetails struct {
	Query           string `json:"query" validate:"required"`
	EpistemicStatus string `json:"epistemic_status"`
}

// DimensionDetails is carried by decomposition dimension nodes.
type DimensionDetails struct {
	Description string `json:"description" validate:"required"`
}

// HypothesisDetails is carried by hypothesis nodes.
type HypothesisDetails struct {
	Dimension             string       `json:"dimension" validate:"required"`
	FalsificationCriteria string       `json:"falsification_criteria" validate:"required"`
	FalsifiabilityScore   float64      `json:"falsifiability_score" validate:"gte=0,lte=1"`
	ImpactScore           float64      `json:"impact_score" validate:"gte=0,lte=1"`
	ComputationalCost     float64      `json:"computational_cost,omitempty" validate:"gte=0"`
	Plan                  Plan         `json:"plan"`
	InfoMetrics           *InfoMetrics `json:"info_metrics,omitempty"`
}

// EvidenceDetails is carried by evidence nodes.
type EvidenceDetails struct {
	Source            string  `json:"source" validate:"required"`
	Content           string  `json:"content"`
	StatisticalPower  float64 `json:"statistical_power" validate:"gte=0,lte=1"`
	RelatedHypothesis string  `json:"related_hypothesis" validate:"required"`
}

// BridgeDetails is carried by interdisciplinary bridge nodes.
type BridgeDetails struct {
	BridgedSource     string   `json:"bridged_source" validate:"required"`
	BridgedTarget     string   `json:"bridged_target" validate:"required"`
	SourceDisciplines []string `json:"source_disciplines" validate:"min=1"`
	TargetDisciplines []string `json:"target_disciplines" validate:"min=1"`
}

// GapDetails is carried by placeholder_gap nodes.
type GapDetails struct {
	GapFor            string   `json:"gap_for"`
	ResearchQuestions []string `json:"research_questions" validate:"min=1"`
}

// --- Plan descriptor ---

// PlanType names how a hypothesis would be evaluated.
type PlanType string

const (
	PlanSearch       PlanType = "search"
	PlanExperiment   PlanType = "experiment"
	PlanSimulation   PlanType = "simulation"
	PlanMetaAnalysis PlanType = "meta_analysis"
)

// PlanTypes lists every plan type in a stable order.
var PlanTypes = []PlanType{PlanSearch, PlanExperiment, PlanSimulation, PlanMetaAnalysis}

// Plan describes the evaluation plan attached to a hypothesis.
type Plan struct {
	Type              PlanType `json:"type" validate:"oneof=search experiment simulation meta_analysis"`
	Description       string   `json:"description"`
	EstimatedCost     float64  `json:"estimated_cost" validate:"gte=0"`
	EstimatedDuration float64  `json:"estimated_duration" validate:"gte=0"`
}

// --- Annotations ---

// Severity grades a bias flag.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// BiasFlag annotates a node with a suspected cognitive or methodological bias.
type BiasFlag struct {
	Type        string   `json:"type" validate:"required"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity" validate:"oneof=low medium high"`
}

// Revision records a structural change applied to a node.
type Revision struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	SourceNode  string    `json:"source_node,omitempty"`
	Description string    `json:"description"`
}

// TopologyMetrics holds the centrality figures computed by Store.TopologyMetrics.
type TopologyMetrics struct {
	DegreeCentrality      float64 `json:"degree_centrality"`
	BetweennessCentrality float64 `json:"betweenness_centrality"`
	ClosenessCentrality   float64 `json:"closeness_centrality"`
	ClusteringCoefficient float64 `json:"clustering_coefficient"`
}

// InfoMetrics holds information-theoretic figures for a hypothesis.
// KLDivergence is nil when the divergence is undefined (infinite).
type InfoMetrics struct {
	Entropy       float64   `json:"entropy"`
	KLDivergence  *float64  `json:"kl_divergence,omitempty"`
	MDLComplexity float64   `json:"mdl_complexity"`
	Timestamp     time.Time `json:"timestamp"`
}

// ─── Edge metadata ───────────────────────────────────────────────────────────

// EdgeMetadata carries optional edge annotations.
type EdgeMetadata struct {
	Timestamp  time.Time         `json:"timestamp"`
	Subtype    string            `json:"subtype,omitempty"`
	Provenance string            `json:"provenance,omitempty"`
	Causal     *CausalMetadata   `json:"causal_metadata,omitempty"`
	Temporal   *TemporalMetadata `json:"temporal_metadata,omitempty"`
}

// CausalMetadata substantiates a causal claim.
type CausalMetadata struct {
	Confounders []string `json:"confounders"`
	Mechanism   string   `json:"mechanism"`
}

// TemporalMetadata describes a temporal relation.
type TemporalMetadata struct {
	Delay   string `json:"delay"`
	Pattern string `json:"pattern"`
}

// HyperedgeMetadata carries hyperedge annotations.
type HyperedgeMetadata struct {
	Timestamp    time.Time `json:"timestamp"`
	Relationship string    `json:"relationship,omitempty"`
	Provenance   string    `json:"provenance,omitempty"`
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// normalizeTags drops empty and duplicate tags, keeping first-seen order.
// An empty result is nil.
func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// UnionTags returns a followed by the tags of b not already in a.
func UnionTags(a, b []string) []string {
	return normalizeTags(append(slices.Clone(a), b...))
}

// TagsDisjoint reports whether a and b share no tag.
func TagsDisjoint(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return false
		}
	}
	return true
}

func (m Metadata) clone() Metadata {
	out := m
	out.DisciplinaryTags = slices.Clone(m.DisciplinaryTags)
	out.BiasFlags = slices.Clone(m.BiasFlags)
	out.RevisionHistory = slices.Clone(m.RevisionHistory)
	if m.TopologyMetrics != nil {
		tm := *m.TopologyMetrics
		out.TopologyMetrics = &tm
	}
	if m.RootDetails != nil {
		d := *m.RootDetails
		out.RootDetails = &d
	}
	if m.DimensionDetails != nil {
		d := *m.DimensionDetails
		out.DimensionDetails = &d
	}
	if m.HypothesisDetails != nil {
		d := *m.HypothesisDetails
		if d.InfoMetrics != nil {
			im := *d.InfoMetrics
			if im.KLDivergence != nil {
				kl := *im.KLDivergence
				im.KLDivergence = &kl
			}
			d.InfoMetrics = &im
		}
		out.HypothesisDetails = &d
	}
	if m.EvidenceDetails != nil {
		d := *m.EvidenceDetails
		out.EvidenceDetails = &d
	}
	if m.BridgeDetails != nil {
		d := *m.BridgeDetails
		d.SourceDisciplines = slices.Clone(d.SourceDisciplines)
		d.TargetDisciplines = slices.Clone(d.TargetDisciplines)
		out.BridgeDetails = &d
	}
	if m.GapDetails != nil {
		d := *m.GapDetails
		d.ResearchQuestions = slices.Clone(d.ResearchQuestions)
		out.GapDetails = &d
	}
	return out
}

func (m EdgeMetadata) clone() EdgeMetadata {
	out := m
	if m.Causal != nil {
		c := *m.Causal
		c.Confounders = slices.Clone(c.Confounders)
		out.Causal = &c
	}
	if m.Temporal != nil {
		t := *m.Temporal
		out.Temporal = &t
	}
	return out
}
