package graph

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/HendryAvila/asrgot/internal/apperr"
)

// ─── Node ────────────────────────────────────────────────────────────────────

// Node is a vertex of the reasoning graph.
type Node struct {
	ID         string   `json:"id" validate:"required"`
	Label      string   `json:"label" validate:"required"`
	Type       NodeType `json:"type"`
	Confidence Vector   `json:"confidence"`
	Metadata   Metadata `json:"metadata"`
}

// NewNode builds a validated Node. A zero timestamp is set to now and
// disciplinary tags are de-duplicated.
func NewNode(id, label string, typ NodeType, conf Vector, md Metadata) (*Node, error) {
	if md.Timestamp.IsZero() {
		md.Timestamp = timeNow()
	}
	md.DisciplinaryTags = normalizeTags(md.DisciplinaryTags)
	n := &Node{ID: id, Label: label, Type: typ, Confidence: conf, Metadata: md}
	if err := ValidateNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Tags returns the node's disciplinary tags.
func (n *Node) Tags() []string { return n.Metadata.DisciplinaryTags }

// Impact returns the node's impact score, if it carries one.
func (n *Node) Impact() (float64, bool) {
	if n.Metadata.HypothesisDetails == nil {
		return 0, false
	}
	return n.Metadata.HypothesisDetails.ImpactScore, true
}

// ImpactOr returns the impact score or def when the node has none.
func (n *Node) ImpactOr(def float64) float64 {
	if v, ok := n.Impact(); ok {
		return v
	}
	return def
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	out := *n
	out.Metadata = n.Metadata.clone()
	return &out
}

// ToMap renders the node as a generic map.
func (n *Node) ToMap() (map[string]any, error) { return toMap(n) }

// Fields returns the flattened comparable view of a node used by
// semantic-overlap scoring: label, type and confidence next to every
// metadata field.
func (n *Node) Fields() map[string]any {
	fields, err := toMap(n.Metadata)
	if err != nil {
		fields = map[string]any{}
	}
	fields["label"] = n.Label
	fields["node_type"] = string(n.Type)
	conf := make([]any, 4)
	for i, c := range n.Confidence {
		conf[i] = c
	}
	fields["confidence"] = conf
	return fields
}

// NodeFromMap rebuilds a Node from the output of ToMap.
func NodeFromMap(m map[string]any) (*Node, error) {
	var n Node
	if err := fromMap(m, &n); err != nil {
		return nil, apperr.Validation("decoding node").WithCause(err)
	}
	if err := ValidateNode(&n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ─── Edge ────────────────────────────────────────────────────────────────────

// Edge is a directed, typed binary relation.
type Edge struct {
	ID         string       `json:"id" validate:"required"`
	Source     string       `json:"source" validate:"required"`
	Target     string       `json:"target" validate:"required"`
	Type       EdgeType     `json:"type"`
	Confidence float64      `json:"confidence" validate:"gte=0,lte=1"`
	Metadata   EdgeMetadata `json:"metadata"`
}

// NewEdge builds a validated Edge. Endpoint existence is checked by the Store.
func NewEdge(id, source, target string, typ EdgeType, conf float64, md EdgeMetadata) (*Edge, error) {
	if md.Timestamp.IsZero() {
		md.Timestamp = timeNow()
	}
	e := &Edge{ID: id, Source: source, Target: target, Type: typ, Confidence: conf, Metadata: md}
	if err := ValidateEdge(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Clone returns a deep copy of e.
func (e *Edge) Clone() *Edge {
	out := *e
	out.Metadata = e.Metadata.clone()
	return &out
}

// ToMap renders the edge as a generic map.
func (e *Edge) ToMap() (map[string]any, error) { return toMap(e) }

// EdgeFromMap rebuilds an Edge from the output of ToMap.
func EdgeFromMap(m map[string]any) (*Edge, error) {
	var e Edge
	if err := fromMap(m, &e); err != nil {
		return nil, apperr.Validation("decoding edge").WithCause(err)
	}
	if err := ValidateEdge(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ─── Hyperedge ───────────────────────────────────────────────────────────────

// Hyperedge is a single relation spanning three or more distinct nodes.
type Hyperedge struct {
	ID         string            `json:"id" validate:"required"`
	Nodes      []string          `json:"nodes"`
	Confidence float64           `json:"confidence" validate:"gte=0,lte=1"`
	Metadata   HyperedgeMetadata `json:"metadata"`
}

// MinHyperedgeArity is the smallest number of distinct members a hyperedge may have.
const MinHyperedgeArity = 3

// NewHyperedge builds a validated Hyperedge. It fails with a validation
// error when fewer than three distinct node ids are given.
func NewHyperedge(id string, nodes []string, conf float64, md HyperedgeMetadata) (*Hyperedge, error) {
	if md.Timestamp.IsZero() {
		md.Timestamp = timeNow()
	}
	h := &Hyperedge{ID: id, Nodes: normalizeTags(nodes), Confidence: conf, Metadata: md}
	if err := ValidateHyperedge(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Clone returns a copy of h.
func (h *Hyperedge) Clone() *Hyperedge {
	out := *h
	out.Nodes = slices.Clone(h.Nodes)
	return &out
}

// ToMap renders the hyperedge as a generic map.
func (h *Hyperedge) ToMap() (map[string]any, error) { return toMap(h) }

// HyperedgeFromMap rebuilds a Hyperedge from the output of ToMap.
func HyperedgeFromMap(m map[string]any) (*Hyperedge, error) {
	var h Hyperedge
	if err := fromMap(m, &h); err != nil {
		return nil, apperr.Validation("decoding hyperedge").WithCause(err)
	}
	if err := ValidateHyperedge(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ─── Map codec ───────────────────────────────────────────────────────────────

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshaling %T: %w", v, err)
	}
	return m, nil
}

func fromMap(m map[string]any, out any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
