package graph

import (
	"slices"

	"github.com/HendryAvila/asrgot/internal/apperr"
)

// Store owns the nodes, edges, hyperedges, layers and bridge-node set of a
// single reasoning session.
//
// Store is not safe for concurrent use. Each session serializes access to
// its Store (see package session). Nodes and edges returned by lookups are
// owned by the Store; callers may edit metadata in place but must go
// through the Store for anything indexed (ids, endpoints, layer, confidence
// validation).
type Store struct {
	nodes     map[string]*Node
	nodeOrder []string

	edges     map[string]*Edge
	edgeOrder []string
	outgoing  map[string][]string // node id -> edge ids
	incoming  map[string][]string // node id -> edge ids

	hyperedges map[string]*Hyperedge
	hyperOrder []string

	layers     map[string][]string // layer id -> node ids
	layerOrder []string

	ibns map[string]struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		nodes:      make(map[string]*Node),
		edges:      make(map[string]*Edge),
		outgoing:   make(map[string][]string),
		incoming:   make(map[string][]string),
		hyperedges: make(map[string]*Hyperedge),
		layers:     make(map[string][]string),
		ibns:       make(map[string]struct{}),
	}
}

// ─── Mutation ────────────────────────────────────────────────────────────────

// AddNode inserts n and registers it in its layer. Ids must be unique.
func (s *Store) AddNode(n *Node) error {
	if n == nil {
		return apperr.Validation("node is nil")
	}
	if _, exists := s.nodes[n.ID]; exists {
		return apperr.Validation("node %q already exists", n.ID)
	}
	s.nodes[n.ID] = n
	s.nodeOrder = append(s.nodeOrder, n.ID)
	if layer := n.Metadata.LayerID; layer != "" {
		s.RegisterLayer(layer)
		s.layers[layer] = append(s.layers[layer], n.ID)
	}
	return nil
}

// RegisterLayer declares a layer even if no node belongs to it yet.
func (s *Store) RegisterLayer(id string) {
	if id == "" {
		return
	}
	if _, ok := s.layers[id]; ok {
		return
	}
	s.layers[id] = nil
	s.layerOrder = append(s.layerOrder, id)
}

// AddEdge inserts e. Both endpoints must already exist.
func (s *Store) AddEdge(e *Edge) error {
	if e == nil {
		return apperr.Validation("edge is nil")
	}
	if _, exists := s.edges[e.ID]; exists {
		return apperr.Validation("edge %q already exists", e.ID)
	}
	if _, ok := s.nodes[e.Source]; !ok {
		return apperr.Validation("edge %q: source node %q does not exist", e.ID, e.Source)
	}
	if _, ok := s.nodes[e.Target]; !ok {
		return apperr.Validation("edge %q: target node %q does not exist", e.ID, e.Target)
	}
	s.edges[e.ID] = e
	s.edgeOrder = append(s.edgeOrder, e.ID)
	s.outgoing[e.Source] = append(s.outgoing[e.Source], e.ID)
	s.incoming[e.Target] = append(s.incoming[e.Target], e.ID)
	return nil
}

// AddHyperedge inserts h. It needs at least three distinct existing members.
func (s *Store) AddHyperedge(h *Hyperedge) error {
	if err := ValidateHyperedge(h); err != nil {
		return err
	}
	if _, exists := s.hyperedges[h.ID]; exists {
		return apperr.Validation("hyperedge %q already exists", h.ID)
	}
	for _, id := range h.Nodes {
		if _, ok := s.nodes[id]; !ok {
			return apperr.Validation("hyperedge %q: member node %q does not exist", h.ID, id)
		}
	}
	s.hyperedges[h.ID] = h
	s.hyperOrder = append(s.hyperOrder, h.ID)
	return nil
}

// UpdateNodeConfidence replaces a node's confidence vector.
func (s *Store) UpdateNodeConfidence(id string, v Vector) error {
	n, ok := s.nodes[id]
	if !ok {
		return apperr.NotFound("node %q not found", id)
	}
	if !v.Valid() {
		return apperr.Validation("node %q: confidence %v out of [0,1]", id, v)
	}
	n.Confidence = v
	return nil
}

// UpdateEdgeConfidence replaces the confidence of an edge, or of a
// hyperedge when no binary edge has that id.
func (s *Store) UpdateEdgeConfidence(id string, c float64) error {
	if c < 0 || c > 1 || c != c {
		return apperr.Validation("edge %q: confidence %v out of [0,1]", id, c)
	}
	if e, ok := s.edges[id]; ok {
		e.Confidence = c
		return nil
	}
	if h, ok := s.hyperedges[id]; ok {
		h.Confidence = c
		return nil
	}
	return apperr.NotFound("edge %q not found", id)
}

// RemoveNode deletes a node together with its incident edges. The node
// leaves its layer, the bridge set and every hyperedge; hyperedges that
// drop below three members are removed.
func (s *Store) RemoveNode(id string) error {
	if _, ok := s.nodes[id]; !ok {
		return apperr.NotFound("node %q not found", id)
	}
	for _, eid := range slices.Concat(s.outgoing[id], s.incoming[id]) {
		s.removeEdge(eid)
	}
	delete(s.outgoing, id)
	delete(s.incoming, id)

	n := s.nodes[id]
	if layer := n.Metadata.LayerID; layer != "" {
		s.layers[layer] = removeString(s.layers[layer], id)
	}
	delete(s.ibns, id)
	delete(s.nodes, id)
	s.nodeOrder = removeString(s.nodeOrder, id)
	s.replaceHyperedgeMember(id, "")
	return nil
}

// MergeNodes folds loser into survivor. Every edge incident to the loser is
// re-pointed at the survivor, disciplinary tags and bias flags are
// unioned, a merge record is appended to the survivor's revision history
// and the loser is deleted. It returns the number of edges transferred.
func (s *Store) MergeNodes(loserID, survivorID, description string) (int, error) {
	if loserID == survivorID {
		return 0, apperr.Validation("cannot merge node %q into itself", loserID)
	}
	loser, ok := s.nodes[loserID]
	if !ok {
		return 0, apperr.NotFound("node %q not found", loserID)
	}
	survivor, ok := s.nodes[survivorID]
	if !ok {
		return 0, apperr.NotFound("node %q not found", survivorID)
	}

	moved := 0
	for _, eid := range slices.Clone(s.outgoing[loserID]) {
		e := s.edges[eid]
		e.Source = survivorID
		s.outgoing[survivorID] = append(s.outgoing[survivorID], eid)
		moved++
	}
	for _, eid := range slices.Clone(s.incoming[loserID]) {
		e := s.edges[eid]
		e.Target = survivorID
		s.incoming[survivorID] = append(s.incoming[survivorID], eid)
		moved++
	}
	delete(s.outgoing, loserID)
	delete(s.incoming, loserID)

	survivor.Metadata.DisciplinaryTags = UnionTags(survivor.Tags(), loser.Tags())
	survivor.Metadata.BiasFlags = unionBiasFlags(survivor.Metadata.BiasFlags, loser.Metadata.BiasFlags)
	survivor.Metadata.RevisionHistory = append(survivor.Metadata.RevisionHistory, Revision{
		Timestamp:   timeNow(),
		Action:      "merge",
		SourceNode:  loserID,
		Description: description,
	})

	if layer := loser.Metadata.LayerID; layer != "" {
		s.layers[layer] = removeString(s.layers[layer], loserID)
	}
	delete(s.ibns, loserID)
	delete(s.nodes, loserID)
	s.nodeOrder = removeString(s.nodeOrder, loserID)
	s.replaceHyperedgeMember(loserID, survivorID)
	return moved, nil
}

func (s *Store) removeEdge(id string) {
	e, ok := s.edges[id]
	if !ok {
		return
	}
	s.outgoing[e.Source] = removeString(s.outgoing[e.Source], id)
	s.incoming[e.Target] = removeString(s.incoming[e.Target], id)
	delete(s.edges, id)
	s.edgeOrder = removeString(s.edgeOrder, id)
}

// replaceHyperedgeMember swaps old for repl (or drops it when repl is
// empty) in every hyperedge, removing any that fall below the minimum arity.
func (s *Store) replaceHyperedgeMember(old, repl string) {
	for _, hid := range slices.Clone(s.hyperOrder) {
		h := s.hyperedges[hid]
		if !slices.Contains(h.Nodes, old) {
			continue
		}
		members := make([]string, 0, len(h.Nodes))
		for _, m := range h.Nodes {
			switch {
			case m != old:
				members = append(members, m)
			case repl != "":
				members = append(members, repl)
			}
		}
		members = normalizeTags(members)
		if len(members) < MinHyperedgeArity {
			delete(s.hyperedges, hid)
			s.hyperOrder = removeString(s.hyperOrder, hid)
			continue
		}
		h.Nodes = members
	}
}

// ─── Queries ─────────────────────────────────────────────────────────────────

// Node returns the node with the given id.
func (s *Store) Node(id string) (*Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, apperr.NotFound("node %q not found", id)
	}
	return n, nil
}

// HasNode reports whether a node with the given id exists.
func (s *Store) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Edge returns the edge with the given id.
func (s *Store) Edge(id string) (*Edge, error) {
	e, ok := s.edges[id]
	if !ok {
		return nil, apperr.NotFound("edge %q not found", id)
	}
	return e, nil
}

// Hyperedge returns the hyperedge with the given id.
func (s *Store) Hyperedge(id string) (*Hyperedge, error) {
	h, ok := s.hyperedges[id]
	if !ok {
		return nil, apperr.NotFound("hyperedge %q not found", id)
	}
	return h, nil
}

// Nodes returns all nodes in insertion order.
func (s *Store) Nodes() []*Node {
	out := make([]*Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		out = append(out, s.nodes[id])
	}
	return out
}

// NodesOfType returns the nodes of one type in insertion order.
func (s *Store) NodesOfType(t NodeType) []*Node {
	var out []*Node
	for _, id := range s.nodeOrder {
		if n := s.nodes[id]; n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Edges returns all edges in insertion order.
func (s *Store) Edges() []*Edge {
	out := make([]*Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		out = append(out, s.edges[id])
	}
	return out
}

// Hyperedges returns all hyperedges in insertion order.
func (s *Store) Hyperedges() []*Hyperedge {
	out := make([]*Hyperedge, 0, len(s.hyperOrder))
	for _, id := range s.hyperOrder {
		out = append(out, s.hyperedges[id])
	}
	return out
}

// OutEdges returns the edges leaving a node.
func (s *Store) OutEdges(id string) []*Edge { return s.edgeList(s.outgoing[id]) }

// InEdges returns the edges entering a node.
func (s *Store) InEdges(id string) []*Edge { return s.edgeList(s.incoming[id]) }

func (s *Store) edgeList(ids []string) []*Edge {
	out := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.edges[id])
	}
	return out
}

// Successors returns the distinct targets of a node's outgoing edges.
func (s *Store) Successors(id string) []string {
	var out []string
	for _, e := range s.OutEdges(id) {
		if !slices.Contains(out, e.Target) {
			out = append(out, e.Target)
		}
	}
	return out
}

// Neighbors returns the distinct nodes adjacent to id in either direction.
func (s *Store) Neighbors(id string) []string {
	out := s.Successors(id)
	for _, e := range s.InEdges(id) {
		if !slices.Contains(out, e.Source) {
			out = append(out, e.Source)
		}
	}
	return out
}

// LayerIDs returns the registered layers in registration order.
func (s *Store) LayerIDs() []string { return slices.Clone(s.layerOrder) }

// LayerMembers returns the node ids in a layer.
func (s *Store) LayerMembers(layer string) []string { return slices.Clone(s.layers[layer]) }

// HasLayer reports whether a layer is registered.
func (s *Store) HasLayer(layer string) bool {
	_, ok := s.layers[layer]
	return ok
}

// IBNs returns the ids of live bridge nodes in insertion order.
func (s *Store) IBNs() []string {
	var out []string
	for _, id := range s.nodeOrder {
		if _, ok := s.ibns[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// IsIBN reports whether id names a bridge node.
func (s *Store) IsIBN(id string) bool {
	_, ok := s.ibns[id]
	return ok
}

// NodeCount returns the number of nodes.
func (s *Store) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of binary edges.
func (s *Store) EdgeCount() int { return len(s.edges) }

// HyperedgeCount returns the number of hyperedges.
func (s *Store) HyperedgeCount() int { return len(s.hyperedges) }

// ─── Helpers ─────────────────────────────────────────────────────────────────

func removeString(list []string, v string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == v })
}

func unionBiasFlags(a, b []BiasFlag) []BiasFlag {
	out := slices.Clone(a)
	for _, f := range b {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
