package graph

import "slices"

// State is the externally visible snapshot of a Store.
type State struct {
	Nodes      []Node              `json:"nodes"`
	Edges      []Edge              `json:"edges"`
	Hyperedges []Hyperedge         `json:"hyperedges"`
	Layers     map[string][]string `json:"layers"`
	Metadata   Summary             `json:"metadata"`
}

// Summary carries the collection counts of a State.
type Summary struct {
	NodeCount      int `json:"node_count"`
	EdgeCount      int `json:"edge_count"`
	HyperedgeCount int `json:"hyperedge_count"`
	LayerCount     int `json:"layer_count"`
	IBNCount       int `json:"ibn_count"`
}

// Serialize returns a deep-copied snapshot of the store.
func (s *Store) Serialize() *State {
	st := &State{
		Nodes:      make([]Node, 0, len(s.nodeOrder)),
		Edges:      make([]Edge, 0, len(s.edgeOrder)),
		Hyperedges: make([]Hyperedge, 0, len(s.hyperOrder)),
		Layers:     make(map[string][]string, len(s.layers)),
	}
	for _, n := range s.Nodes() {
		st.Nodes = append(st.Nodes, *n.Clone())
	}
	for _, e := range s.Edges() {
		st.Edges = append(st.Edges, *e.Clone())
	}
	for _, h := range s.Hyperedges() {
		st.Hyperedges = append(st.Hyperedges, *h.Clone())
	}
	for _, id := range s.layerOrder {
		members := slices.Clone(s.layers[id])
		if members == nil {
			members = []string{}
		}
		st.Layers[id] = members
	}
	st.Metadata = Summary{
		NodeCount:      len(s.nodes),
		EdgeCount:      len(s.edges),
		HyperedgeCount: len(s.hyperedges),
		LayerCount:     len(s.layers),
		IBNCount:       len(s.ibns),
	}
	return st
}
