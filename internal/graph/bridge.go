package graph

import (
	"fmt"

	"github.com/HendryAvila/asrgot/internal/apperr"
)

// Seed confidences for interdisciplinary bridges.
const (
	BridgeNodeConfidence = 0.6
	BridgeEdgeConfidence = 0.8
)

// CreateInterdisciplinaryBridge links two nodes whose disciplinary tags are
// non-empty and disjoint through a new bridge node.
//
// It returns the bridge id and true when a bridge was created. Overlapping
// or empty tag sets yield ("", false, nil). Unknown nodes yield a
// NotFound error.
func (s *Store) CreateInterdisciplinaryBridge(sourceID, targetID string) (string, bool, error) {
	src, ok := s.nodes[sourceID]
	if !ok {
		return "", false, apperr.NotFound("node %q not found", sourceID)
	}
	tgt, ok := s.nodes[targetID]
	if !ok {
		return "", false, apperr.NotFound("node %q not found", targetID)
	}

	srcTags, tgtTags := src.Tags(), tgt.Tags()
	if len(srcTags) == 0 || len(tgtTags) == 0 || !TagsDisjoint(srcTags, tgtTags) {
		return "", false, nil
	}

	id := fmt.Sprintf("ibn_%s_%s", sourceID, targetID)
	node, err := NewNode(id,
		fmt.Sprintf("IBN: %s <-> %s", src.Label, tgt.Label),
		NodeBridge,
		Uniform(BridgeNodeConfidence),
		Metadata{
			Common: Common{
				DisciplinaryTags: UnionTags(srcTags, tgtTags),
				Provenance:       "Interdisciplinary bridge creation",
			},
			BridgeDetails: &BridgeDetails{
				BridgedSource:     sourceID,
				BridgedTarget:     targetID,
				SourceDisciplines: append([]string(nil), srcTags...),
				TargetDisciplines: append([]string(nil), tgtTags...),
			},
		},
	)
	if err != nil {
		return "", false, fmt.Errorf("building bridge node: %w", err)
	}

	inbound, err := NewEdge(id+"_source", sourceID, id, EdgeIBNSource, BridgeEdgeConfidence, EdgeMetadata{})
	if err != nil {
		return "", false, fmt.Errorf("building bridge edge: %w", err)
	}
	outbound, err := NewEdge(id+"_target", id, targetID, EdgeIBNTarget, BridgeEdgeConfidence, EdgeMetadata{})
	if err != nil {
		return "", false, fmt.Errorf("building bridge edge: %w", err)
	}

	if err := s.AddNode(node); err != nil {
		return "", false, err
	}
	if err := s.AddEdge(inbound); err != nil {
		_ = s.RemoveNode(id)
		return "", false, err
	}
	if err := s.AddEdge(outbound); err != nil {
		_ = s.RemoveNode(id)
		return "", false, err
	}
	s.ibns[id] = struct{}{}
	return id, true, nil
}
