package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/HendryAvila/asrgot/internal/apperr"
)

var validate = validator.New()

// ValidateNode checks field constraints and that the metadata variant
// matches the node type.
func ValidateNode(n *Node) error {
	if n == nil {
		return apperr.Validation("node is nil")
	}
	if !ValidNodeType(n.Type) {
		return apperr.Validation("node %q: unknown type %q", n.ID, n.Type)
	}
	if !n.Confidence.Valid() {
		return apperr.Validation("node %q: confidence %v out of [0,1]", n.ID, n.Confidence)
	}
	if err := checkVariant(n.Type, n.Metadata); err != nil {
		return apperr.Validation("node %q: %s", n.ID, err)
	}
	if err := validate.Struct(n); err != nil {
		return apperr.Validation("node %q: %s", n.ID, formatValidationError(err))
	}
	return nil
}

// ValidateEdge checks an edge's own fields.
func ValidateEdge(e *Edge) error {
	if e == nil {
		return apperr.Validation("edge is nil")
	}
	if !ValidEdgeType(e.Type) {
		return apperr.Validation("edge %q: unknown type %q", e.ID, e.Type)
	}
	if err := validate.Struct(e); err != nil {
		return apperr.Validation("edge %q: %s", e.ID, formatValidationError(err))
	}
	return nil
}

// ValidateHyperedge checks arity and confidence.
func ValidateHyperedge(h *Hyperedge) error {
	if h == nil {
		return apperr.Validation("hyperedge is nil")
	}
	if distinct := len(normalizeTags(h.Nodes)); distinct < MinHyperedgeArity {
		return apperr.Validation("hyperedge %q: needs at least %d distinct nodes, got %d",
			h.ID, MinHyperedgeArity, distinct)
	}
	if err := validate.Struct(h); err != nil {
		return apperr.Validation("hyperedge %q: %s", h.ID, formatValidationError(err))
	}
	return nil
}

// checkVariant enforces that exactly the variant belonging to typ is set.
func checkVariant(typ NodeType, md Metadata) error {
	present := map[NodeType]bool{
		NodeRoot:        md.RootDetails != nil,
		NodeDimension:   md.DimensionDetails != nil,
		NodeHypothesis:  md.HypothesisDetails != nil,
		NodeEvidence:    md.EvidenceDetails != nil,
		NodeBridge:      md.BridgeDetails != nil,
		NodePlaceholder: md.GapDetails != nil,
	}
	if !present[typ] {
		return fmt.Errorf("%s node is missing its %s details", typ, typ)
	}
	for other, set := range present {
		if set && other != typ {
			return fmt.Errorf("%s node carries %s details", typ, other)
		}
	}
	return nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return strings.Join(msgs, "; ")
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
