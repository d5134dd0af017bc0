package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/HendryAvila/asrgot/internal/apperr"
	"github.com/HendryAvila/asrgot/internal/config"
	"github.com/HendryAvila/asrgot/internal/graph"
)

// --- Parameter types ---

// Dimension is one decomposition axis.
type Dimension struct {
	Label       string `json:"label" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// DefaultDimensions are used when a query names none.
var DefaultDimensions = []Dimension{
	{"Scope", "Define the boundaries of the research question"},
	{"Objectives", "Specific goals to be achieved"},
	{"Constraints", "Limitations and boundaries of the analysis"},
	{"Data Needs", "Information required to address the question"},
	{"Use Cases", "Practical applications of findings"},
	{"Potential Biases", "Sources of cognitive or methodological bias"},
	{"Knowledge Gaps", "Areas of uncertainty or missing information"},
}

// ExtractionCriteria drive subgraph extraction.
type ExtractionCriteria struct {
	MinConfidence    float64  `json:"min_confidence" validate:"gte=0,lte=1"`
	MinImpact        float64  `json:"min_impact" validate:"gte=0,lte=1"`
	FocusDisciplines []string `json:"focus_disciplines,omitempty"`
	FocusLayers      []string `json:"focus_layers,omitempty"`
	EdgePatterns     []string `json:"edge_patterns,omitempty"`
}

// Parameters are the resolved per-query settings.
type Parameters struct {
	Dimensions          []Dimension  `json:"dimensions" validate:"min=1,dive"`
	DimensionConfidence graph.Vector `json:"dimension_confidence"`
	DimensionLayer      string       `json:"dimension_layer"`

	// HypothesesPerDimension of 0 draws k uniformly from
	// [HypothesesMin, HypothesesMax] per dimension.
	HypothesesPerDimension int          `json:"hypotheses_per_dimension" validate:"gte=0"`
	HypothesesMin          int          `json:"-" validate:"gte=1"`
	HypothesesMax          int          `json:"-" validate:"gtefield=HypothesesMin"`
	HypothesisConfidence   graph.Vector `json:"hypothesis_confidence"`
	HypothesisDisciplines  []string     `json:"disciplinary_tags" validate:"min=1"`
	HypothesisLayer        string       `json:"hypothesis_layer"`

	EvidenceMaxIterations int     `json:"evidence_max_iterations" validate:"gte=0"`
	PruningThreshold      float64 `json:"pruning_threshold" validate:"gte=0,lte=1"`
	ImpactThreshold       float64 `json:"impact_threshold" validate:"gte=0,lte=1"`
	MergingThreshold      float64 `json:"merging_threshold" validate:"gte=0,lte=1"`

	Extraction ExtractionCriteria `json:"extraction_criteria"`

	Disciplines  []string `json:"disciplines"`
	Layers       []string `json:"layers"`
	InitialLayer string   `json:"initial_layer"`

	Seed uint64 `json:"seed"`
}

// DefaultParameters derives parameters from the pipeline configuration.
func DefaultParameters(cfg config.PipelineConfig) Parameters {
	return Parameters{
		Dimensions:            slices.Clone(DefaultDimensions),
		DimensionConfidence:   graph.Uniform(0.8),
		DimensionLayer:        "root",
		HypothesesMin:         cfg.HypothesesMin,
		HypothesesMax:         cfg.HypothesesMax,
		HypothesisConfidence:  graph.Uniform(0.5),
		HypothesisDisciplines: slices.Clone(cfg.HypothesisDisciplines),
		HypothesisLayer:       "root",
		EvidenceMaxIterations: cfg.EvidenceMaxIterations,
		PruningThreshold:      cfg.PruningThreshold,
		ImpactThreshold:       cfg.ImpactThreshold,
		MergingThreshold:      cfg.MergingThreshold,
		Extraction: ExtractionCriteria{
			MinConfidence: cfg.MinConfidence,
			MinImpact:     cfg.MinImpact,
		},
		Disciplines:  slices.Clone(cfg.Disciplines),
		InitialLayer: "root",
		Seed:         cfg.Seed,
	}
}

// --- Parsing ---

var validate = validator.New()

// ParseParameters overlays a loosely typed parameter map onto the
// configured defaults. Unknown keys are ignored. Malformed or out-of-range
// values yield a validation error.
func ParseParameters(raw map[string]any, cfg config.PipelineConfig) (Parameters, error) {
	p := DefaultParameters(cfg)
	var err error

	for key, val := range raw {
		if val == nil {
			continue
		}
		switch key {
		case "dimensions":
			p.Dimensions, err = parseDimensions(val)
		case "dimension_confidence":
			p.DimensionConfidence, err = ParseVector(val)
		case "dimension_layer":
			p.DimensionLayer, err = cast.ToStringE(val)
		case "hypotheses_per_dimension":
			p.HypothesesPerDimension, err = cast.ToIntE(val)
		case "hypothesis_confidence":
			p.HypothesisConfidence, err = ParseVector(val)
		case "disciplinary_tags":
			p.HypothesisDisciplines, err = cast.ToStringSliceE(val)
		case "hypothesis_layer":
			p.HypothesisLayer, err = cast.ToStringE(val)
		case "evidence_max_iterations":
			p.EvidenceMaxIterations, err = cast.ToIntE(val)
		case "pruning_threshold":
			p.PruningThreshold, err = cast.ToFloat64E(val)
		case "impact_threshold":
			p.ImpactThreshold, err = cast.ToFloat64E(val)
		case "merging_threshold":
			p.MergingThreshold, err = cast.ToFloat64E(val)
		case "extraction_criteria":
			err = parseExtraction(val, &p.Extraction)
		case "disciplines":
			p.Disciplines, err = cast.ToStringSliceE(val)
		case "layers":
			p.Layers, err = parseLayers(val)
		case "initial_layer":
			p.InitialLayer, err = cast.ToStringE(val)
		case "seed":
			p.Seed, err = cast.ToUint64E(val)
		}
		if err != nil {
			return Parameters{}, apperr.Validation("parameter %q: %v", key, err)
		}
	}

	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

// Validate checks ranges and confidence seeds.
func (p *Parameters) Validate() error {
	if !p.DimensionConfidence.Valid() {
		return apperr.Validation("parameter \"dimension_confidence\": %v out of [0,1]", p.DimensionConfidence)
	}
	if !p.HypothesisConfidence.Valid() {
		return apperr.Validation("parameter \"hypothesis_confidence\": %v out of [0,1]", p.HypothesisConfidence)
	}
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("parameters").WithCause(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
	}
	return apperr.Validation("parameters: %s", strings.Join(msgs, "; "))
}

// ParseVector accepts a 4-element list or a scalar broadcast to all four
// dimensions.
func ParseVector(val any) (graph.Vector, error) {
	list, isList := toList(val)
	if !isList {
		f, err := cast.ToFloat64E(val)
		if err != nil {
			return graph.Vector{}, err
		}
		return graph.Uniform(f), nil
	}
	if len(list) == 1 {
		f, err := cast.ToFloat64E(list[0])
		if err != nil {
			return graph.Vector{}, err
		}
		return graph.Uniform(f), nil
	}
	floats := make([]float64, 0, len(list))
	for _, item := range list {
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return graph.Vector{}, err
		}
		floats = append(floats, f)
	}
	return graph.VectorFromSlice(floats)
}

func parseDimensions(val any) ([]Dimension, error) {
	list, ok := toList(val)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", val)
	}
	dims := make([]Dimension, 0, len(list))
	for _, item := range list {
		if label, ok := item.(string); ok {
			dims = append(dims, Dimension{Label: label, Description: label})
			continue
		}
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, err
		}
		d := Dimension{
			Label:       cast.ToString(m["label"]),
			Description: cast.ToString(m["description"]),
		}
		if d.Description == "" {
			d.Description = d.Label
		}
		dims = append(dims, d)
	}
	return dims, nil
}

func parseExtraction(val any, out *ExtractionCriteria) error {
	m, err := cast.ToStringMapE(val)
	if err != nil {
		return err
	}
	for key, v := range m {
		switch key {
		case "min_confidence":
			out.MinConfidence, err = cast.ToFloat64E(v)
		case "min_impact":
			out.MinImpact, err = cast.ToFloat64E(v)
		case "focus_disciplines":
			out.FocusDisciplines, err = cast.ToStringSliceE(v)
		case "focus_layers":
			out.FocusLayers, err = cast.ToStringSliceE(v)
		case "edge_patterns":
			out.EdgePatterns, err = cast.ToStringSliceE(v)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// parseLayers accepts a list of layer ids or a map keyed by layer id.
func parseLayers(val any) ([]string, error) {
	if m, err := cast.ToStringMapE(val); err == nil {
		ids := make([]string, 0, len(m))
		for k := range m {
			ids = append(ids, k)
		}
		slices.Sort(ids)
		return ids, nil
	}
	return cast.ToStringSliceE(val)
}

func toList(val any) ([]any, bool) {
	switch v := val.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}
