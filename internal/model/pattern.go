package model

import "time"

// PatternKind describes what a learned pattern matches on.
type PatternKind string

const (
	PatternFieldShape PatternKind = "field_shape"
	PatternValueShape PatternKind = "value_shape"
)

// PatternEntry is an aggregated, tenant-anonymized field-shape signature.
// Entries carry shape tokens only, never raw tenant values, and are shared
// across all tenants.
type PatternEntry struct {
	FieldType       string      `json:"field_type"`
	Pattern         string      `json:"pattern"`
	PatternKind     PatternKind `json:"pattern_kind"`
	SemanticType    string      `json:"semantic_type"`
	CanonicalName   string      `json:"canonical_name"`
	DataType        DataType    `json:"data_type"`
	Confidence      float64     `json:"confidence"`
	OccurrenceCount int         `json:"occurrence_count"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// AnalyzerWeight is the learner's historical trust weight for one analyzer,
// consumed by the resolver's tie-break.
type AnalyzerWeight struct {
	AnalyzerID string    `json:"analyzer_id"`
	Weight     float64   `json:"weight"`
	Samples    int       `json:"samples"`
	UpdatedAt  time.Time `json:"updated_at"`
}
