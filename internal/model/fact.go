// Package model defines the core data types shared across the
// reconciliation pipeline.
package model

import (
	"fmt"
	"time"
)

// SourceMethod identifies the extraction strategy that produced a candidate.
type SourceMethod string

const (
	SourceTable   SourceMethod = "table"
	SourceLabeled SourceMethod = "labeled_text"
	SourceManual  SourceMethod = "manual"
)

// CandidateFact is a single raw, unverified observation produced by one
// extraction strategy during a capture. Candidates are ephemeral: created
// per capture, never mutated, discarded after resolution.
type CandidateFact struct {
	TenantID     string       `json:"tenant_id"`
	SourceMethod SourceMethod `json:"source_method"`
	RawFieldName string       `json:"raw_field_name"`
	RawValue     string       `json:"raw_value"`
	PageID       string       `json:"page_id"`
	ObservedAt   time.Time    `json:"observed_at"`
}

// Key returns the in-session dedup key. Two candidates with the same key
// are exact repeats and only the first is forwarded.
func (c CandidateFact) Key() string {
	return fmt.Sprintf("%s|%s|%s", c.SourceMethod, c.RawFieldName, c.RawValue)
}

// DataType is the judged primitive type of a candidate's value.
type DataType string

const (
	DataTypeNumber   DataType = "number"
	DataTypeCurrency DataType = "currency"
	DataTypeText     DataType = "text"
	DataTypePhone    DataType = "phone"
	DataTypeEmail    DataType = "email"
	DataTypeDate     DataType = "date"
	DataTypeFormula  DataType = "formula"
)

// Judgment is one analyzer's classification of a candidate. Exactly one
// judgment exists per (candidate, analyzer) pair; judgments are immutable
// and retained for audit even when they lose consensus.
type Judgment struct {
	AnalyzerID    string    `json:"analyzer_id"`
	CandidateKey  string    `json:"candidate_key"`
	SemanticType  string    `json:"semantic_type"`
	CanonicalName string    `json:"canonical_name"`
	DataType      DataType  `json:"data_type"`
	Confidence    float64   `json:"confidence"`
	Formula       string    `json:"formula,omitempty"`
	Unit          string    `json:"unit,omitempty"`
	JudgedAt      time.Time `json:"judged_at"`
}

// ResolutionMethod records how a resolved fact was produced.
type ResolutionMethod string

const (
	MethodMajority        ResolutionMethod = "majority"
	MethodBestConfidence  ResolutionMethod = "best_confidence"
	MethodPatternShortcut ResolutionMethod = "pattern_shortcut"
)

// ResolvedFact is the consensus output for one candidate after merging
// judgments. Every contributing judgment is kept, winners and losers alike.
type ResolvedFact struct {
	Candidate     CandidateFact    `json:"candidate"`
	SemanticType  string           `json:"semantic_type"`
	CanonicalName string           `json:"canonical_name"`
	DataType      DataType         `json:"data_type"`
	Value         string           `json:"value"`
	Formula       string           `json:"formula,omitempty"`
	Unit          string           `json:"unit,omitempty"`
	Confidence    float64          `json:"confidence"`
	LowConfidence bool             `json:"low_confidence"`
	Method        ResolutionMethod `json:"resolution_method"`
	Contributing  []Judgment       `json:"contributing_judgments"`
}

// UnresolvedReason explains why a candidate landed in the review queue.
type UnresolvedReason string

const (
	ReasonNoQuorum           UnresolvedReason = "no_quorum"
	ReasonPropagationFailure UnresolvedReason = "propagation_failure"
)

// UnresolvedCandidate is a review-queue row: a candidate that could not be
// resolved (or whose change notification exhausted retries) and is parked
// for operator attention instead of being dropped or guessed.
type UnresolvedCandidate struct {
	ID         string           `json:"id"`
	Candidate  CandidateFact    `json:"candidate"`
	Reason     UnresolvedReason `json:"reason"`
	Detail     string           `json:"detail,omitempty"`
	RetryCount int              `json:"retry_count"`
	CreatedAt  time.Time        `json:"created_at"`
}
