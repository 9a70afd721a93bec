package model

import "time"

// ElementType classifies a shared element.
type ElementType string

const (
	ElementCalculation ElementType = "calculation"
	ElementContact     ElementType = "contact"
	ElementAddress     ElementType = "address"
	ElementFinancial   ElementType = "financial"
	ElementDate        ElementType = "date"
)

// ElementTypeForDataType maps a judged data type onto the element type
// used for fingerprinting and storage.
func ElementTypeForDataType(dt DataType) ElementType {
	switch dt {
	case DataTypeFormula:
		return ElementCalculation
	case DataTypePhone, DataTypeEmail:
		return ElementContact
	case DataTypeDate:
		return ElementDate
	case DataTypeNumber, DataTypeCurrency:
		return ElementFinancial
	default:
		return ElementFinancial
	}
}

// SharedElement is the single source of truth for a logical fact within a
// tenant. Exactly one element exists per (tenant, normalized canonical
// name, element type) fingerprint; every value change bumps Version and
// appends one propagation log entry.
type SharedElement struct {
	ID                string      `json:"id"`
	TenantID          string      `json:"tenant_id"`
	ElementType       ElementType `json:"element_type"`
	CanonicalName     string      `json:"canonical_name"`
	Fingerprint       string      `json:"fingerprint"`
	CurrentValue      string      `json:"current_value"`
	FormulaExpression string      `json:"formula_expression,omitempty"`
	Unit              string      `json:"unit,omitempty"`
	Confidence        float64     `json:"confidence"`
	LowConfidence     bool        `json:"low_confidence"`
	Version           int         `json:"version"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// PageReference links a page to a shared element. It never carries a copy
// of the element's value.
type PageReference struct {
	PageID       string    `json:"page_id"`
	ElementID    string    `json:"element_id"`
	DisplayLabel string    `json:"display_label"`
	CreatedAt    time.Time `json:"created_at"`
}

// PropagationEntry is one append-only audit record of a value change.
type PropagationEntry struct {
	ID              string    `json:"id"`
	ElementID       string    `json:"element_id"`
	OldValue        string    `json:"old_value"`
	NewValue        string    `json:"new_value"`
	OldVersion      int       `json:"old_version"`
	NewVersion      int       `json:"new_version"`
	ChangedAt       time.Time `json:"changed_at"`
	AffectedPageIDs []string  `json:"affected_page_ids"`
}
