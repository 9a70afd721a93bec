package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$12,500.00", 12500.00, true},
		{"12500", 12500, true},
		{"1,200 sq ft", 1200, true},
		{"€99.95", 99.95, true},
		{"-42.5", -42.5, true},
		{"36 months", 36, true},
		{"3.5%", 3.5, true},
		{"n/a", 0, false},
		{"", 0, false},
		{"suite 4B", 0, false},
		{"2024-01-01", 0, false},
		{"6/30/2027", 0, false},
		{"555-0100", 0, false},
		{"(415) 555-0100", 0, false},
		{"ops@acme.com", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumeric(tt.in)
		require.Equal(t, tt.ok, ok, "input %q", tt.in)
		if ok {
			assert.InDelta(t, tt.want, got, 1e-9, "input %q", tt.in)
		}
	}
}

func TestEquivalentValue_NumericTolerance(t *testing.T) {
	assert.True(t, EquivalentValue("$12,500.00", "12500", 0.01))
	assert.True(t, EquivalentValue("12500.004", "12500.00", 0.01))
	assert.False(t, EquivalentValue("12500.00", "12500.02", 0.01))
	assert.False(t, EquivalentValue("$12,500.00", "$13,000.00", 0.01))
}

func TestEquivalentValue_StructuredValuesCompareAsText(t *testing.T) {
	// Dates and phone numbers share a numeric prefix but are distinct
	// values; they must never collapse under the numeric tolerance.
	assert.False(t, EquivalentValue("2024-01-01", "2024-12-31", 0.01))
	assert.False(t, EquivalentValue("555-0100", "555-0199", 0.01))
	assert.False(t, EquivalentValue("(415) 555-0100", "(415) 999-8888", 0.01))
	assert.False(t, EquivalentValue("6/30/2027", "6/30/2028", 0.01))

	assert.True(t, EquivalentValue("2024-01-01", "2024-01-01", 0.01))
	assert.True(t, EquivalentValue("(415) 555-0100", "(415)  555-0100", 0.01))
}

func TestEquivalentValue_Text(t *testing.T) {
	assert.True(t, EquivalentValue("Suite 400, Tower  B", "suite 400, tower b", 0.01))
	assert.True(t, EquivalentText("ACME Corp", "acme corp"))
	assert.False(t, EquivalentText("ACME Corp", "ACME Inc"))
}

func TestElementTypeForDataType(t *testing.T) {
	assert.Equal(t, ElementCalculation, ElementTypeForDataType(DataTypeFormula))
	assert.Equal(t, ElementContact, ElementTypeForDataType(DataTypePhone))
	assert.Equal(t, ElementContact, ElementTypeForDataType(DataTypeEmail))
	assert.Equal(t, ElementDate, ElementTypeForDataType(DataTypeDate))
	assert.Equal(t, ElementFinancial, ElementTypeForDataType(DataTypeNumber))
	assert.Equal(t, ElementFinancial, ElementTypeForDataType(DataTypeCurrency))
	assert.Equal(t, ElementFinancial, ElementTypeForDataType(DataTypeText))
}

func TestCandidateFact_Key(t *testing.T) {
	a := CandidateFact{SourceMethod: SourceTable, RawFieldName: "Rent", RawValue: "$1,000"}
	b := CandidateFact{SourceMethod: SourceLabeled, RawFieldName: "Rent", RawValue: "$1,000"}
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), CandidateFact{SourceMethod: SourceTable, RawFieldName: "Rent", RawValue: "$1,000"}.Key())
}
