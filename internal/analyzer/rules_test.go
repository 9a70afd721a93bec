package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasedesk/reconcile/internal/model"
)

func rulesJudge(t *testing.T, field, value string) *model.Judgment {
	t.Helper()
	j, err := Rules{}.Judge(context.Background(), model.CandidateFact{
		TenantID:     "t1",
		SourceMethod: model.SourceTable,
		RawFieldName: field,
		RawValue:     value,
	})
	require.NoError(t, err)
	return j
}

func TestRules_CurrencyWithMatchingKeyword(t *testing.T) {
	j := rulesJudge(t, "Monthly Rent", "$12,500.00")
	assert.Equal(t, "monthly_rent", j.SemanticType)
	assert.Equal(t, model.DataTypeCurrency, j.DataType)
	assert.InDelta(t, 0.85, j.Confidence, 1e-9)
	assert.Equal(t, "USD", j.Unit)
}

func TestRules_KeywordWithoutShapeAgreement(t *testing.T) {
	j := rulesJudge(t, "Monthly Rent", "to be negotiated")
	assert.Equal(t, "monthly_rent", j.SemanticType)
	assert.Equal(t, model.DataTypeText, j.DataType)
	assert.InDelta(t, 0.65, j.Confidence, 1e-9)
}

func TestRules_UnknownFieldLowConfidence(t *testing.T) {
	j := rulesJudge(t, "Zoning Class", "B-2")
	assert.Equal(t, "zoning_class", j.SemanticType)
	assert.InDelta(t, 0.4, j.Confidence, 1e-9)
}

func TestRules_DataTypes(t *testing.T) {
	tests := []struct {
		value string
		want  model.DataType
	}{
		{"$12,500.00", model.DataTypeCurrency},
		{"1,250.00", model.DataTypeCurrency},
		{"12500", model.DataTypeNumber},
		{"-3.5", model.DataTypeNumber},
		{"2027-06-30", model.DataTypeDate},
		{"6/30/2027", model.DataTypeDate},
		{"ops@acme.com", model.DataTypeEmail},
		{"(555) 010-0199", model.DataTypePhone},
		{"=base_rent * 1.03", model.DataTypeFormula},
		{"base_rent + cam_charges", model.DataTypeFormula},
		{"net 30", model.DataTypeText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, judgeDataType(tt.value), "value %q", tt.value)
	}
}

func TestRules_FormulaCapturedOnJudgment(t *testing.T) {
	j := rulesJudge(t, "Total Rent", "=base_rent * 1.03")
	assert.Equal(t, model.DataTypeFormula, j.DataType)
	assert.Equal(t, "=base_rent * 1.03", j.Formula)
}

func TestRules_PhoneKeywordAndShape(t *testing.T) {
	j := rulesJudge(t, "Contact Phone", "(555) 010-0199")
	assert.Equal(t, "contact_phone", j.SemanticType)
	assert.Equal(t, model.DataTypePhone, j.DataType)
	assert.InDelta(t, 0.85, j.Confidence, 1e-9)
}
