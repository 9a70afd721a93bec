package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasedesk/reconcile/internal/model"
)

type fixedTrust map[string]float64

func (f fixedTrust) Weight(analyzerID string) float64 {
	if w, ok := f[analyzerID]; ok {
		return w
	}
	return 1.0
}

func judgment(analyzer, semantic string, dt model.DataType, conf float64) model.Judgment {
	return model.Judgment{
		AnalyzerID:    analyzer,
		SemanticType:  semantic,
		CanonicalName: semantic,
		DataType:      dt,
		Confidence:    conf,
	}
}

func candidate() model.CandidateFact {
	return model.CandidateFact{
		TenantID:     "t1",
		SourceMethod: model.SourceTable,
		RawFieldName: "Monthly Rent",
		RawValue:     "$12,500.00",
		PageID:       "page-1",
	}
}

func TestResolve_MajorityVote(t *testing.T) {
	r := NewResolver(0.5, nil)
	judgments := []model.Judgment{
		judgment("a", "monthly_rent", model.DataTypeCurrency, 0.92),
		judgment("b", "monthly_rent", model.DataTypeCurrency, 0.88),
		judgment("c", "rent_amount", model.DataTypeCurrency, 0.95),
	}

	resolved, err := r.Resolve(candidate(), judgments)
	require.NoError(t, err)

	assert.Equal(t, "monthly_rent", resolved.SemanticType)
	assert.Equal(t, model.MethodMajority, resolved.Method)
	// agreement 2/3 times mean(0.92, 0.88) = 0.6666… × 0.90 = 0.60
	assert.InDelta(t, 0.60, resolved.Confidence, 1e-9)
	assert.False(t, resolved.LowConfidence)
	assert.Len(t, resolved.Contributing, 3, "losing judgments stay on the record")
}

func TestResolve_SingleJudgment(t *testing.T) {
	r := NewResolver(0.5, nil)
	judgments := []model.Judgment{
		judgment("a", "lease_expiration", model.DataTypeDate, 0.9),
	}

	resolved, err := r.Resolve(candidate(), judgments)
	require.NoError(t, err)

	assert.Equal(t, model.MethodBestConfidence, resolved.Method)
	assert.InDelta(t, 0.9, resolved.Confidence, 1e-9)
}

func TestResolve_LowConfidenceFlaggedNotDiscarded(t *testing.T) {
	r := NewResolver(0.5, nil)
	judgments := []model.Judgment{
		judgment("a", "monthly_rent", model.DataTypeCurrency, 0.4),
		judgment("b", "deposit_amount", model.DataTypeCurrency, 0.38),
		judgment("c", "rent_amount", model.DataTypeCurrency, 0.41),
	}

	resolved, err := r.Resolve(candidate(), judgments)
	require.NoError(t, err)

	assert.True(t, resolved.LowConfidence)
	assert.NotEmpty(t, resolved.SemanticType)
	assert.Equal(t, candidate().RawValue, resolved.Value)
}

func TestResolve_TieBrokenByMeanConfidence(t *testing.T) {
	r := NewResolver(0.5, nil)
	judgments := []model.Judgment{
		judgment("a", "monthly_rent", model.DataTypeCurrency, 0.95),
		judgment("b", "rent_amount", model.DataTypeCurrency, 0.70),
	}

	resolved, err := r.Resolve(candidate(), judgments)
	require.NoError(t, err)

	assert.Equal(t, "monthly_rent", resolved.SemanticType)
	// agreement 1/2 times mean(0.95)
	assert.InDelta(t, 0.475, resolved.Confidence, 1e-9)
}

func TestResolve_TieBrokenByTrustWeight(t *testing.T) {
	trust := fixedTrust{"trusted": 0.9, "suspect": 0.3}
	r := NewResolver(0.5, trust)
	judgments := []model.Judgment{
		judgment("trusted", "monthly_rent", model.DataTypeCurrency, 0.8),
		judgment("suspect", "rent_amount", model.DataTypeCurrency, 0.8),
	}

	resolved, err := r.Resolve(candidate(), judgments)
	require.NoError(t, err)
	assert.Equal(t, "monthly_rent", resolved.SemanticType)
}

func TestResolve_DataTypeVotedIndependently(t *testing.T) {
	r := NewResolver(0.5, nil)
	judgments := []model.Judgment{
		judgment("a", "monthly_rent", model.DataTypeCurrency, 0.9),
		judgment("b", "monthly_rent", model.DataTypeNumber, 0.9),
		judgment("c", "rent_amount", model.DataTypeNumber, 0.85),
	}

	resolved, err := r.Resolve(candidate(), judgments)
	require.NoError(t, err)
	assert.Equal(t, "monthly_rent", resolved.SemanticType)
	assert.Equal(t, model.DataTypeNumber, resolved.DataType)
}

func TestResolve_FormulaNeverDropped(t *testing.T) {
	r := NewResolver(0.5, nil)
	withFormula := judgment("a", "total_rent", model.DataTypeFormula, 0.6)
	withFormula.Formula = "base_rent + cam_charges"
	judgments := []model.Judgment{
		withFormula,
		judgment("b", "total_rent", model.DataTypeCurrency, 0.9),
		judgment("c", "total_rent", model.DataTypeCurrency, 0.9),
	}

	resolved, err := r.Resolve(candidate(), judgments)
	require.NoError(t, err)

	assert.Equal(t, model.DataTypeCurrency, resolved.DataType)
	assert.Equal(t, "base_rent + cam_charges", resolved.Formula)
}

func TestResolve_EmptyCanonicalNameFallsBack(t *testing.T) {
	r := NewResolver(0.5, nil)
	j := judgment("a", "monthly_rent", model.DataTypeCurrency, 0.9)
	j.CanonicalName = ""

	resolved, err := r.Resolve(candidate(), []model.Judgment{j})
	require.NoError(t, err)
	assert.Equal(t, "Monthly Rent", resolved.CanonicalName)
}

func TestResolve_NoJudgments(t *testing.T) {
	r := NewResolver(0.5, nil)
	_, err := r.Resolve(candidate(), nil)
	assert.Error(t, err)
}
