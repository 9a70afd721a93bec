package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leasedesk/reconcile/internal/model"
)

func TestNormalizeName_CaseAndSeparators(t *testing.T) {
	assert.Equal(t, "monthly_rent", NormalizeName("Monthly Rent"))
	assert.Equal(t, "monthly_rent", NormalizeName("monthly-rent"))
	assert.Equal(t, "monthly_rent", NormalizeName("MONTHLY.RENT"))
	assert.Equal(t, "monthly_rent", NormalizeName("  Monthly   Rent  "))
	assert.Equal(t, "monthly_rent", NormalizeName("monthly_rent"))
}

func TestNormalizeName_FullWidth(t *testing.T) {
	assert.Equal(t, NormalizeName("Rent"), NormalizeName("Ｒｅｎｔ"))
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("t1", "Monthly Rent", model.ElementFinancial)
	b := Fingerprint("t1", "monthly-rent", model.ElementFinancial)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_TenantIsolation(t *testing.T) {
	a := Fingerprint("tenant-a", "monthly_rent", model.ElementFinancial)
	b := Fingerprint("tenant-b", "monthly_rent", model.ElementFinancial)
	assert.NotEqual(t, a, b)
}

func TestFingerprint_ElementTypeSeparates(t *testing.T) {
	a := Fingerprint("t1", "expiration", model.ElementDate)
	b := Fingerprint("t1", "expiration", model.ElementFinancial)
	assert.NotEqual(t, a, b)
}

