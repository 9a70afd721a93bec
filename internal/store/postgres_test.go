package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasedesk/reconcile/internal/model"
)

func newPgMock(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresWithPool(mock)
}

func elementRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "tenant_id", "element_type", "canonical_name", "fingerprint",
		"current_value", "formula_expression", "unit", "confidence",
		"low_confidence", "version", "created_at", "updated_at",
	})
}

func TestPostgres_GetElement(t *testing.T) {
	mock, st := newPgMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM shared_elements WHERE id = \$1`).
		WithArgs("el-1").
		WillReturnRows(elementRows().AddRow(
			"el-1", "t1", "financial", "monthly_rent", "fp-1",
			"$12,500.00", "", "", 0.9, false, 3, now, now,
		))

	el, err := st.GetElement(context.Background(), "el-1")
	require.NoError(t, err)
	assert.Equal(t, "el-1", el.ID)
	assert.Equal(t, model.ElementFinancial, el.ElementType)
	assert.Equal(t, 3, el.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetElement_NotFound(t *testing.T) {
	mock, st := newPgMock(t)

	mock.ExpectQuery(`SELECT .* FROM shared_elements WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetElement(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateElement_UniqueViolation(t *testing.T) {
	mock, st := newPgMock(t)

	mock.ExpectExec(`INSERT INTO shared_elements`).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	_, err := st.CreateElement(context.Background(), model.SharedElement{
		TenantID:      "t1",
		ElementType:   model.ElementFinancial,
		CanonicalName: "monthly_rent",
		Fingerprint:   "fp-1",
		CurrentValue:  "$12,500.00",
	})
	assert.ErrorIs(t, err, ErrDuplicateFingerprint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyValue_NoOpWithinTolerance(t *testing.T) {
	mock, st := newPgMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM shared_elements WHERE id = \$1`).
		WithArgs("el-1").
		WillReturnRows(elementRows().AddRow(
			"el-1", "t1", "financial", "monthly_rent", "fp-1",
			"$12,500.00", "", "", 0.9, false, 1, now, now,
		))
	mock.ExpectRollback()

	change, err := st.ApplyValue(context.Background(), "el-1", ValueUpdate{
		NewValue:  "12500",
		Tolerance: 0.01,
	})
	require.NoError(t, err)
	assert.False(t, change.Changed)
	assert.Equal(t, 1, change.Element.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyValue_VersionConflictRetries(t *testing.T) {
	mock, st := newPgMock(t)
	now := time.Now().UTC()

	// First attempt: read version 1, concurrent writer wins the update.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM shared_elements WHERE id = \$1`).
		WithArgs("el-1").
		WillReturnRows(elementRows().AddRow(
			"el-1", "t1", "financial", "monthly_rent", "fp-1",
			"$12,500.00", "", "", 0.9, false, 1, now, now,
		))
	mock.ExpectQuery(`SELECT page_id FROM page_references`).
		WithArgs("el-1").
		WillReturnRows(pgxmock.NewRows([]string{"page_id"}))
	mock.ExpectExec(`UPDATE shared_elements`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	// Second attempt: fresh read at version 2, update lands.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM shared_elements WHERE id = \$1`).
		WithArgs("el-1").
		WillReturnRows(elementRows().AddRow(
			"el-1", "t1", "financial", "monthly_rent", "fp-1",
			"$12,800.00", "", "", 0.9, false, 2, now, now,
		))
	mock.ExpectQuery(`SELECT page_id FROM page_references`).
		WithArgs("el-1").
		WillReturnRows(pgxmock.NewRows([]string{"page_id"}).AddRow("page-1"))
	mock.ExpectExec(`UPDATE shared_elements`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO propagation_log`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	change, err := st.ApplyValue(context.Background(), "el-1", ValueUpdate{
		NewValue:  "$13,000.00",
		Tolerance: 0.01,
	})
	require.NoError(t, err)
	require.True(t, change.Changed)
	assert.Equal(t, 3, change.Element.Version)
	assert.Equal(t, []string{"page-1"}, change.Entry.AffectedPageIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
