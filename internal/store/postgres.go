package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/leasedesk/reconcile/internal/model"
)

// pgUniqueViolation is the SQLSTATE code for unique-constraint violations.
const pgUniqueViolation = "23505"

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects a pgx pool to the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS shared_elements (
	id                 TEXT PRIMARY KEY,
	tenant_id          TEXT NOT NULL,
	element_type       TEXT NOT NULL,
	canonical_name     TEXT NOT NULL,
	fingerprint        TEXT NOT NULL,
	current_value      TEXT NOT NULL,
	formula_expression TEXT NOT NULL DEFAULT '',
	unit               TEXT NOT NULL DEFAULT '',
	confidence         DOUBLE PRECISION NOT NULL DEFAULT 0,
	low_confidence     BOOLEAN NOT NULL DEFAULT FALSE,
	version            INTEGER NOT NULL DEFAULT 1,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS page_references (
	page_id       TEXT NOT NULL,
	element_id    TEXT NOT NULL REFERENCES shared_elements(id),
	display_label TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (page_id, element_id)
);

CREATE TABLE IF NOT EXISTS propagation_log (
	id                TEXT PRIMARY KEY,
	element_id        TEXT NOT NULL REFERENCES shared_elements(id),
	old_value         TEXT NOT NULL,
	new_value         TEXT NOT NULL,
	old_version       INTEGER NOT NULL,
	new_version       INTEGER NOT NULL,
	changed_at        TIMESTAMPTZ NOT NULL,
	affected_page_ids JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS judgments (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	analyzer_id    TEXT NOT NULL,
	candidate_key  TEXT NOT NULL,
	semantic_type  TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	data_type      TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	formula        TEXT NOT NULL DEFAULT '',
	unit           TEXT NOT NULL DEFAULT '',
	judged_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS review_queue (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	candidate   JSONB NOT NULL,
	reason      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pattern_entries (
	field_type       TEXT NOT NULL,
	pattern          TEXT NOT NULL,
	pattern_kind     TEXT NOT NULL,
	semantic_type    TEXT NOT NULL,
	canonical_name   TEXT NOT NULL,
	data_type        TEXT NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	occurrence_count INTEGER NOT NULL DEFAULT 1,
	updated_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (field_type, pattern)
);

CREATE TABLE IF NOT EXISTS analyzer_weights (
	analyzer_id TEXT PRIMARY KEY,
	weight      DOUBLE PRECISION NOT NULL,
	samples     INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_elements_fingerprint ON shared_elements(tenant_id, fingerprint);
CREATE INDEX IF NOT EXISTS idx_page_refs_element ON page_references(element_id);
CREATE INDEX IF NOT EXISTS idx_propagation_element ON propagation_log(element_id);
CREATE INDEX IF NOT EXISTS idx_judgments_candidate ON judgments(tenant_id, candidate_key);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgSelectElement = `SELECT id, tenant_id, element_type, canonical_name, fingerprint,
	current_value, formula_expression, unit, confidence, low_confidence, version,
	created_at, updated_at FROM shared_elements`

func (s *PostgresStore) CreateElement(ctx context.Context, el model.SharedElement) (*model.SharedElement, error) {
	if el.ID == "" {
		el.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	el.CreatedAt = now
	el.UpdatedAt = now
	if el.Version == 0 {
		el.Version = 1
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO shared_elements
		 (id, tenant_id, element_type, canonical_name, fingerprint, current_value,
		  formula_expression, unit, confidence, low_confidence, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		el.ID, el.TenantID, string(el.ElementType), el.CanonicalName, el.Fingerprint,
		el.CurrentValue, el.FormulaExpression, el.Unit, el.Confidence,
		el.LowConfidence, el.Version, now, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateFingerprint
		}
		return nil, eris.Wrap(err, "postgres: insert element")
	}
	return &el, nil
}

func (s *PostgresStore) GetElement(ctx context.Context, id string) (*model.SharedElement, error) {
	return scanPgElement(s.pool.QueryRow(ctx, pgSelectElement+` WHERE id = $1`, id))
}

func (s *PostgresStore) GetElementByFingerprint(ctx context.Context, tenantID, fingerprint string) (*model.SharedElement, error) {
	return scanPgElement(s.pool.QueryRow(ctx,
		pgSelectElement+` WHERE tenant_id = $1 AND fingerprint = $2`,
		tenantID, fingerprint,
	))
}

func (s *PostgresStore) ListElements(ctx context.Context, tenantID string, filter ElementFilter) ([]model.SharedElement, error) {
	query := pgSelectElement + ` WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter.ElementType != "" {
		args = append(args, string(filter.ElementType))
		query += ` AND element_type = $2`
	}
	if filter.LowConfidence != nil {
		args = append(args, *filter.LowConfidence)
		query += ` AND low_confidence = $` + itoa(len(args))
	}
	query += ` ORDER BY canonical_name`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list elements")
	}
	defer rows.Close()

	var elements []model.SharedElement
	for rows.Next() {
		el, err := scanPgElement(rows)
		if err != nil {
			return nil, err
		}
		elements = append(elements, *el)
	}
	return elements, eris.Wrap(rows.Err(), "postgres: list elements iterate")
}

func (s *PostgresStore) ApplyValue(ctx context.Context, elementID string, update ValueUpdate) (*ValueChange, error) {
	var lastErr error
	for attempt := 0; attempt < applyValueMaxAttempts; attempt++ {
		change, err := s.tryApplyValue(ctx, elementID, update)
		if err == nil {
			return change, nil
		}
		if !eris.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, eris.Wrapf(lastErr, "postgres: apply value %s: retries exhausted", elementID)
}

func (s *PostgresStore) tryApplyValue(ctx context.Context, elementID string, update ValueUpdate) (*ValueChange, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin apply value")
	}
	defer tx.Rollback(ctx)

	el, err := scanPgElement(tx.QueryRow(ctx, pgSelectElement+` WHERE id = $1`, elementID))
	if err != nil {
		return nil, err
	}

	if model.EquivalentValue(el.CurrentValue, update.NewValue, update.Tolerance) &&
		el.FormulaExpression == update.Formula {
		return &ValueChange{Element: el, Changed: false}, nil
	}

	pageIDs := []string{}
	rows, err := tx.Query(ctx,
		`SELECT page_id FROM page_references WHERE element_id = $1 ORDER BY page_id`, elementID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list page ids")
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan page id")
		}
		pageIDs = append(pageIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list page ids iterate")
	}

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE shared_elements
		 SET current_value = $1, formula_expression = $2, unit = $3, confidence = $4,
		     low_confidence = $5, version = version + 1, updated_at = $6
		 WHERE id = $7 AND version = $8`,
		update.NewValue, update.Formula, update.Unit, update.Confidence,
		update.LowConfidence, now, elementID, el.Version,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update element %s", elementID)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}

	entry := model.PropagationEntry{
		ID:              uuid.New().String(),
		ElementID:       elementID,
		OldValue:        el.CurrentValue,
		NewValue:        update.NewValue,
		OldVersion:      el.Version,
		NewVersion:      el.Version + 1,
		ChangedAt:       now,
		AffectedPageIDs: pageIDs,
	}
	pageIDsJSON, err := json.Marshal(entry.AffectedPageIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal page ids")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO propagation_log
		 (id, element_id, old_value, new_value, old_version, new_version, changed_at, affected_page_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ElementID, entry.OldValue, entry.NewValue,
		entry.OldVersion, entry.NewVersion, now, string(pageIDsJSON),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert propagation entry")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit apply value")
	}

	el.CurrentValue = update.NewValue
	el.FormulaExpression = update.Formula
	el.Unit = update.Unit
	el.Confidence = update.Confidence
	el.LowConfidence = update.LowConfidence
	el.Version++
	el.UpdatedAt = now

	return &ValueChange{Element: el, Changed: true, Entry: &entry}, nil
}

func (s *PostgresStore) LinkPage(ctx context.Context, ref model.PageReference) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO page_references (page_id, element_id, display_label, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (page_id, element_id) DO UPDATE SET display_label = EXCLUDED.display_label`,
		ref.PageID, ref.ElementID, ref.DisplayLabel,
	)
	return eris.Wrap(err, "postgres: link page")
}

func (s *PostgresStore) UnlinkPage(ctx context.Context, pageID, elementID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM page_references WHERE page_id = $1 AND element_id = $2`,
		pageID, elementID,
	)
	return eris.Wrap(err, "postgres: unlink page")
}

func (s *PostgresStore) ListPageRefs(ctx context.Context, elementID string) ([]model.PageReference, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT page_id, element_id, display_label, created_at
		 FROM page_references WHERE element_id = $1 ORDER BY page_id`,
		elementID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list page refs")
	}
	defer rows.Close()

	var refs []model.PageReference
	for rows.Next() {
		var r model.PageReference
		if err := rows.Scan(&r.PageID, &r.ElementID, &r.DisplayLabel, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan page ref")
		}
		refs = append(refs, r)
	}
	return refs, eris.Wrap(rows.Err(), "postgres: list page refs iterate")
}

func (s *PostgresStore) ListRefsForPage(ctx context.Context, pageID string) ([]model.PageReference, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT page_id, element_id, display_label, created_at
		 FROM page_references WHERE page_id = $1 ORDER BY element_id`,
		pageID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list refs for page")
	}
	defer rows.Close()

	var refs []model.PageReference
	for rows.Next() {
		var r model.PageReference
		if err := rows.Scan(&r.PageID, &r.ElementID, &r.DisplayLabel, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan page ref")
		}
		refs = append(refs, r)
	}
	return refs, eris.Wrap(rows.Err(), "postgres: list refs for page iterate")
}

func (s *PostgresStore) ListPropagation(ctx context.Context, elementID string, limit int) ([]model.PropagationEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, element_id, old_value, new_value, old_version, new_version, changed_at, affected_page_ids
		 FROM propagation_log WHERE element_id = $1 ORDER BY changed_at DESC LIMIT $2`,
		elementID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list propagation")
	}
	defer rows.Close()

	var entries []model.PropagationEntry
	for rows.Next() {
		var e model.PropagationEntry
		var pageIDsJSON []byte
		if err := rows.Scan(&e.ID, &e.ElementID, &e.OldValue, &e.NewValue,
			&e.OldVersion, &e.NewVersion, &e.ChangedAt, &pageIDsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan propagation entry")
		}
		if err := json.Unmarshal(pageIDsJSON, &e.AffectedPageIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal page ids")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list propagation iterate")
}

func (s *PostgresStore) RecordJudgments(ctx context.Context, tenantID string, judgments []model.Judgment) error {
	if len(judgments) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin record judgments")
	}
	defer tx.Rollback(ctx)

	for _, j := range judgments {
		_, err := tx.Exec(ctx,
			`INSERT INTO judgments
			 (id, tenant_id, analyzer_id, candidate_key, semantic_type, canonical_name,
			  data_type, confidence, formula, unit, judged_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			uuid.New().String(), tenantID, j.AnalyzerID, j.CandidateKey, j.SemanticType,
			j.CanonicalName, string(j.DataType), j.Confidence, j.Formula, j.Unit, j.JudgedAt.UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert judgment")
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit judgments")
}

func (s *PostgresStore) ListJudgments(ctx context.Context, tenantID, candidateKey string) ([]model.Judgment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT analyzer_id, candidate_key, semantic_type, canonical_name, data_type,
		        confidence, formula, unit, judged_at
		 FROM judgments WHERE tenant_id = $1 AND candidate_key = $2 ORDER BY judged_at`,
		tenantID, candidateKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list judgments")
	}
	defer rows.Close()

	var judgments []model.Judgment
	for rows.Next() {
		var j model.Judgment
		if err := rows.Scan(&j.AnalyzerID, &j.CandidateKey, &j.SemanticType, &j.CanonicalName,
			&j.DataType, &j.Confidence, &j.Formula, &j.Unit, &j.JudgedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan judgment")
		}
		judgments = append(judgments, j)
	}
	return judgments, eris.Wrap(rows.Err(), "postgres: list judgments iterate")
}

func (s *PostgresStore) EnqueueUnresolved(ctx context.Context, u model.UnresolvedCandidate) (*model.UnresolvedCandidate, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.CreatedAt = time.Now().UTC()

	candidateJSON, err := json.Marshal(u.Candidate)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal candidate")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO review_queue (id, tenant_id, candidate, reason, detail, retry_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Candidate.TenantID, string(candidateJSON), string(u.Reason), u.Detail, u.RetryCount, u.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: enqueue unresolved")
	}
	return &u, nil
}

func (s *PostgresStore) GetUnresolved(ctx context.Context, id string) (*model.UnresolvedCandidate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, candidate, reason, detail, retry_count, created_at FROM review_queue WHERE id = $1`,
		id,
	)
	var u model.UnresolvedCandidate
	var candidateJSON []byte
	err := row.Scan(&u.ID, &candidateJSON, &u.Reason, &u.Detail, &u.RetryCount, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "review entry %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get unresolved")
	}
	if err := json.Unmarshal(candidateJSON, &u.Candidate); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal candidate")
	}
	return &u, nil
}

func (s *PostgresStore) ListUnresolved(ctx context.Context, filter UnresolvedFilter) ([]model.UnresolvedCandidate, error) {
	query := `SELECT id, candidate, reason, detail, retry_count, created_at FROM review_queue`
	var args []any
	var where []string

	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		where = append(where, `tenant_id = $`+itoa(len(args)))
	}
	if filter.Reason != "" {
		args = append(args, string(filter.Reason))
		where = append(where, `reason = $`+itoa(len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + where[0]
		for _, w := range where[1:] {
			query += ` AND ` + w
		}
	}
	query += ` ORDER BY created_at`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unresolved")
	}
	defer rows.Close()

	var out []model.UnresolvedCandidate
	for rows.Next() {
		var u model.UnresolvedCandidate
		var candidateJSON []byte
		if err := rows.Scan(&u.ID, &candidateJSON, &u.Reason, &u.Detail, &u.RetryCount, &u.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unresolved")
		}
		if err := json.Unmarshal(candidateJSON, &u.Candidate); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal candidate")
		}
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list unresolved iterate")
}

func (s *PostgresStore) DeleteUnresolved(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM review_queue WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete unresolved %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "review entry %s", id)
	}
	return nil
}

func (s *PostgresStore) UpsertPattern(ctx context.Context, p model.PatternEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pattern_entries
		 (field_type, pattern, pattern_kind, semantic_type, canonical_name, data_type,
		  confidence, occurrence_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (field_type, pattern) DO UPDATE SET
		   pattern_kind = EXCLUDED.pattern_kind,
		   semantic_type = EXCLUDED.semantic_type,
		   canonical_name = EXCLUDED.canonical_name,
		   data_type = EXCLUDED.data_type,
		   confidence = EXCLUDED.confidence,
		   occurrence_count = EXCLUDED.occurrence_count,
		   updated_at = EXCLUDED.updated_at`,
		p.FieldType, p.Pattern, string(p.PatternKind), p.SemanticType, p.CanonicalName,
		string(p.DataType), p.Confidence, p.OccurrenceCount,
	)
	return eris.Wrap(err, "postgres: upsert pattern")
}

func (s *PostgresStore) GetPattern(ctx context.Context, fieldType, pattern string) (*model.PatternEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT field_type, pattern, pattern_kind, semantic_type, canonical_name, data_type,
		        confidence, occurrence_count, updated_at
		 FROM pattern_entries WHERE field_type = $1 AND pattern = $2`,
		fieldType, pattern,
	)
	var p model.PatternEntry
	err := row.Scan(&p.FieldType, &p.Pattern, &p.PatternKind, &p.SemanticType, &p.CanonicalName,
		&p.DataType, &p.Confidence, &p.OccurrenceCount, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get pattern")
	}
	return &p, nil
}

func (s *PostgresStore) ListPatterns(ctx context.Context, limit int) ([]model.PatternEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT field_type, pattern, pattern_kind, semantic_type, canonical_name, data_type,
		        confidence, occurrence_count, updated_at
		 FROM pattern_entries ORDER BY occurrence_count DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list patterns")
	}
	defer rows.Close()

	var patterns []model.PatternEntry
	for rows.Next() {
		var p model.PatternEntry
		if err := rows.Scan(&p.FieldType, &p.Pattern, &p.PatternKind, &p.SemanticType,
			&p.CanonicalName, &p.DataType, &p.Confidence, &p.OccurrenceCount, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "postgres: list patterns iterate")
}

func (s *PostgresStore) UpsertAnalyzerWeight(ctx context.Context, w model.AnalyzerWeight) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyzer_weights (analyzer_id, weight, samples, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (analyzer_id) DO UPDATE SET
		   weight = EXCLUDED.weight,
		   samples = EXCLUDED.samples,
		   updated_at = EXCLUDED.updated_at`,
		w.AnalyzerID, w.Weight, w.Samples,
	)
	return eris.Wrap(err, "postgres: upsert analyzer weight")
}

func (s *PostgresStore) ListAnalyzerWeights(ctx context.Context) ([]model.AnalyzerWeight, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT analyzer_id, weight, samples, updated_at FROM analyzer_weights ORDER BY analyzer_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyzer weights")
	}
	defer rows.Close()

	var weights []model.AnalyzerWeight
	for rows.Next() {
		var w model.AnalyzerWeight
		if err := rows.Scan(&w.AnalyzerID, &w.Weight, &w.Samples, &w.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analyzer weight")
		}
		weights = append(weights, w)
	}
	return weights, eris.Wrap(rows.Err(), "postgres: list analyzer weights iterate")
}

func scanPgElement(row pgx.Row) (*model.SharedElement, error) {
	var el model.SharedElement
	err := row.Scan(&el.ID, &el.TenantID, &el.ElementType, &el.CanonicalName, &el.Fingerprint,
		&el.CurrentValue, &el.FormulaExpression, &el.Unit, &el.Confidence, &el.LowConfidence,
		&el.Version, &el.CreatedAt, &el.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan element")
	}
	return &el, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
