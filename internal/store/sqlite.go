package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/leasedesk/reconcile/internal/model"
)

// applyValueMaxAttempts bounds the optimistic-lock retry loop in ApplyValue.
const applyValueMaxAttempts = 5

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS shared_elements (
	id                 TEXT PRIMARY KEY,
	tenant_id          TEXT NOT NULL,
	element_type       TEXT NOT NULL,
	canonical_name     TEXT NOT NULL,
	fingerprint        TEXT NOT NULL,
	current_value      TEXT NOT NULL,
	formula_expression TEXT NOT NULL DEFAULT '',
	unit               TEXT NOT NULL DEFAULT '',
	confidence         REAL NOT NULL DEFAULT 0,
	low_confidence     INTEGER NOT NULL DEFAULT 0,
	version            INTEGER NOT NULL DEFAULT 1,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL,
	UNIQUE(tenant_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS page_references (
	page_id       TEXT NOT NULL,
	element_id    TEXT NOT NULL REFERENCES shared_elements(id),
	display_label TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	PRIMARY KEY (page_id, element_id)
);

CREATE TABLE IF NOT EXISTS propagation_log (
	id                TEXT PRIMARY KEY,
	element_id        TEXT NOT NULL REFERENCES shared_elements(id),
	old_value         TEXT NOT NULL,
	new_value         TEXT NOT NULL,
	old_version       INTEGER NOT NULL,
	new_version       INTEGER NOT NULL,
	changed_at        DATETIME NOT NULL,
	affected_page_ids TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS judgments (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	analyzer_id    TEXT NOT NULL,
	candidate_key  TEXT NOT NULL,
	semantic_type  TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	data_type      TEXT NOT NULL,
	confidence     REAL NOT NULL,
	formula        TEXT NOT NULL DEFAULT '',
	unit           TEXT NOT NULL DEFAULT '',
	judged_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS review_queue (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	candidate   TEXT NOT NULL,
	reason      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pattern_entries (
	field_type       TEXT NOT NULL,
	pattern          TEXT NOT NULL,
	pattern_kind     TEXT NOT NULL,
	semantic_type    TEXT NOT NULL,
	canonical_name   TEXT NOT NULL,
	data_type        TEXT NOT NULL,
	confidence       REAL NOT NULL,
	occurrence_count INTEGER NOT NULL DEFAULT 1,
	updated_at       DATETIME NOT NULL,
	PRIMARY KEY (field_type, pattern)
);

CREATE TABLE IF NOT EXISTS analyzer_weights (
	analyzer_id TEXT PRIMARY KEY,
	weight      REAL NOT NULL,
	samples     INTEGER NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_elements_fingerprint ON shared_elements(tenant_id, fingerprint);
CREATE INDEX IF NOT EXISTS idx_page_refs_element ON page_references(element_id);
CREATE INDEX IF NOT EXISTS idx_propagation_element ON propagation_log(element_id);
CREATE INDEX IF NOT EXISTS idx_judgments_candidate ON judgments(tenant_id, candidate_key);
CREATE INDEX IF NOT EXISTS idx_review_tenant ON review_queue(tenant_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateElement(ctx context.Context, el model.SharedElement) (*model.SharedElement, error) {
	if el.ID == "" {
		el.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	el.CreatedAt = now
	el.UpdatedAt = now
	if el.Version == 0 {
		el.Version = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shared_elements
		 (id, tenant_id, element_type, canonical_name, fingerprint, current_value,
		  formula_expression, unit, confidence, low_confidence, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		el.ID, el.TenantID, string(el.ElementType), el.CanonicalName, el.Fingerprint,
		el.CurrentValue, el.FormulaExpression, el.Unit, el.Confidence,
		boolToInt(el.LowConfidence), el.Version, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateFingerprint
		}
		return nil, eris.Wrap(err, "sqlite: insert element")
	}
	return &el, nil
}

func (s *SQLiteStore) GetElement(ctx context.Context, id string) (*model.SharedElement, error) {
	row := s.db.QueryRowContext(ctx, selectElement+` WHERE id = ?`, id)
	return scanElement(row)
}

func (s *SQLiteStore) GetElementByFingerprint(ctx context.Context, tenantID, fingerprint string) (*model.SharedElement, error) {
	row := s.db.QueryRowContext(ctx,
		selectElement+` WHERE tenant_id = ? AND fingerprint = ?`,
		tenantID, fingerprint,
	)
	return scanElement(row)
}

func (s *SQLiteStore) ListElements(ctx context.Context, tenantID string, filter ElementFilter) ([]model.SharedElement, error) {
	query := selectElement + ` WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.ElementType != "" {
		query += ` AND element_type = ?`
		args = append(args, string(filter.ElementType))
	}
	if filter.LowConfidence != nil {
		query += ` AND low_confidence = ?`
		args = append(args, boolToInt(*filter.LowConfidence))
	}
	query += ` ORDER BY canonical_name`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list elements")
	}
	defer rows.Close()

	var elements []model.SharedElement
	for rows.Next() {
		el, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		elements = append(elements, *el)
	}
	return elements, eris.Wrap(rows.Err(), "sqlite: list elements iterate")
}

func (s *SQLiteStore) ApplyValue(ctx context.Context, elementID string, update ValueUpdate) (*ValueChange, error) {
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
	return nil, eris.Wrapf(lastErr, "sqlite: apply value %s: retries exhausted", elementID)
}

func (s *SQLiteStore) tryApplyValue(ctx context.Context, elementID string, update ValueUpdate) (*ValueChange, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin apply value")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectElement+` WHERE id = ?`, elementID)
	el, err := scanElement(row)
	if err != nil {
		return nil, err
	}

	if model.EquivalentValue(el.CurrentValue, update.NewValue, update.Tolerance) &&
		el.FormulaExpression == update.Formula {
		// Within tolerance: no version bump, no log entry.
		return &ValueChange{Element: el, Changed: false}, nil
	}

	pageIDs, err := listPageIDsTx(ctx, tx, elementID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE shared_elements
		 SET current_value = ?, formula_expression = ?, unit = ?, confidence = ?,
		     low_confidence = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		update.NewValue, update.Formula, update.Unit, update.Confidence,
		boolToInt(update.LowConfidence), now, elementID, el.Version,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update element %s", elementID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Concurrent writer bumped the version between our read and write.
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
		return nil, eris.Wrap(err, "sqlite: marshal page ids")
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO propagation_log
		 (id, element_id, old_value, new_value, old_version, new_version, changed_at, affected_page_ids)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ElementID, entry.OldValue, entry.NewValue,
		entry.OldVersion, entry.NewVersion, now, string(pageIDsJSON),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert propagation entry")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit apply value")
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

func (s *SQLiteStore) LinkPage(ctx context.Context, ref model.PageReference) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_references (page_id, element_id, display_label, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (page_id, element_id) DO UPDATE SET display_label = excluded.display_label`,
		ref.PageID, ref.ElementID, ref.DisplayLabel, now,
	)
	return eris.Wrap(err, "sqlite: link page")
}

func (s *SQLiteStore) UnlinkPage(ctx context.Context, pageID, elementID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM page_references WHERE page_id = ? AND element_id = ?`,
		pageID, elementID,
	)
	return eris.Wrap(err, "sqlite: unlink page")
}

func (s *SQLiteStore) ListPageRefs(ctx context.Context, elementID string) ([]model.PageReference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page_id, element_id, display_label, created_at
		 FROM page_references WHERE element_id = ? ORDER BY page_id`,
		elementID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list page refs")
	}
	defer rows.Close()

	var refs []model.PageReference
	for rows.Next() {
		var r model.PageReference
		if err := rows.Scan(&r.PageID, &r.ElementID, &r.DisplayLabel, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page ref")
		}
		refs = append(refs, r)
	}
	return refs, eris.Wrap(rows.Err(), "sqlite: list page refs iterate")
}

func (s *SQLiteStore) ListRefsForPage(ctx context.Context, pageID string) ([]model.PageReference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page_id, element_id, display_label, created_at
		 FROM page_references WHERE page_id = ? ORDER BY element_id`,
		pageID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list refs for page")
	}
	defer rows.Close()

	var refs []model.PageReference
	for rows.Next() {
		var r model.PageReference
		if err := rows.Scan(&r.PageID, &r.ElementID, &r.DisplayLabel, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page ref")
		}
		refs = append(refs, r)
	}
	return refs, eris.Wrap(rows.Err(), "sqlite: list refs for page iterate")
}

func (s *SQLiteStore) ListPropagation(ctx context.Context, elementID string, limit int) ([]model.PropagationEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, element_id, old_value, new_value, old_version, new_version, changed_at, affected_page_ids
		 FROM propagation_log WHERE element_id = ? ORDER BY changed_at DESC LIMIT ?`,
		elementID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list propagation")
	}
	defer rows.Close()

	var entries []model.PropagationEntry
	for rows.Next() {
		var e model.PropagationEntry
		var pageIDsJSON string
		if err := rows.Scan(&e.ID, &e.ElementID, &e.OldValue, &e.NewValue,
			&e.OldVersion, &e.NewVersion, &e.ChangedAt, &pageIDsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan propagation entry")
		}
		if err := json.Unmarshal([]byte(pageIDsJSON), &e.AffectedPageIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal page ids")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list propagation iterate")
}

func (s *SQLiteStore) RecordJudgments(ctx context.Context, tenantID string, judgments []model.Judgment) error {
	if len(judgments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin record judgments")
	}
	defer tx.Rollback()

	for _, j := range judgments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO judgments
			 (id, tenant_id, analyzer_id, candidate_key, semantic_type, canonical_name,
			  data_type, confidence, formula, unit, judged_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), tenantID, j.AnalyzerID, j.CandidateKey, j.SemanticType,
			j.CanonicalName, string(j.DataType), j.Confidence, j.Formula, j.Unit, j.JudgedAt.UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert judgment")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit judgments")
}

func (s *SQLiteStore) ListJudgments(ctx context.Context, tenantID, candidateKey string) ([]model.Judgment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT analyzer_id, candidate_key, semantic_type, canonical_name, data_type,
		        confidence, formula, unit, judged_at
		 FROM judgments WHERE tenant_id = ? AND candidate_key = ? ORDER BY judged_at`,
		tenantID, candidateKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list judgments")
	}
	defer rows.Close()

	var judgments []model.Judgment
	for rows.Next() {
		var j model.Judgment
		if err := rows.Scan(&j.AnalyzerID, &j.CandidateKey, &j.SemanticType, &j.CanonicalName,
			&j.DataType, &j.Confidence, &j.Formula, &j.Unit, &j.JudgedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan judgment")
		}
		judgments = append(judgments, j)
	}
	return judgments, eris.Wrap(rows.Err(), "sqlite: list judgments iterate")
}

func (s *SQLiteStore) EnqueueUnresolved(ctx context.Context, u model.UnresolvedCandidate) (*model.UnresolvedCandidate, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.CreatedAt = time.Now().UTC()

	candidateJSON, err := json.Marshal(u.Candidate)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal candidate")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_queue (id, tenant_id, candidate, reason, detail, retry_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Candidate.TenantID, string(candidateJSON), string(u.Reason), u.Detail, u.RetryCount, u.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: enqueue unresolved")
	}
	return &u, nil
}

func (s *SQLiteStore) GetUnresolved(ctx context.Context, id string) (*model.UnresolvedCandidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, candidate, reason, detail, retry_count, created_at FROM review_queue WHERE id = ?`,
		id,
	)
	var u model.UnresolvedCandidate
	var candidateJSON string
	err := row.Scan(&u.ID, &candidateJSON, &u.Reason, &u.Detail, &u.RetryCount, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "review entry %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get unresolved")
	}
	if err := json.Unmarshal([]byte(candidateJSON), &u.Candidate); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal candidate")
	}
	return &u, nil
}

func (s *SQLiteStore) ListUnresolved(ctx context.Context, filter UnresolvedFilter) ([]model.UnresolvedCandidate, error) {
	query := `SELECT id, candidate, reason, detail, retry_count, created_at FROM review_queue WHERE 1=1`
	var args []any

	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.Reason != "" {
		query += ` AND reason = ?`
		args = append(args, string(filter.Reason))
	}
	query += ` ORDER BY created_at`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unresolved")
	}
	defer rows.Close()

	var out []model.UnresolvedCandidate
	for rows.Next() {
		var u model.UnresolvedCandidate
		var candidateJSON string
		if err := rows.Scan(&u.ID, &candidateJSON, &u.Reason, &u.Detail, &u.RetryCount, &u.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unresolved")
		}
		if err := json.Unmarshal([]byte(candidateJSON), &u.Candidate); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal candidate")
		}
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list unresolved iterate")
}

func (s *SQLiteStore) DeleteUnresolved(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM review_queue WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete unresolved %s", id)
	}
	return checkRowsAffected(res, "review entry", id)
}

func (s *SQLiteStore) UpsertPattern(ctx context.Context, p model.PatternEntry) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pattern_entries
		 (field_type, pattern, pattern_kind, semantic_type, canonical_name, data_type,
		  confidence, occurrence_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (field_type, pattern) DO UPDATE SET
		   pattern_kind = excluded.pattern_kind,
		   semantic_type = excluded.semantic_type,
		   canonical_name = excluded.canonical_name,
		   data_type = excluded.data_type,
		   confidence = excluded.confidence,
		   occurrence_count = excluded.occurrence_count,
		   updated_at = excluded.updated_at`,
		p.FieldType, p.Pattern, string(p.PatternKind), p.SemanticType, p.CanonicalName,
		string(p.DataType), p.Confidence, p.OccurrenceCount, now,
	)
	return eris.Wrap(err, "sqlite: upsert pattern")
}

func (s *SQLiteStore) GetPattern(ctx context.Context, fieldType, pattern string) (*model.PatternEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT field_type, pattern, pattern_kind, semantic_type, canonical_name, data_type,
		        confidence, occurrence_count, updated_at
		 FROM pattern_entries WHERE field_type = ? AND pattern = ?`,
		fieldType, pattern,
	)
	var p model.PatternEntry
	err := row.Scan(&p.FieldType, &p.Pattern, &p.PatternKind, &p.SemanticType, &p.CanonicalName,
		&p.DataType, &p.Confidence, &p.OccurrenceCount, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get pattern")
	}
	return &p, nil
}

func (s *SQLiteStore) ListPatterns(ctx context.Context, limit int) ([]model.PatternEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT field_type, pattern, pattern_kind, semantic_type, canonical_name, data_type,
		        confidence, occurrence_count, updated_at
		 FROM pattern_entries ORDER BY occurrence_count DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list patterns")
	}
	defer rows.Close()

	var patterns []model.PatternEntry
	for rows.Next() {
		var p model.PatternEntry
		if err := rows.Scan(&p.FieldType, &p.Pattern, &p.PatternKind, &p.SemanticType,
			&p.CanonicalName, &p.DataType, &p.Confidence, &p.OccurrenceCount, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "sqlite: list patterns iterate")
}

func (s *SQLiteStore) UpsertAnalyzerWeight(ctx context.Context, w model.AnalyzerWeight) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyzer_weights (analyzer_id, weight, samples, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (analyzer_id) DO UPDATE SET
		   weight = excluded.weight,
		   samples = excluded.samples,
		   updated_at = excluded.updated_at`,
		w.AnalyzerID, w.Weight, w.Samples, now,
	)
	return eris.Wrap(err, "sqlite: upsert analyzer weight")
}

func (s *SQLiteStore) ListAnalyzerWeights(ctx context.Context) ([]model.AnalyzerWeight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT analyzer_id, weight, samples, updated_at FROM analyzer_weights ORDER BY analyzer_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyzer weights")
	}
	defer rows.Close()

	var weights []model.AnalyzerWeight
	for rows.Next() {
		var w model.AnalyzerWeight
		if err := rows.Scan(&w.AnalyzerID, &w.Weight, &w.Samples, &w.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analyzer weight")
		}
		weights = append(weights, w)
	}
	return weights, eris.Wrap(rows.Err(), "sqlite: list analyzer weights iterate")
}

// helpers

const selectElement = `SELECT id, tenant_id, element_type, canonical_name, fingerprint,
	current_value, formula_expression, unit, confidence, low_confidence, version,
	created_at, updated_at FROM shared_elements`

type scannable interface {
	Scan(dest ...any) error
}

func scanElement(row scannable) (*model.SharedElement, error) {
	var el model.SharedElement
	var lowConf int
	err := row.Scan(&el.ID, &el.TenantID, &el.ElementType, &el.CanonicalName, &el.Fingerprint,
		&el.CurrentValue, &el.FormulaExpression, &el.Unit, &el.Confidence, &lowConf,
		&el.Version, &el.CreatedAt, &el.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan element")
	}
	el.LowConfidence = lowConf != 0
	return &el, nil
}

func listPageIDsTx(ctx context.Context, tx *sql.Tx, elementID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT page_id FROM page_references WHERE element_id = ? ORDER BY page_id`,
		elementID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list page ids")
	}
	defer rows.Close()

	pageIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page id")
		}
		pageIDs = append(pageIDs, id)
	}
	return pageIDs, eris.Wrap(rows.Err(), "sqlite: list page ids iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
