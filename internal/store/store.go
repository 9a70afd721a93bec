// Package store persists shared elements, page references, the propagation
// log, the judgment audit trail, learned patterns, and the review queue.
// It owns the create-vs-update decision for element values.
package store

import (
	"context"
	"errors"

	"github.com/leasedesk/reconcile/internal/model"
)

// Sentinel errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateFingerprint is returned by CreateElement when another
	// element already holds the fingerprint. Callers resolve the race by
	// re-reading; it never surfaces past the dedup index.
	ErrDuplicateFingerprint = errors.New("store: duplicate fingerprint")

	// ErrVersionConflict signals an optimistic-lock failure inside
	// ApplyValue. It is retried internally and never returned to callers.
	ErrVersionConflict = errors.New("store: version conflict")
)

// ValueUpdate carries a proposed new value for a shared element.
type ValueUpdate struct {
	NewValue      string
	Formula       string
	Unit          string
	Confidence    float64
	LowConfidence bool

	// Tolerance is the absolute numeric difference below which the update
	// is a no-op. Text values compare case- and whitespace-insensitively.
	Tolerance float64
}

// ValueChange is the outcome of ApplyValue. When Changed is false the
// element's version and the propagation log are untouched.
type ValueChange struct {
	Element *model.SharedElement
	Changed bool
	Entry   *model.PropagationEntry
}

// ElementFilter narrows ListElements.
type ElementFilter struct {
	ElementType   model.ElementType
	LowConfidence *bool
	Limit         int
	Offset        int
}

// UnresolvedFilter narrows ListUnresolved.
type UnresolvedFilter struct {
	TenantID string
	Reason   model.UnresolvedReason
	Limit    int
}

// Store is the persistence interface for the reconciliation core.
type Store interface {
	// Elements
	CreateElement(ctx context.Context, el model.SharedElement) (*model.SharedElement, error)
	GetElement(ctx context.Context, id string) (*model.SharedElement, error)
	GetElementByFingerprint(ctx context.Context, tenantID, fingerprint string) (*model.SharedElement, error)
	ListElements(ctx context.Context, tenantID string, filter ElementFilter) ([]model.SharedElement, error)

	// ApplyValue applies a proposed value to an element: no-op when the
	// new value is within tolerance of the current one, otherwise an
	// atomic version-increment plus propagation-log append. Version
	// conflicts from concurrent writers are retried with a fresh read.
	ApplyValue(ctx context.Context, elementID string, update ValueUpdate) (*ValueChange, error)

	// Page references
	LinkPage(ctx context.Context, ref model.PageReference) error
	UnlinkPage(ctx context.Context, pageID, elementID string) error
	ListPageRefs(ctx context.Context, elementID string) ([]model.PageReference, error)
	ListRefsForPage(ctx context.Context, pageID string) ([]model.PageReference, error)

	// Propagation log
	ListPropagation(ctx context.Context, elementID string, limit int) ([]model.PropagationEntry, error)

	// Judgment audit trail
	RecordJudgments(ctx context.Context, tenantID string, judgments []model.Judgment) error
	ListJudgments(ctx context.Context, tenantID, candidateKey string) ([]model.Judgment, error)

	// Review queue
	EnqueueUnresolved(ctx context.Context, u model.UnresolvedCandidate) (*model.UnresolvedCandidate, error)
	GetUnresolved(ctx context.Context, id string) (*model.UnresolvedCandidate, error)
	ListUnresolved(ctx context.Context, filter UnresolvedFilter) ([]model.UnresolvedCandidate, error)
	DeleteUnresolved(ctx context.Context, id string) error

	// Learned patterns and analyzer trust weights
	UpsertPattern(ctx context.Context, p model.PatternEntry) error
	GetPattern(ctx context.Context, fieldType, pattern string) (*model.PatternEntry, error)
	ListPatterns(ctx context.Context, limit int) ([]model.PatternEntry, error)
	UpsertAnalyzerWeight(ctx context.Context, w model.AnalyzerWeight) error
	ListAnalyzerWeights(ctx context.Context) ([]model.AnalyzerWeight, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
