package dedup

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/internal/store"
)

// Index maps a resolved fact to exactly one canonical element identity.
// In-process callers for the same fingerprint are collapsed through
// singleflight; across processes the store's unique constraint on
// (tenant_id, fingerprint) serializes creation, and the losing writer
// adopts the winner's row.
type Index struct {
	store  store.Store
	flight singleflight.Group
}

// NewIndex creates an Index over the given store.
func NewIndex(s store.Store) *Index {
	return &Index{store: s}
}

type ensured struct {
	el      *model.SharedElement
	created bool
}

// Ensure returns the shared element for the fact's fingerprint, creating
// it if absent, and reports whether this call created it. Concurrent
// calls for the same fingerprint yield the same element id; a creation
// race is resolved by re-reading, never surfaced.
func (ix *Index) Ensure(ctx context.Context, fact model.ResolvedFact) (*model.SharedElement, bool, error) {
	elementType := model.ElementTypeForDataType(fact.DataType)
	fp := Fingerprint(fact.Candidate.TenantID, fact.CanonicalName, elementType)

	// The closure runs only for the flight leader, so collapsed callers
	// leave createdHere false and adopt the element without claiming the
	// creation.
	var createdHere bool
	v, err, _ := ix.flight.Do(fact.Candidate.TenantID+"/"+fp, func() (any, error) {
		res, err := ix.ensure(ctx, fact, elementType, fp)
		if err == nil {
			createdHere = res.created
		}
		return res, err
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(ensured)
	return res.el, createdHere, nil
}

func (ix *Index) ensure(ctx context.Context, fact model.ResolvedFact, elementType model.ElementType, fp string) (ensured, error) {
	tenantID := fact.Candidate.TenantID

	el, err := ix.store.GetElementByFingerprint(ctx, tenantID, fp)
	if err == nil {
		return ensured{el: el}, nil
	}
	if !eris.Is(err, store.ErrNotFound) {
		return ensured{}, eris.Wrap(err, "dedup: lookup fingerprint")
	}

	created, err := ix.store.CreateElement(ctx, model.SharedElement{
		TenantID:          tenantID,
		ElementType:       elementType,
		CanonicalName:     NormalizeName(fact.CanonicalName),
		Fingerprint:       fp,
		CurrentValue:      fact.Value,
		FormulaExpression: fact.Formula,
		Unit:              fact.Unit,
		Confidence:        fact.Confidence,
		LowConfidence:     fact.LowConfidence,
	})
	if err == nil {
		zap.L().Debug("dedup: element created",
			zap.String("tenant", tenantID),
			zap.String("fingerprint", fp),
			zap.String("element_id", created.ID),
		)
		return ensured{el: created, created: true}, nil
	}
	if !eris.Is(err, store.ErrDuplicateFingerprint) {
		return ensured{}, eris.Wrap(err, "dedup: create element")
	}

	// Lost the creation race: the winner's row exists now, adopt it.
	el, err = ix.store.GetElementByFingerprint(ctx, tenantID, fp)
	if err != nil {
		return ensured{}, eris.Wrap(err, "dedup: re-read after create race")
	}
	return ensured{el: el}, nil
}
