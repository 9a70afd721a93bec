// Package pipeline orchestrates one capture end to end: candidate
// collection, concurrent analyzer judgment, consensus resolution, element
// dedup, versioned value application, and change propagation.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leasedesk/reconcile/internal/analyzer"
	"github.com/leasedesk/reconcile/internal/collector"
	"github.com/leasedesk/reconcile/internal/consensus"
	"github.com/leasedesk/reconcile/internal/dedup"
	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/internal/patterns"
	"github.com/leasedesk/reconcile/internal/propagation"
	"github.com/leasedesk/reconcile/internal/store"
)

// SessionResult summarizes one processed capture.
type SessionResult struct {
	TenantID      string        `json:"tenant_id"`
	PageID        string        `json:"page_id"`
	Candidates    int           `json:"candidates"`
	Resolved      int           `json:"resolved"`
	Unresolved    int           `json:"unresolved"`
	LowConfidence int           `json:"low_confidence"`
	Created       int           `json:"created"`
	Updated       int           `json:"updated"`
	Unchanged     int           `json:"unchanged"`
	Shortcuts     int           `json:"shortcuts"`
	Failed        int           `json:"failed"`
	Duration      time.Duration `json:"duration"`
}

// Pipeline wires the reconciliation stages together for capture sessions.
type Pipeline struct {
	collector *collector.Collector
	pool      *analyzer.Pool
	resolver  *consensus.Resolver
	index     *dedup.Index
	store     store.Store
	engine    *propagation.Engine
	learner   *patterns.Learner
	workers   int
	tolerance float64
}

// New creates a Pipeline. The learner may be nil; feeding is then skipped.
func New(
	col *collector.Collector,
	pool *analyzer.Pool,
	resolver *consensus.Resolver,
	st store.Store,
	engine *propagation.Engine,
	learner *patterns.Learner,
	workers int,
	tolerance float64,
) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{
		collector: col,
		pool:      pool,
		resolver:  resolver,
		index:     dedup.NewIndex(st),
		store:     st,
		engine:    engine,
		learner:   learner,
		workers:   workers,
		tolerance: tolerance,
	}
}

// ProcessCapture runs one capture session. Each candidate is processed
// independently: one failing candidate never blocks its siblings, and
// candidates committed before a cancellation stay committed. Stale page
// references (elements the page no longer mentions) are unlinked at the
// end of a successful session.
func (p *Pipeline) ProcessCapture(ctx context.Context, in collector.CaptureInput) (*SessionResult, error) {
	if in.TenantID == "" {
		return nil, eris.New("pipeline: tenant id is required")
	}
	if in.PageID == "" {
		return nil, eris.New("pipeline: page id is required")
	}

	log := zap.L().With(
		zap.String("tenant_id", in.TenantID),
		zap.String("page_id", in.PageID),
	)
	start := time.Now()

	candidates := p.collector.Collect(ctx, in)
	result := &SessionResult{
		TenantID:   in.TenantID,
		PageID:     in.PageID,
		Candidates: len(candidates),
	}
	log.Info("pipeline: capture collected", zap.Int("candidates", len(candidates)))

	var mu sync.Mutex
	linked := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, c := range candidates {
		g.Go(func() error {
			elementID, outcome, err := p.processCandidate(gctx, c)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && gctx.Err() != nil:
				// Cancelled mid-flight. Committed siblings stay committed.
				return gctx.Err()
			case err != nil:
				result.Failed++
				log.Warn("pipeline: candidate failed",
					zap.String("field", c.RawFieldName),
					zap.Error(err),
				)
				return nil
			case outcome == nil:
				result.Unresolved++
				return nil
			}

			result.Resolved++
			if outcome.lowConfidence {
				result.LowConfidence++
			}
			if outcome.shortcut {
				result.Shortcuts++
			}
			switch {
			case outcome.created:
				result.Created++
			case outcome.changed:
				result.Updated++
			default:
				result.Unchanged++
			}
			linked[elementID] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result.Duration = time.Since(start)
		return result, eris.Wrap(err, "pipeline: capture interrupted")
	}

	if err := p.unlinkStale(ctx, in.PageID, linked); err != nil {
		log.Warn("pipeline: stale reference cleanup failed", zap.Error(err))
	}

	result.Duration = time.Since(start)
	log.Info("pipeline: capture complete",
		zap.Int("resolved", result.Resolved),
		zap.Int("unresolved", result.Unresolved),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("low_confidence", result.LowConfidence),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// Reprocess runs one parked candidate back through judgment and commit.
// It reports whether the candidate resolved; false means it was parked
// in the review queue again.
func (p *Pipeline) Reprocess(ctx context.Context, c model.CandidateFact) (bool, error) {
	_, outcome, err := p.processCandidate(ctx, c)
	if err != nil {
		return false, err
	}
	return outcome != nil, nil
}

type candidateOutcome struct {
	created       bool
	changed       bool
	lowConfidence bool
	shortcut      bool
}

// processCandidate runs one candidate through judgment, resolution, and
// commit. A nil outcome with nil error means the candidate was parked in
// the review queue rather than resolved.
func (p *Pipeline) processCandidate(ctx context.Context, c model.CandidateFact) (string, *candidateOutcome, error) {
	judged, err := p.pool.Judge(ctx, c)
	if err != nil {
		if eris.Is(err, analyzer.ErrNoQuorum) {
			return "", nil, p.parkNoQuorum(ctx, c, err)
		}
		return "", nil, eris.Wrap(err, "pipeline: judge candidate")
	}

	// Shortcut resolutions record their synthetic judgment too, so the
	// audit trail explains every pattern_shortcut element.
	if err := p.store.RecordJudgments(ctx, c.TenantID, judged.Judgments); err != nil {
		return "", nil, eris.Wrap(err, "pipeline: record judgments")
	}

	resolved, err := p.resolver.Resolve(c, judged.Judgments)
	if err != nil {
		return "", nil, eris.Wrap(err, "pipeline: resolve candidate")
	}
	if judged.Shortcut {
		resolved.Method = model.MethodPatternShortcut
	}

	el, created, err := p.index.Ensure(ctx, *resolved)
	if err != nil {
		return "", nil, eris.Wrap(err, "pipeline: ensure element")
	}

	if err := p.store.LinkPage(ctx, model.PageReference{
		PageID:       c.PageID,
		ElementID:    el.ID,
		DisplayLabel: c.RawFieldName,
	}); err != nil {
		return "", nil, eris.Wrap(err, "pipeline: link page")
	}

	change, err := p.store.ApplyValue(ctx, el.ID, store.ValueUpdate{
		NewValue:      resolved.Value,
		Formula:       resolved.Formula,
		Unit:          resolved.Unit,
		Confidence:    resolved.Confidence,
		LowConfidence: resolved.LowConfidence,
		Tolerance:     p.tolerance,
	})
	if err != nil {
		return "", nil, eris.Wrap(err, "pipeline: apply value")
	}

	if change.Changed && p.engine != nil {
		p.engine.Publish(ctx, propagation.Change{
			ElementID:       change.Element.ID,
			TenantID:        change.Element.TenantID,
			CanonicalName:   change.Element.CanonicalName,
			OldValue:        change.Entry.OldValue,
			NewValue:        change.Entry.NewValue,
			Version:         change.Entry.NewVersion,
			AffectedPageIDs: change.Entry.AffectedPageIDs,
		})
	}

	if p.learner != nil {
		p.learner.Feed(patterns.Outcome{Resolved: *resolved, Shortcut: judged.Shortcut})
	}

	return el.ID, &candidateOutcome{
		created:       created,
		changed:       change.Changed && !created,
		lowConfidence: resolved.LowConfidence,
		shortcut:      judged.Shortcut,
	}, nil
}

// parkNoQuorum records a candidate every analyzer failed on. Candidates
// are never silently dropped.
func (p *Pipeline) parkNoQuorum(ctx context.Context, c model.CandidateFact, cause error) error {
	_, err := p.store.EnqueueUnresolved(ctx, model.UnresolvedCandidate{
		Candidate: c,
		Reason:    model.ReasonNoQuorum,
		Detail:    cause.Error(),
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: enqueue unresolved")
	}
	zap.L().Info("pipeline: candidate parked for review",
		zap.String("tenant_id", c.TenantID),
		zap.String("field", c.RawFieldName),
	)
	return nil
}

// unlinkStale removes page references this capture no longer mentions.
func (p *Pipeline) unlinkStale(ctx context.Context, pageID string, linked map[string]bool) error {
	refs, err := p.store.ListRefsForPage(ctx, pageID)
	if err != nil {
		return eris.Wrap(err, "pipeline: list refs for page")
	}
	for _, ref := range refs {
		if linked[ref.ElementID] {
			continue
		}
		if err := p.store.UnlinkPage(ctx, pageID, ref.ElementID); err != nil {
			return eris.Wrapf(err, "pipeline: unlink element %s", ref.ElementID)
		}
	}
	return nil
}
