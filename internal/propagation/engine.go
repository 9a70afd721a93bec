// Package propagation delivers change notifications for shared elements
// to external consumers, at-least-once with retry and backoff. The store
// commit is authoritative; delivery failures never roll it back.
package propagation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/internal/resilience"
	"github.com/leasedesk/reconcile/internal/store"
)

// Change is one committed value change to fan out.
type Change struct {
	ElementID       string   `json:"element_id"`
	TenantID        string   `json:"tenant_id"`
	CanonicalName   string   `json:"canonical_name"`
	OldValue        string   `json:"old_value"`
	NewValue        string   `json:"new_value"`
	Version         int      `json:"version"`
	AffectedPageIDs []string `json:"affected_page_ids"`
}

// Notifier is the external consumer contract, e.g. a document regenerator.
// Delivery is at-least-once; implementations must tolerate duplicates.
type Notifier interface {
	OnElementChanged(ctx context.Context, change Change) error
}

// Engine queues committed changes and delivers them in the background.
type Engine struct {
	notifier   Notifier
	store      store.Store
	maxRetries int
	queue      chan Change
}

// NewEngine creates an Engine delivering through the given notifier.
// Exhausted deliveries are parked in the store's review queue.
func NewEngine(notifier Notifier, s store.Store, maxRetries int) *Engine {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Engine{
		notifier:   notifier,
		store:      s,
		maxRetries: maxRetries,
		queue:      make(chan Change, 256),
	}
}

// Publish enqueues a committed change for delivery. Never blocks the
// caller: when the queue is full the change gets one inline delivery
// attempt and is parked in the review queue on failure, without the
// backoff retries of the background path.
func (e *Engine) Publish(ctx context.Context, change Change) {
	select {
	case e.queue <- change:
	default:
		e.deliverAttempts(ctx, change, 1)
	}
}

// Run delivers queued changes until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-e.queue:
			e.deliver(ctx, change)
		}
	}
}

// Drain delivers everything currently queued.
func (e *Engine) Drain(ctx context.Context) {
	for {
		select {
		case change := <-e.queue:
			e.deliver(ctx, change)
		default:
			return
		}
	}
}

func (e *Engine) deliver(ctx context.Context, change Change) {
	e.deliverAttempts(ctx, change, e.maxRetries)
}

func (e *Engine) deliverAttempts(ctx context.Context, change Change, maxAttempts int) {
	if e.notifier == nil {
		return
	}

	cfg := resilience.RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		ShouldRetry:    func(error) bool { return true }, // at-least-once: retry everything
		OnRetry:        resilience.RetryLogger("propagation", "notify"),
	}
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return e.notifier.OnElementChanged(ctx, change)
	})
	if err == nil {
		zap.L().Debug("propagation: change delivered",
			zap.String("element_id", change.ElementID),
			zap.Int("pages", len(change.AffectedPageIDs)),
		)
		return
	}

	zap.L().Error("propagation: delivery exhausted retries",
		zap.String("element_id", change.ElementID),
		zap.Error(err),
	)
	// Surface to the review queue; the element update stays committed.
	_, qErr := e.store.EnqueueUnresolved(ctx, model.UnresolvedCandidate{
		Candidate: model.CandidateFact{
			TenantID:     change.TenantID,
			RawFieldName: change.CanonicalName,
			RawValue:     change.NewValue,
		},
		Reason:     model.ReasonPropagationFailure,
		Detail:     err.Error(),
		RetryCount: maxAttempts,
	})
	if qErr != nil {
		zap.L().Error("propagation: review enqueue failed", zap.Error(qErr))
	}
}
