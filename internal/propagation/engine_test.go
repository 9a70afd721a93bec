package propagation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/internal/store"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
	calls   int
	err     error
}

func (n *recordingNotifier) OnElementChanged(_ context.Context, change Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.err != nil {
		return n.err
	}
	n.changes = append(n.changes, change)
	return nil
}

func (n *recordingNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func (n *recordingNotifier) delivered() []Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Change(nil), n.changes...)
}

func newEngineStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "propagation.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func rentChange() Change {
	return Change{
		ElementID:       "el-1",
		TenantID:        "t1",
		CanonicalName:   "monthly_rent",
		OldValue:        "$12,500.00",
		NewValue:        "$13,750.00",
		Version:         2,
		AffectedPageIDs: []string{"page-1", "page-2"},
	}
}

func TestEngine_PublishAndDrain(t *testing.T) {
	notifier := &recordingNotifier{}
	e := NewEngine(notifier, newEngineStore(t), 1)

	e.Publish(context.Background(), rentChange())
	assert.Empty(t, notifier.delivered(), "publish must not deliver inline while the queue has room")

	e.Drain(context.Background())
	got := notifier.delivered()
	require.Len(t, got, 1)
	assert.Equal(t, "el-1", got[0].ElementID)
	assert.Equal(t, []string{"page-1", "page-2"}, got[0].AffectedPageIDs)
}

func TestEngine_ExhaustedRetriesParkInReviewQueue(t *testing.T) {
	st := newEngineStore(t)
	notifier := &recordingNotifier{err: errors.New("consumer down")}
	e := NewEngine(notifier, st, 1)

	e.Publish(context.Background(), rentChange())
	e.Drain(context.Background())

	parked, err := st.ListUnresolved(context.Background(), store.UnresolvedFilter{
		TenantID: "t1",
		Reason:   model.ReasonPropagationFailure,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, model.ReasonPropagationFailure, parked[0].Reason)
	assert.Equal(t, "monthly_rent", parked[0].Candidate.RawFieldName)
	assert.Equal(t, "$13,750.00", parked[0].Candidate.RawValue)
	assert.Contains(t, parked[0].Detail, "consumer down")
}

func TestEngine_DeliveryFailureDoesNotBlockLaterChanges(t *testing.T) {
	st := newEngineStore(t)
	notifier := &recordingNotifier{err: errors.New("consumer down")}
	e := NewEngine(notifier, st, 1)

	e.Publish(context.Background(), rentChange())
	e.Drain(context.Background())

	notifier.mu.Lock()
	notifier.err = nil
	notifier.mu.Unlock()

	next := rentChange()
	next.Version = 3
	e.Publish(context.Background(), next)
	e.Drain(context.Background())

	got := notifier.delivered()
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Version)
}

func TestEngine_FullQueueDeliversInlineWithoutBackoff(t *testing.T) {
	st := newEngineStore(t)
	notifier := &recordingNotifier{err: errors.New("consumer down")}
	e := NewEngine(notifier, st, 5)
	ctx := context.Background()

	// Fill the buffer without a running consumer.
	for i := 0; i < cap(e.queue); i++ {
		e.Publish(ctx, rentChange())
	}
	require.Equal(t, 0, notifier.callCount())

	// The overflow change gets exactly one inline attempt, then parks,
	// regardless of the configured retry budget.
	start := time.Now()
	e.Publish(ctx, rentChange())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 1, notifier.callCount())

	parked, err := st.ListUnresolved(ctx, store.UnresolvedFilter{
		TenantID: "t1",
		Reason:   model.ReasonPropagationFailure,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, parked, 1)
}

func TestEngine_NilNotifierIsNoOp(t *testing.T) {
	e := NewEngine(nil, newEngineStore(t), 1)
	e.Publish(context.Background(), rentChange())
	e.Drain(context.Background())
}
