// Package analyzer fans candidate facts out to every configured analyzer
// concurrently under a global concurrency cap and collects their judgments.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/leasedesk/reconcile/internal/model"
)

// ErrNoQuorum is returned when zero analyzers produced a judgment for a
// candidate. Such candidates go to the review queue, never to the resolver.
var ErrNoQuorum = errors.New("analyzer: no quorum")

// FailureKind classifies a non-fatal analyzer failure.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureQuota     FailureKind = "quota_exceeded"
	FailureMalformed FailureKind = "malformed_response"
)

// Error wraps a single analyzer call failure. All kinds are non-fatal to
// the candidate as long as at least one sibling succeeds.
type Error struct {
	AnalyzerID string
	Kind       FailureKind
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analyzer %s: %s: %v", e.AnalyzerID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Analyzer classifies a candidate fact. Implementations must be stateless,
// side-effect-free, and safe under concurrent invocation.
type Analyzer interface {
	// ID returns the analyzer identifier used in judgments and trust weights.
	ID() string
	// Judge classifies one candidate.
	Judge(ctx context.Context, c model.CandidateFact) (*model.Judgment, error)
}

// Registry manages the configured analyzer roster.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]Analyzer
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[string]Analyzer)}
}

// Register adds an analyzer. Registering an existing id replaces it.
func (r *Registry) Register(a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.analyzers[a.ID()]; !ok {
		r.order = append(r.order, a.ID())
	}
	r.analyzers[a.ID()] = a
}

// Get returns an analyzer by id, or nil.
func (r *Registry) Get(id string) Analyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.analyzers[id]
}

// All returns the analyzers in registration order.
func (r *Registry) All() []Analyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Analyzer, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.analyzers[id])
	}
	return out
}

// Len returns the roster size.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.analyzers)
}
