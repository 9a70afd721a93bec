package analyzer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/internal/resilience"
)

// ShortcutProvider lets the pattern learner answer for a candidate shape
// without live analyzer calls. A nil judgment means no shortcut applies.
type ShortcutProvider interface {
	Shortcut(c model.CandidateFact) *model.Judgment
}

// Result is the outcome of judging one candidate.
type Result struct {
	Judgments []model.Judgment
	// Shortcut is true when the judgments came from a learned pattern
	// instead of live analyzer calls.
	Shortcut bool
	// Failures records per-analyzer failures for observability; they are
	// non-fatal while at least one judgment exists.
	Failures []*Error
}

// Pool dispatches each candidate to every registered analyzer concurrently,
// bounded by a global semaphore shared across all in-flight candidates.
type Pool struct {
	registry *Registry
	sem      *semaphore.Weighted
	timeout  time.Duration
	shortcut ShortcutProvider
}

// NewPool creates a Pool. maxConcurrent caps analyzer calls across all
// candidates; timeout bounds each individual call.
func NewPool(registry *Registry, maxConcurrent int, timeout time.Duration) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Pool{
		registry: registry,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		timeout:  timeout,
	}
}

// WithShortcut attaches a shortcut provider (the pattern learner).
func (p *Pool) WithShortcut(sp ShortcutProvider) *Pool {
	p.shortcut = sp
	return p
}

// Judge collects judgments for one candidate. Every analyzer runs
// concurrently; each call gets a timeout and one transient-error retry.
// Returns ErrNoQuorum when no analyzer produced a judgment.
func (p *Pool) Judge(ctx context.Context, c model.CandidateFact) (*Result, error) {
	if sc := p.shortcutJudgment(c); sc != nil {
		zap.L().Debug("analyzer: pattern shortcut",
			zap.String("field", c.RawFieldName),
			zap.String("semantic_type", sc.SemanticType),
		)
		return &Result{Judgments: []model.Judgment{*sc}, Shortcut: true}, nil
	}

	analyzers := p.registry.All()
	if len(analyzers) == 0 {
		return nil, eris.Wrap(ErrNoQuorum, "empty roster")
	}

	var (
		mu        sync.Mutex
		judgments []model.Judgment
		failures  []*Error
	)

	g, gCtx := errgroup.WithContext(ctx)
	for _, a := range analyzers {
		g.Go(func() error {
			if err := p.sem.Acquire(gCtx, 1); err != nil {
				return nil
			}
			defer p.sem.Release(1)

			j, err := p.judgeOne(gCtx, a, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ae := classify(a.ID(), err)
				failures = append(failures, ae)
				zap.L().Warn("analyzer: call failed",
					zap.String("analyzer", a.ID()),
					zap.String("field", c.RawFieldName),
					zap.String("kind", string(ae.Kind)),
					zap.Error(err),
				)
				return nil
			}
			judgments = append(judgments, *j)
			return nil
		})
	}
	_ = g.Wait()

	if len(judgments) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "analyzer: judge cancelled")
		}
		return nil, eris.Wrapf(ErrNoQuorum, "candidate %s: %d analyzers failed", c.RawFieldName, len(failures))
	}
	return &Result{Judgments: judgments, Failures: failures}, nil
}

func (p *Pool) judgeOne(ctx context.Context, a Analyzer, c model.CandidateFact) (*model.Judgment, error) {
	cfg := resilience.AnalyzerRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("analyzer", a.ID())

	j, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.Judgment, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return a.Judge(callCtx, c)
	})
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, eris.New("nil judgment")
	}

	j.AnalyzerID = a.ID()
	j.CandidateKey = c.Key()
	if j.JudgedAt.IsZero() {
		j.JudgedAt = time.Now().UTC()
	}
	if j.Confidence < 0 {
		j.Confidence = 0
	}
	if j.Confidence > 1 {
		j.Confidence = 1
	}
	return j, nil
}

func (p *Pool) shortcutJudgment(c model.CandidateFact) *model.Judgment {
	if p.shortcut == nil {
		return nil
	}
	j := p.shortcut.Shortcut(c)
	if j == nil {
		return nil
	}
	j.CandidateKey = c.Key()
	if j.JudgedAt.IsZero() {
		j.JudgedAt = time.Now().UTC()
	}
	return j
}

// classify maps a call error onto the analyzer failure taxonomy.
func classify(analyzerID string, err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	kind := FailureMalformed
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	case isQuota(err):
		kind = FailureQuota
	case resilience.IsTransient(err):
		kind = FailureTimeout
	}
	return &Error{AnalyzerID: analyzerID, Kind: kind, Err: err}
}

func isQuota(err error) bool {
	var te *resilience.TransientError
	return errors.As(err, &te) && te.StatusCode == 429
}
