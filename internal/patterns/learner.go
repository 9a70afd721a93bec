// Package patterns learns recurring field shapes and per-analyzer trust
// weights from resolution outcomes. The learner is eventually consistent
// and never sits on a resolution's critical path.
package patterns

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leasedesk/reconcile/internal/dedup"
	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/internal/store"
)

// ShortcutAnalyzerID marks judgments synthesized from a learned pattern.
const ShortcutAnalyzerID = "pattern"

// Config tunes the learner.
type Config struct {
	// HighConfidenceThreshold gates which resolutions feed the learner.
	HighConfidenceThreshold float64
	// ShortcutFloor is the strict minimum pattern confidence for
	// short-circuiting live analysis.
	ShortcutFloor float64
	// ShortcutMinOccurrences is the minimum times a pattern must recur
	// before it can short-circuit.
	ShortcutMinOccurrences int
	// EMAAlpha weights new observations in the moving averages.
	EMAAlpha float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		HighConfidenceThreshold: 0.8,
		ShortcutFloor:           0.95,
		ShortcutMinOccurrences:  25,
		EMAAlpha:                0.2,
	}
}

// Outcome is one resolution fed to the learner.
type Outcome struct {
	Resolved model.ResolvedFact
	Shortcut bool
}

// Learner consumes resolution outcomes, maintains pattern entries and
// analyzer trust weights in memory, and persists them through the store.
// It never mutates shared elements.
type Learner struct {
	cfg   Config
	store store.Store

	mu       sync.RWMutex
	patterns map[string]model.PatternEntry // keyed by fieldType+"\x00"+pattern
	weights  map[string]model.AnalyzerWeight

	outcomes chan Outcome
}

// NewLearner creates a Learner over the given store.
func NewLearner(s store.Store, cfg Config) *Learner {
	if cfg.HighConfidenceThreshold <= 0 {
		cfg.HighConfidenceThreshold = 0.8
	}
	if cfg.ShortcutFloor <= 0 {
		cfg.ShortcutFloor = 0.95
	}
	if cfg.ShortcutMinOccurrences <= 0 {
		cfg.ShortcutMinOccurrences = 25
	}
	if cfg.EMAAlpha <= 0 || cfg.EMAAlpha > 1 {
		cfg.EMAAlpha = 0.2
	}
	return &Learner{
		cfg:      cfg,
		store:    s,
		patterns: make(map[string]model.PatternEntry),
		weights:  make(map[string]model.AnalyzerWeight),
		outcomes: make(chan Outcome, 256),
	}
}

// Load warms the in-memory caches from the store.
func (l *Learner) Load(ctx context.Context) error {
	entries, err := l.store.ListPatterns(ctx, 10000)
	if err != nil {
		return err
	}
	weights, err := l.store.ListAnalyzerWeights(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range entries {
		l.patterns[patternKey(p.FieldType, p.Pattern)] = p
	}
	for _, w := range weights {
		l.weights[w.AnalyzerID] = w
	}
	return nil
}

// Feed hands an outcome to the learner without blocking. When the buffer
// is full the outcome is dropped; the learner is advisory, not a ledger.
func (l *Learner) Feed(o Outcome) {
	select {
	case l.outcomes <- o:
	default:
		zap.L().Debug("patterns: outcome buffer full, dropping")
	}
}

// Run consumes outcomes until the context is cancelled.
func (l *Learner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-l.outcomes:
			l.observe(ctx, o)
		}
	}
}

// Drain processes everything currently buffered. Used by callers that need
// the learner caught up (tests, end-of-session flush).
func (l *Learner) Drain(ctx context.Context) {
	for {
		select {
		case o := <-l.outcomes:
			l.observe(ctx, o)
		default:
			return
		}
	}
}

func (l *Learner) observe(ctx context.Context, o Outcome) {
	l.updateWeights(ctx, o)

	if o.Resolved.Confidence < l.cfg.HighConfidenceThreshold {
		return
	}
	// Shortcut hits would reinforce themselves; only live resolutions
	// teach patterns.
	if o.Shortcut {
		return
	}

	fieldType := dedup.NormalizeName(o.Resolved.Candidate.RawFieldName)
	shape := ValueShape(o.Resolved.Candidate.RawValue)
	key := patternKey(fieldType, shape)

	l.mu.Lock()
	entry, ok := l.patterns[key]
	if ok {
		entry.OccurrenceCount++
		entry.Confidence += l.cfg.EMAAlpha * (o.Resolved.Confidence - entry.Confidence)
	} else {
		entry = model.PatternEntry{
			FieldType:       fieldType,
			Pattern:         shape,
			PatternKind:     model.PatternValueShape,
			SemanticType:    o.Resolved.SemanticType,
			CanonicalName:   o.Resolved.CanonicalName,
			DataType:        o.Resolved.DataType,
			Confidence:      l.cfg.EMAAlpha * o.Resolved.Confidence,
			OccurrenceCount: 1,
		}
	}
	entry.UpdatedAt = time.Now().UTC()
	l.patterns[key] = entry
	l.mu.Unlock()

	if err := l.store.UpsertPattern(ctx, entry); err != nil {
		zap.L().Warn("patterns: persist pattern failed",
			zap.String("field_type", fieldType),
			zap.Error(err),
		)
	}
}

func (l *Learner) updateWeights(ctx context.Context, o Outcome) {
	for _, j := range o.Resolved.Contributing {
		if j.AnalyzerID == ShortcutAnalyzerID {
			continue
		}
		win := 0.0
		if j.SemanticType == o.Resolved.SemanticType {
			win = 1.0
		}

		l.mu.Lock()
		w, ok := l.weights[j.AnalyzerID]
		if !ok {
			w = model.AnalyzerWeight{AnalyzerID: j.AnalyzerID, Weight: 1.0}
		}
		w.Weight += l.cfg.EMAAlpha * (win - w.Weight)
		w.Samples++
		w.UpdatedAt = time.Now().UTC()
		l.weights[j.AnalyzerID] = w
		l.mu.Unlock()

		if err := l.store.UpsertAnalyzerWeight(ctx, w); err != nil {
			zap.L().Warn("patterns: persist weight failed",
				zap.String("analyzer", j.AnalyzerID),
				zap.Error(err),
			)
		}
	}
}

// Weight implements consensus.TrustProvider. Unknown analyzers weigh 1.0.
func (l *Learner) Weight(analyzerID string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if w, ok := l.weights[analyzerID]; ok {
		return w.Weight
	}
	return 1.0
}

// Shortcut implements analyzer.ShortcutProvider: a synthetic judgment for
// candidates whose shape recurs with very high confidence, skipping live
// analyzer calls. Never fires below the strict floor.
func (l *Learner) Shortcut(c model.CandidateFact) *model.Judgment {
	fieldType := dedup.NormalizeName(c.RawFieldName)
	shape := ValueShape(c.RawValue)

	l.mu.RLock()
	entry, ok := l.patterns[patternKey(fieldType, shape)]
	l.mu.RUnlock()

	if !ok || entry.Confidence < l.cfg.ShortcutFloor || entry.OccurrenceCount < l.cfg.ShortcutMinOccurrences {
		return nil
	}
	return &model.Judgment{
		AnalyzerID:    ShortcutAnalyzerID,
		SemanticType:  entry.SemanticType,
		CanonicalName: entry.CanonicalName,
		DataType:      entry.DataType,
		Confidence:    entry.Confidence,
	}
}

// ValueShape anonymizes a raw value into a shape signature: digit runs
// become "9", letter runs become "a", punctuation is preserved. Raw tenant
// values never leave this function.
func ValueShape(value string) string {
	var b strings.Builder
	var last rune
	for _, r := range strings.TrimSpace(value) {
		var c rune
		switch {
		case r >= '0' && r <= '9':
			c = '9'
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			c = 'a'
		case r == ' ' || r == '\t':
			c = ' '
		default:
			c = r
		}
		if c == last && (c == '9' || c == 'a' || c == ' ') {
			continue
		}
		b.WriteRune(c)
		last = c
	}
	return b.String()
}

func patternKey(fieldType, pattern string) string {
	return fieldType + "\x00" + pattern
}
