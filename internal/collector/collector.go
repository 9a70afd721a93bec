// Package collector normalizes raw extraction output into candidate facts,
// fanning out to every configured extraction strategy and dropping exact
// in-session duplicates.
package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leasedesk/reconcile/internal/model"
)

// TableRow is one labeled cell pair from a structured region of a capture.
type TableRow struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// CaptureInput is the raw material for one capture of one page.
type CaptureInput struct {
	TenantID   string     `json:"tenant_id" yaml:"tenant_id"`
	PageID     string     `json:"page_id" yaml:"page_id"`
	Tables     []TableRow `json:"tables,omitempty" yaml:"tables,omitempty"`
	Text       string     `json:"text,omitempty" yaml:"text,omitempty"`
	ObservedAt time.Time  `json:"observed_at,omitempty" yaml:"observed_at,omitempty"`
}

// Strategy extracts candidate facts from a capture. Strategies fail
// independently: an error contributes an empty list and never blocks
// sibling strategies.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, in CaptureInput) ([]model.CandidateFact, error)
}

// Collector runs all strategies over a capture and dedupes exact repeats.
type Collector struct {
	strategies []Strategy
}

// New creates a Collector with the given strategies.
func New(strategies ...Strategy) *Collector {
	return &Collector{strategies: strategies}
}

// Collect fans the capture out to every strategy concurrently, then drops
// exact (source_method, raw_field_name, raw_value) repeats, keeping the
// first occurrence. A failing strategy logs and contributes nothing.
func (c *Collector) Collect(ctx context.Context, in CaptureInput) []model.CandidateFact {
	var (
		mu  sync.Mutex
		all []model.CandidateFact
	)

	g, gCtx := errgroup.WithContext(ctx)
	for _, s := range c.strategies {
		g.Go(func() error {
			facts, err := s.Extract(gCtx, in)
			if err != nil {
				zap.L().Warn("collector: strategy failed",
					zap.String("strategy", s.Name()),
					zap.String("page", in.PageID),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			all = append(all, facts...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool, len(all))
	out := make([]model.CandidateFact, 0, len(all))
	for _, f := range all {
		if f.RawFieldName == "" || f.RawValue == "" {
			continue
		}
		if seen[f.Key()] {
			continue
		}
		seen[f.Key()] = true
		out = append(out, f)
	}

	zap.L().Debug("collector: capture collected",
		zap.String("page", in.PageID),
		zap.Int("raw", len(all)),
		zap.Int("deduped", len(out)),
	)
	return out
}
