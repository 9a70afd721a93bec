package main

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leasedesk/reconcile/internal/analyzer"
	"github.com/leasedesk/reconcile/internal/collector"
	"github.com/leasedesk/reconcile/internal/consensus"
	"github.com/leasedesk/reconcile/internal/patterns"
	"github.com/leasedesk/reconcile/internal/pipeline"
	"github.com/leasedesk/reconcile/internal/propagation"
	"github.com/leasedesk/reconcile/internal/store"
	"github.com/leasedesk/reconcile/pkg/llm"
)

// appEnv holds the initialized store, background workers, and the
// pipeline needed by the ingest/serve/review commands.
type appEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Learner  *patterns.Learner
	Engine   *propagation.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Close drains background workers and releases resources. Queued pattern
// observations and change deliveries are flushed before the store closes.
func (e *appEnv) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	drainCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if e.Engine != nil {
		e.Engine.Drain(drainCtx)
	}
	if e.Learner != nil {
		e.Learner.Drain(drainCtx)
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, analyzer roster, learner, propagation engine,
// and pipeline. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	learner := patterns.NewLearner(st, patterns.Config{
		HighConfidenceThreshold: cfg.Patterns.HighConfidenceThreshold,
		ShortcutFloor:           cfg.Patterns.ShortcutFloor,
		ShortcutMinOccurrences:  cfg.Patterns.ShortcutMinOccurrences,
		EMAAlpha:                cfg.Patterns.EMAAlpha,
	})
	if err := learner.Load(ctx); err != nil {
		zap.L().Warn("pattern cache load failed, starting cold", zap.Error(err))
	}

	registry := analyzer.NewRegistry()
	if cfg.Analyzers.Rules.Enabled {
		registry.Register(analyzer.Rules{})
	}
	if cfg.Analyzers.Claude.Key != "" {
		registry.Register(analyzer.NewClaude(
			llm.NewClient(cfg.Analyzers.Claude.Key),
			cfg.Analyzers.Claude.Model,
		))
	}
	for _, h := range cfg.Analyzers.HTTP {
		var opts []analyzer.HTTPJudgeOption
		if h.RatePerSec > 0 {
			opts = append(opts, analyzer.WithRateLimit(h.RatePerSec))
		}
		registry.Register(analyzer.NewHTTPJudge(h.Name, h.URL, h.Key, opts...))
	}
	if registry.Len() == 0 {
		_ = st.Close()
		return nil, eris.New("no analyzers configured")
	}

	pool := analyzer.NewPool(
		registry,
		cfg.Pool.MaxConcurrent,
		time.Duration(cfg.Pool.AnalyzerTimeoutSecs)*time.Second,
	).WithShortcut(learner)

	resolver := consensus.NewResolver(cfg.Consensus.LowConfidenceThreshold, learner)

	var engine *propagation.Engine
	if cfg.Propagation.WebhookURL != "" {
		notifier := propagation.NewWebhookNotifier(
			cfg.Propagation.WebhookURL,
			time.Duration(cfg.Propagation.TimeoutSecs)*time.Second,
		)
		engine = propagation.NewEngine(notifier, st, cfg.Propagation.MaxRetries)
	} else {
		zap.L().Debug("RECONCILE_PROPAGATION_WEBHOOK_URL not set, change notifications disabled")
	}

	col := collector.New(collector.TableStrategy{}, collector.LabeledTextStrategy{})

	env := &appEnv{
		Store:   st,
		Learner: learner,
		Engine:  engine,
		Pipeline: pipeline.New(
			col,
			pool,
			resolver,
			st,
			engine,
			learner,
			cfg.Pool.WorkerCount,
			cfg.Dedup.NumericTolerance,
		),
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	env.wg.Add(1)
	go func() {
		defer env.wg.Done()
		learner.Run(bgCtx)
	}()
	if engine != nil {
		env.wg.Add(1)
		go func() {
			defer env.wg.Done()
			engine.Run(bgCtx)
		}()
	}

	zap.L().Info("environment ready",
		zap.Int("analyzers", registry.Len()),
		zap.String("store", cfg.Store.Driver),
	)
	return env, nil
}

// initStore opens the configured persistence backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DSN)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DSN)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
