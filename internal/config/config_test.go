package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "reconcile.db", cfg.Store.DSN)
	assert.Equal(t, 8, cfg.Pool.MaxConcurrent)
	assert.Equal(t, 20, cfg.Pool.AnalyzerTimeoutSecs)
	assert.Equal(t, 4, cfg.Pool.WorkerCount)
	assert.Equal(t, 0.5, cfg.Consensus.LowConfidenceThreshold)
	assert.Equal(t, 0.01, cfg.Dedup.NumericTolerance)
	assert.Equal(t, 0.95, cfg.Patterns.ShortcutFloor)
	assert.Equal(t, 25, cfg.Patterns.ShortcutMinOccurrences)
	assert.Equal(t, 0.2, cfg.Patterns.EMAAlpha)
	assert.Equal(t, 5, cfg.Propagation.MaxRetries)
	assert.True(t, cfg.Analyzers.Rules.Enabled)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RECONCILE_STORE_DRIVER", "postgres")
	t.Setenv("RECONCILE_STORE_DSN", "postgres://localhost/reconcile")
	t.Setenv("RECONCILE_POOL_WORKER_COUNT", "16")
	t.Setenv("RECONCILE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/reconcile", cfg.Store.DSN)
	assert.Equal(t, 16, cfg.Pool.WorkerCount)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
