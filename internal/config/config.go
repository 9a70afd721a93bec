// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Pool        PoolConfig        `yaml:"pool" mapstructure:"pool"`
	Consensus   ConsensusConfig   `yaml:"consensus" mapstructure:"consensus"`
	Dedup       DedupConfig       `yaml:"dedup" mapstructure:"dedup"`
	Patterns    PatternsConfig    `yaml:"patterns" mapstructure:"patterns"`
	Propagation PropagationConfig `yaml:"propagation" mapstructure:"propagation"`
	Analyzers   AnalyzersConfig   `yaml:"analyzers" mapstructure:"analyzers"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// PoolConfig configures the analyzer pool and the candidate worker pool.
type PoolConfig struct {
	MaxConcurrent       int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	AnalyzerTimeoutSecs int `yaml:"analyzer_timeout_secs" mapstructure:"analyzer_timeout_secs"`
	WorkerCount         int `yaml:"worker_count" mapstructure:"worker_count"`
}

// ConsensusConfig configures the resolver.
type ConsensusConfig struct {
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold" mapstructure:"low_confidence_threshold"`
}

// DedupConfig configures value-change detection on shared elements.
type DedupConfig struct {
	NumericTolerance float64 `yaml:"numeric_tolerance" mapstructure:"numeric_tolerance"`
}

// PatternsConfig configures the pattern learner.
type PatternsConfig struct {
	HighConfidenceThreshold float64 `yaml:"high_confidence_threshold" mapstructure:"high_confidence_threshold"`
	ShortcutFloor           float64 `yaml:"shortcut_floor" mapstructure:"shortcut_floor"`
	ShortcutMinOccurrences  int     `yaml:"shortcut_min_occurrences" mapstructure:"shortcut_min_occurrences"`
	EMAAlpha                float64 `yaml:"ema_alpha" mapstructure:"ema_alpha"`
}

// PropagationConfig configures change notification delivery.
type PropagationConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// AnalyzersConfig holds the analyzer roster.
type AnalyzersConfig struct {
	Rules  RulesAnalyzerConfig  `yaml:"rules" mapstructure:"rules"`
	Claude ClaudeAnalyzerConfig `yaml:"claude" mapstructure:"claude"`
	HTTP   []HTTPAnalyzerConfig `yaml:"http" mapstructure:"http"`
}

// RulesAnalyzerConfig configures the deterministic rules analyzer.
type RulesAnalyzerConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// ClaudeAnalyzerConfig configures the Claude-backed analyzer.
type ClaudeAnalyzerConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// HTTPAnalyzerConfig configures one generic HTTP judge endpoint.
type HTTPAnalyzerConfig struct {
	Name       string  `yaml:"name" mapstructure:"name"`
	URL        string  `yaml:"url" mapstructure:"url"`
	Key        string  `yaml:"key" mapstructure:"key"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECONCILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "reconcile.db")
	v.SetDefault("pool.max_concurrent", 8)
	v.SetDefault("pool.analyzer_timeout_secs", 20)
	v.SetDefault("pool.worker_count", 4)
	v.SetDefault("consensus.low_confidence_threshold", 0.5)
	v.SetDefault("dedup.numeric_tolerance", 0.01)
	v.SetDefault("patterns.high_confidence_threshold", 0.8)
	v.SetDefault("patterns.shortcut_floor", 0.95)
	v.SetDefault("patterns.shortcut_min_occurrences", 25)
	v.SetDefault("patterns.ema_alpha", 0.2)
	v.SetDefault("propagation.timeout_secs", 10)
	v.SetDefault("propagation.max_retries", 5)
	v.SetDefault("analyzers.rules.enabled", true)
	v.SetDefault("analyzers.claude.model", "claude-haiku-4-5-20251001")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
