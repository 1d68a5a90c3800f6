package config

import (
	"time"

	"github.com/spf13/viper"
)

// BootstrapConfig holds process-level configuration: everything the
// runtime Config Store cannot own because the Store itself depends on it
// (where the database lives, which port to listen on) plus the initial
// seed values used only the first time the process starts against an
// empty database. Loaded via cobra flags bound through viper, with
// LOGSENTINEL_-prefixed environment variable overrides.
type BootstrapConfig struct {
	DBPath   string `mapstructure:"db"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Seed values for AppConfig, used only when app_config has no rows yet.
	SeedProvider        string        `mapstructure:"seed_provider"`
	SeedModel           string        `mapstructure:"seed_model"`
	SeedAPIKey          string        `mapstructure:"seed_api_key"`
	SeedAnalyzerBaseURL string        `mapstructure:"seed_analyzer_base_url"`
	SeedThreadCount     int           `mapstructure:"seed_thread_count"`
	SeedBatchSize       int           `mapstructure:"seed_batch_size"`
	SeedRefreshInterval time.Duration `mapstructure:"seed_refresh_interval"`
	SeedRetentionDays   int           `mapstructure:"seed_retention_days"`
}

// DefaultBootstrapConfig mirrors spec.md's CLI defaults (--db LogSentinel.db,
// --port 8080) plus sensible seed values for a first run.
func DefaultBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{
		DBPath:              "LogSentinel.db",
		Port:                8080,
		LogLevel:            "info",
		LogFormat:           "json",
		SeedProvider:        "openai",
		SeedModel:           "gpt-4o-mini",
		SeedAnalyzerBaseURL: "http://localhost:9090",
		SeedThreadCount:     0, // 0 means "cores - 1", resolved at startup
		SeedBatchSize:       100,
		SeedRefreshInterval: 300 * time.Millisecond,
		SeedRetentionDays:   30,
	}
}

// LoadBootstrap reads BootstrapConfig from viper, which must already have
// had flags bound and env prefix set by the caller (see cmd/server).
func LoadBootstrap(v *viper.Viper) (BootstrapConfig, error) {
	cfg := DefaultBootstrapConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "LogSentinel.db"
	}
	return cfg, nil
}

// EnvPrefix is the prefix viper uses for environment variable overrides,
// e.g. LOGSENTINEL_PORT.
const EnvPrefix = "LOGSENTINEL"
