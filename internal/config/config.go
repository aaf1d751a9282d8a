// Package config loads keepsake configuration from a JSON file with
// KEEPSAKE_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/keepsake-ai/keepsake/internal/model"
)

// Config is the full keepsake configuration.
type Config struct {
	// DataDir is the base directory for the database, content root,
	// and log file. Defaults to ~/.keepsake.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// DBPath is the SQLite database file. Defaults to <data_dir>/memory.db.
	DBPath string `json:"db_path" mapstructure:"db_path"`

	// ContentRoot is the directory holding content files.
	// Defaults to <data_dir>/memories.
	ContentRoot string `json:"content_root" mapstructure:"content_root"`

	// MaxReadBytes caps content reads; larger files return a placeholder.
	MaxReadBytes int64 `json:"max_read_bytes" mapstructure:"max_read_bytes"`

	Search  SearchConfig  `json:"search" mapstructure:"search"`
	List    ListConfig    `json:"list" mapstructure:"list"`
	Sweep   SweepConfig   `json:"sweep" mapstructure:"sweep"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// SearchConfig holds ranking defaults applied when a query omits them.
type SearchConfig struct {
	SummaryWeight float64 `json:"summary_weight" mapstructure:"summary_weight"`
	KeywordWeight float64 `json:"keyword_weight" mapstructure:"keyword_weight"`
	Lambda        float64 `json:"lambda" mapstructure:"lambda"`
	Limit         int     `json:"limit" mapstructure:"limit"`
}

// ListConfig holds listing defaults.
type ListConfig struct {
	Limit int `json:"limit" mapstructure:"limit"`
}

// SweepConfig controls staged-file cleanup.
type SweepConfig struct {
	GraceHours int `json:"grace_hours" mapstructure:"grace_hours"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		MaxReadBytes: 262144,
		Search: SearchConfig{
			SummaryWeight: model.DefaultSummaryWeight,
			KeywordWeight: model.DefaultKeywordWeight,
			Lambda:        model.DefaultLambda,
			Limit:         model.DefaultSearchLimit,
		},
		List: ListConfig{
			Limit: model.DefaultListLimit,
		},
		Sweep: SweepConfig{
			GraceHours: 24,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:2112",
		},
	}
}

// String returns a JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxReadBytes <= 0 {
		return fmt.Errorf("max_read_bytes must be positive, got %d", c.MaxReadBytes)
	}
	if c.Search.Limit < 1 || c.Search.Limit > model.MaxSearchLimit {
		return fmt.Errorf("search.limit must be between 1 and %d, got %d", model.MaxSearchLimit, c.Search.Limit)
	}
	if c.Search.Lambda < 0 {
		return fmt.Errorf("search.lambda must not be negative, got %g", c.Search.Lambda)
	}
	if c.List.Limit < 1 || c.List.Limit > model.MaxListLimit {
		return fmt.Errorf("list.limit must be between 1 and %d, got %d", model.MaxListLimit, c.List.Limit)
	}
	if c.Sweep.GraceHours < 0 {
		return fmt.Errorf("sweep.grace_hours must not be negative, got %d", c.Sweep.GraceHours)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}
