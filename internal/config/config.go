// Package config holds all intentd configuration: catalog location,
// pipeline tuning, embedding backend selection, ledger persistence and
// logging. Config files are YAML (or JSON by extension) with
// environment-variable overrides for deployment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"intentd/internal/embedding"
	"intentd/internal/logging"
)

// Config holds all intentd configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`

	// Intent catalog
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// Resolution pipeline tuning
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Embedding backend
	Embedding embedding.Config `yaml:"embedding" json:"embedding"`

	// Feedback ledger persistence
	Ledger LedgerConfig `yaml:"ledger" json:"ledger"`

	// Logging
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CatalogConfig locates the intent catalog.
type CatalogConfig struct {
	Path string `yaml:"path" json:"path"`
}

// PipelineConfig tunes the orchestrator.
type PipelineConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	TopK                int     `yaml:"top_k" json:"top_k"`
	NormalizeInput      bool    `yaml:"normalize_input" json:"normalize_input"`
}

// LedgerConfig configures feedback persistence.
type LedgerConfig struct {
	DatabasePath string `yaml:"database_path" json:"database_path"`
	Retention    string `yaml:"retention" json:"retention"` // Go duration, e.g. "24h"
}

// RetentionDuration parses the retention window, falling back to 24h.
func (lc LedgerConfig) RetentionDuration() time.Duration {
	d, err := time.ParseDuration(lc.Retention)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig mirrors the logging package's file format.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Level      string          `yaml:"level" json:"level"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Name:    "intentd",
		Version: "0.1.0",
		Catalog: CatalogConfig{
			Path: ".intentd/catalog.yaml",
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: 0.6,
			TopK:                5,
			NormalizeInput:      true,
		},
		Embedding: embedding.DefaultConfig(),
		Ledger: LedgerConfig{
			DatabasePath: ".intentd/ledger.db",
			Retention:    "24h",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads configuration from path, merging over the defaults and
// then applying environment overrides. A missing file is not an error:
// defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			logging.ConfigDebug("No config file at %s, using defaults", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := unmarshalByExt(path, data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
			logging.Config("Loaded config from %s", path)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshalByExt(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides lets deployments override file settings without
// editing the file. Only the operationally interesting knobs are
// exposed.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INTENTD_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("INTENTD_LEDGER_DB"); v != "" {
		cfg.Ledger.DatabasePath = v
	}
	if v := os.Getenv("INTENTD_RETENTION"); v != "" {
		cfg.Ledger.Retention = v
	}
	if v := os.Getenv("INTENTD_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("INTENTD_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.TopK = k
		}
	}
	if v := os.Getenv("INTENTD_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("INTENTD_OLLAMA_ENDPOINT"); v != "" {
		cfg.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Embedding.GenAIAPIKey == "" {
		cfg.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("INTENTD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INTENTD_DEBUG"); v != "" {
		cfg.Logging.DebugMode = v == "1" || strings.EqualFold(v, "true")
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %.3f", c.Pipeline.ConfidenceThreshold)
	}
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.Pipeline.TopK)
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog path required")
	}
	if c.Ledger.DatabasePath == "" {
		return fmt.Errorf("ledger database path required")
	}
	if _, err := time.ParseDuration(c.Ledger.Retention); c.Ledger.Retention != "" && err != nil {
		return fmt.Errorf("invalid retention duration %q: %w", c.Ledger.Retention, err)
	}
	return nil
}

// Save writes the config to path in the format its extension implies.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	logging.Config("Config saved to %s", path)
	return nil
}
