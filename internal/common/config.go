package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string                   `toml:"environment"` // "development" or "production"
	Storage     StorageConfig            `toml:"storage"`
	Logging     LoggingConfig            `toml:"logging"`
	Extraction  ExtractionConfig         `toml:"extraction"`
	Backends    map[string]BackendConfig `toml:"backends" validate:"dive"`
	Normalizer  NormalizerConfig         `toml:"normalizer"`
	Scoring     ScoringConfig            `toml:"scoring"`
	Matching    MatchingConfig           `toml:"matching"`
}

type StorageConfig struct {
	Type   string       `toml:"type"` // only "badger" is supported
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Output []string `toml:"output"` // "stdout", "console", "file"
}

// ExtractionConfig controls how documents are run through backends
type ExtractionConfig struct {
	DefaultBackend string `toml:"default_backend" validate:"required"`
	Timeout        string `toml:"timeout"`         // e.g. "2m" - per-document extraction timeout
	MaxConcurrency int    `toml:"max_concurrency" validate:"gte=1"`
	CacheEnabled   bool   `toml:"cache_enabled"`
	CacheTTL       string `toml:"cache_ttl"` // e.g. "24h" - extraction cache lifetime
}

// BackendConfig enables a backend and carries its default options.
// Options are merged under any options supplied per call.
type BackendConfig struct {
	Enabled bool           `toml:"enabled"`
	Options map[string]any `toml:"options"`
}

// NormalizerConfig tunes header detection
type NormalizerConfig struct {
	HeaderWindow     int     `toml:"header_window" validate:"gte=1"`
	HeaderNumericGap float64 `toml:"header_numeric_gap" validate:"gte=0,lte=1"`
}

// ScoringConfig holds the table confidence weights
type ScoringConfig struct {
	BackendWeight    float64 `toml:"backend_weight" validate:"gte=0"`
	RegularityWeight float64 `toml:"regularity_weight" validate:"gte=0"`
	DensityWeight    float64 `toml:"density_weight" validate:"gte=0"`
}

// MatchingConfig holds the anchor matching and confidence constants
type MatchingConfig struct {
	DiagonalTiePolicy     string  `toml:"diagonal_tie_policy" validate:"oneof=horizontal vertical"`
	BaseConfidence        float64 `toml:"base_confidence" validate:"gte=0,lte=1"`
	SimilarityWeight      float64 `toml:"similarity_weight" validate:"gte=0,lte=1"`
	NonEmptyBonus         float64 `toml:"non_empty_bonus" validate:"gte=0,lte=1"`
	NumericBonus          float64 `toml:"numeric_bonus" validate:"gte=0,lte=1"`
	ExactSimilarity       float64 `toml:"exact_similarity" validate:"gte=0,lte=1"`
	CaseFoldSimilarity    float64 `toml:"case_fold_similarity" validate:"gte=0,lte=1"`
	PartialSimilarity     float64 `toml:"partial_similarity" validate:"gte=0,lte=1"`
	FallbackSimilarity    float64 `toml:"fallback_similarity" validate:"gte=0,lte=1"`
	AmbiguityPenalty      float64 `toml:"ambiguity_penalty" validate:"gt=0,lt=1"` // strictly below an unambiguous match
	DiagonalPenalty       float64 `toml:"diagonal_penalty" validate:"gt=0,lt=1"`
}

// NewDefaultConfig creates a configuration with default values
// Technology stack is fixed: Badger storage, arbor logging, local PDF backends
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Extraction: ExtractionConfig{
			DefaultBackend: "tabula",
			Timeout:        "2m",
			MaxConcurrency: 3,
			CacheEnabled:   true,
			CacheTTL:       "24h",
		},
		Backends: DefaultBackendConfigs(),
		Normalizer: NormalizerConfig{
			HeaderWindow:     3,
			HeaderNumericGap: 0.25,
		},
		Scoring: ScoringConfig{
			BackendWeight:    0.5,
			RegularityWeight: 0.3,
			DensityWeight:    0.2,
		},
		Matching: DefaultMatchingConfig(),
	}
}

// DefaultMatchingConfig returns the anchor matching constants used when none are configured
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		DiagonalTiePolicy:  "horizontal",
		BaseConfidence:     0.5,
		SimilarityWeight:   0.3,
		NonEmptyBonus:      0.2,
		NumericBonus:       0.1,
		ExactSimilarity:    1.0,
		CaseFoldSimilarity: 0.9,
		PartialSimilarity:  0.7,
		FallbackSimilarity: 0.3,
		AmbiguityPenalty:   0.8,
		DiagonalPenalty:    0.7,
	}
}

// DefaultBackendConfigs returns the default per-backend options
func DefaultBackendConfigs() map[string]BackendConfig {
	return map[string]BackendConfig{
		"plumber": {
			Enabled: true,
			Options: map[string]any{
				"y_tolerance": 2.0,
				"word_gap":    1.5,
				"column_gap":  8.0,
				"region_gap":  30.0,
				"min_rows":    2,
				"min_cols":    2,
			},
		},
		"tabula": {
			Enabled: true,
			Options: map[string]any{
				"min_rows":            2,
				"min_cols":            2,
				"min_confidence":      0.5,
				"use_lines":           true,
				"use_whitespace":      true,
				"max_cell_gap":        5.0,
				"alignment_tolerance": 2.0,
				"detect_merged_cells": true,
			},
		},
		"lattice": {
			Enabled: true,
			Options: map[string]any{
				"min_rows":       1,
				"min_cols":       1,
				"min_confidence": 0.3,
			},
		},
	}
}

// LoadFromFile loads configuration from a single file
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration with priority: defaults -> files (in order) -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TABANCHOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Storage
	if badgerPath := os.Getenv("TABANCHOR_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("TABANCHOR_BADGER_RESET_ON_STARTUP"); reset != "" {
		config.Storage.Badger.ResetOnStartup = parseBool(reset, config.Storage.Badger.ResetOnStartup)
	}

	// Logging
	if level := os.Getenv("TABANCHOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TABANCHOR_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// Extraction
	if backend := os.Getenv("TABANCHOR_DEFAULT_BACKEND"); backend != "" {
		config.Extraction.DefaultBackend = backend
	}
	if timeout := os.Getenv("TABANCHOR_EXTRACTION_TIMEOUT"); timeout != "" {
		config.Extraction.Timeout = timeout
	}
	if concurrency := os.Getenv("TABANCHOR_MAX_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Extraction.MaxConcurrency = c
		}
	}
	if cacheEnabled := os.Getenv("TABANCHOR_CACHE_ENABLED"); cacheEnabled != "" {
		config.Extraction.CacheEnabled = parseBool(cacheEnabled, config.Extraction.CacheEnabled)
	}
	if ttl := os.Getenv("TABANCHOR_CACHE_TTL"); ttl != "" {
		config.Extraction.CacheTTL = ttl
	}

	// Matching
	if policy := os.Getenv("TABANCHOR_DIAGONAL_TIE_POLICY"); policy != "" {
		config.Matching.DiagonalTiePolicy = strings.ToLower(policy)
	}
}

// ApplyFlagOverrides applies command line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, backend, logLevel, dataDir string) {
	if backend != "" {
		config.Extraction.DefaultBackend = backend
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	if dataDir != "" {
		config.Storage.Badger.Path = dataDir
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Storage.Type != "" && c.Storage.Type != "badger" {
		return fmt.Errorf("unsupported storage type: %s (only 'badger' is supported)", c.Storage.Type)
	}
	if _, err := c.ExtractionTimeout(); err != nil {
		return err
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	return nil
}

// ExtractionTimeout parses the configured per-document timeout. Empty means no timeout.
func (c *Config) ExtractionTimeout() (time.Duration, error) {
	return parseDuration("extraction.timeout", c.Extraction.Timeout)
}

// CacheTTL parses the configured extraction cache lifetime. Empty means entries never expire.
func (c *Config) CacheTTL() (time.Duration, error) {
	return parseDuration("extraction.cache_ttl", c.Extraction.CacheTTL)
}

// BackendOptions returns a copy of the configured options for a backend
func (c *Config) BackendOptions(id string) map[string]any {
	out := make(map[string]any)
	if bc, ok := c.Backends[id]; ok {
		for k, v := range bc.Options {
			out[k] = v
		}
	}
	return out
}

// BackendEnabled reports whether a backend is enabled. Unknown backends are disabled.
func (c *Config) BackendEnabled(id string) bool {
	bc, ok := c.Backends[id]
	return ok && bc.Enabled
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func parseDuration(name, value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, value)
	}
	return d, nil
}

func parseBool(value string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
