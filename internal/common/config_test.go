package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	timeout, err := cfg.ExtractionTimeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, timeout)

	ttl, err := cfg.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)

	assert.True(t, cfg.BackendEnabled("plumber"))
	assert.False(t, cfg.BackendEnabled("camelot"))
	assert.Equal(t, 3, cfg.Normalizer.HeaderWindow)
	assert.Equal(t, "horizontal", cfg.Matching.DiagonalTiePolicy)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	base := writeConfig(t, "base.toml", `
[extraction]
default_backend = "plumber"
timeout = "30s"

[backends.lattice]
enabled = false

[backends.tabula.options]
min_rows = 4
`)
	local := writeConfig(t, "local.toml", `
[extraction]
timeout = "45s"

[matching]
diagonal_tie_policy = "vertical"
`)

	cfg, err := LoadFromFiles(base, local)
	require.NoError(t, err)

	assert.Equal(t, "plumber", cfg.Extraction.DefaultBackend)
	assert.Equal(t, "45s", cfg.Extraction.Timeout)
	assert.Equal(t, "vertical", cfg.Matching.DiagonalTiePolicy)
	assert.False(t, cfg.BackendEnabled("lattice"))
	assert.EqualValues(t, 4, cfg.BackendOptions("tabula")["min_rows"])
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeConfig(t, "bad.toml", "[extraction\n"))
	assert.Error(t, err)
}

func TestEnvAndFlagOverrides(t *testing.T) {
	t.Setenv("TABANCHOR_BADGER_PATH", "/tmp/tabanchor-env")
	t.Setenv("TABANCHOR_DEFAULT_BACKEND", "lattice")
	t.Setenv("TABANCHOR_MAX_CONCURRENCY", "5")
	t.Setenv("TABANCHOR_CACHE_ENABLED", "false")
	t.Setenv("TABANCHOR_DIAGONAL_TIE_POLICY", "VERTICAL")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/tabanchor-env", cfg.Storage.Badger.Path)
	assert.Equal(t, "lattice", cfg.Extraction.DefaultBackend)
	assert.Equal(t, 5, cfg.Extraction.MaxConcurrency)
	assert.False(t, cfg.Extraction.CacheEnabled)
	assert.Equal(t, "vertical", cfg.Matching.DiagonalTiePolicy)

	ApplyFlagOverrides(cfg, "plumber", "debug", "/tmp/flag")
	assert.Equal(t, "plumber", cfg.Extraction.DefaultBackend)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/flag", cfg.Storage.Badger.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad timeout", func(c *Config) { c.Extraction.Timeout = "soon" }},
		{"negative ttl", func(c *Config) { c.Extraction.CacheTTL = "-1h" }},
		{"zero concurrency", func(c *Config) { c.Extraction.MaxConcurrency = 0 }},
		{"storage type", func(c *Config) { c.Storage.Type = "sqlite" }},
		{"tie policy", func(c *Config) { c.Matching.DiagonalTiePolicy = "diagonal" }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"missing path", func(c *Config) { c.Storage.Badger.Path = "" }},
		{"ambiguity penalty of one", func(c *Config) { c.Matching.AmbiguityPenalty = 1 }},
		{"zero ambiguity penalty", func(c *Config) { c.Matching.AmbiguityPenalty = 0 }},
		{"diagonal penalty of one", func(c *Config) { c.Matching.DiagonalPenalty = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
