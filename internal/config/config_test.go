package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithFileDefaults(t *testing.T) {
	// Point at a path that does not exist; defaults should apply.
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Embeddings.Model)
	assert.Equal(t, 4, cfg.Search.MaxWorkers)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.InDelta(t, 0.3, cfg.Search.ContextWeight, 1e-9)
	assert.InDelta(t, 0.7, cfg.Matcher.SimilarityThreshold, 1e-9)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, cfg.Data.Dir, cfg.Data.CacheDir)
}

func TestLoadWithFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
data:
  dir: /tmp/errdex-data
embeddings:
  provider: hash
search:
  max_workers: 8
  top_k: 25
logging:
  level: debug
  format: console
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/errdex-data", cfg.Data.Dir)
	assert.Equal(t, "/tmp/errdex-data", cfg.Data.CacheDir)
	assert.Equal(t, "hash", cfg.Embeddings.Provider)
	assert.Equal(t, 8, cfg.Search.MaxWorkers)
	assert.Equal(t, 25, cfg.Search.TopK)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadWithFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embeddings:\n  provider: hash\n"), 0600))

	t.Setenv("ERRDEX_EMBEDDINGS_PROVIDER", "tei")
	t.Setenv("ERRDEX_EMBEDDINGS_BASE_URL", "http://tei.internal:9000")
	t.Setenv("ERRDEX_SEARCH_MAX_WORKERS", "2")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "tei", cfg.Embeddings.Provider)
	assert.Equal(t, "http://tei.internal:9000", cfg.Embeddings.BaseURL)
	assert.Equal(t, 2, cfg.Search.MaxWorkers)
}

func TestLoadWithFileRejectsOversized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	big := make([]byte, maxConfigFileSize+1)
	require.NoError(t, os.WriteFile(path, big, 0600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Data.Dir = "/tmp/errdex"
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.Data.Dir = "" }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
		{"tei without url", func(c *Config) { c.Embeddings.Provider = "tei"; c.Embeddings.BaseURL = "" }},
		{"zero workers", func(c *Config) { c.Search.MaxWorkers = 0 }},
		{"negative top_k", func(c *Config) { c.Search.TopK = -1 }},
		{"weight above one", func(c *Config) { c.Search.ContextWeight = 1.5 }},
		{"threshold above one", func(c *Config) { c.Matcher.SimilarityThreshold = 2 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
