// Package config provides configuration loading for errdex.
package config

import (
	"fmt"

	"github.com/fyrsmithlabs/errdex/internal/logging"
)

// Config is the full errdex configuration tree.
type Config struct {
	Data       DataConfig       `koanf:"data"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Search     SearchConfig     `koanf:"search"`
	Matcher    MatcherConfig    `koanf:"matcher"`
	Logging    logging.Config   `koanf:"logging"`
}

// DataConfig controls where the knowledge base persists its catalogs.
type DataConfig struct {
	// Dir holds patterns.json and solutions.json.
	Dir string `koanf:"dir"`

	// CacheDir holds the embedding caches. Defaults to Dir when empty.
	CacheDir string `koanf:"cache_dir"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed", "tei" or "hash".
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// BaseURL is the TEI server endpoint (tei provider only).
	BaseURL string `koanf:"base_url"`

	// CacheDir holds downloaded model files (fastembed provider only).
	CacheDir string `koanf:"cache_dir"`
}

// SearchConfig tunes similarity search.
type SearchConfig struct {
	// MaxWorkers bounds parallel candidate scoring.
	MaxWorkers int `koanf:"max_workers"`

	// TopK is the default result count.
	TopK int `koanf:"top_k"`

	// ContextWeight blends fuzzy score into pooled search.
	ContextWeight float64 `koanf:"context_weight"`
}

// MatcherConfig tunes pattern matching.
type MatcherConfig struct {
	// SimilarityThreshold is the minimum score for related patterns.
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must not be empty")
	}
	switch c.Embeddings.Provider {
	case "fastembed", "tei", "hash":
	default:
		return fmt.Errorf("embeddings.provider must be fastembed, tei or hash, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "tei" && c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings.base_url required for tei provider")
	}
	if c.Search.MaxWorkers < 1 {
		return fmt.Errorf("search.max_workers must be >= 1, got %d", c.Search.MaxWorkers)
	}
	if c.Search.TopK < 1 {
		return fmt.Errorf("search.top_k must be >= 1, got %d", c.Search.TopK)
	}
	if c.Search.ContextWeight < 0 || c.Search.ContextWeight > 1 {
		return fmt.Errorf("search.context_weight must be in [0,1], got %v", c.Search.ContextWeight)
	}
	if c.Matcher.SimilarityThreshold < 0 || c.Matcher.SimilarityThreshold > 1 {
		return fmt.Errorf("matcher.similarity_threshold must be in [0,1], got %v", c.Matcher.SimilarityThreshold)
	}
	return c.Logging.Validate()
}
