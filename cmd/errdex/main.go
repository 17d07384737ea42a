// Package main implements the errdex CLI for managing the error knowledge
// base and diagnosing errors from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/errdex/internal/analyzer"
	"github.com/fyrsmithlabs/errdex/internal/config"
	"github.com/fyrsmithlabs/errdex/internal/embeddings"
	"github.com/fyrsmithlabs/errdex/internal/engine"
	"github.com/fyrsmithlabs/errdex/internal/knowledge"
	"github.com/fyrsmithlabs/errdex/internal/logging"
	"github.com/fyrsmithlabs/errdex/internal/matcher"
	"github.com/fyrsmithlabs/errdex/internal/similarity"
)

var (
	configPath string
	noEmbed    bool
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "errdex",
	Short: "Error knowledge base and diagnosis engine",
	Long: `errdex maintains a catalog of error patterns and solutions, matches
error messages against them and finds semantically similar entries.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/errdex/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noEmbed, "no-embed", false, "disable semantic search (exact matching only)")
	rootCmd.AddCommand(patternCmd)
	rootCmd.AddCommand(solutionCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
}

// app bundles everything a command needs after bootstrap.
type app struct {
	engine *engine.Engine
	kb     *knowledge.KnowledgeBase
	logger *zap.Logger

	embedder embeddings.Provider
}

// newApp loads config and wires the engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	storage, err := knowledge.NewJSONStorage(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening data dir: %w", err)
	}
	kb, err := knowledge.NewKnowledgeBase(storage, logger)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}

	var search *similarity.Search
	var embedder embeddings.Provider
	if !noEmbed {
		embedder, err = embeddings.NewProvider(embeddings.ProviderConfig{
			Provider: cfg.Embeddings.Provider,
			Model:    cfg.Embeddings.Model,
			BaseURL:  cfg.Embeddings.BaseURL,
			CacheDir: cfg.Embeddings.CacheDir,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
		search, err = similarity.New(similarity.Config{
			CacheDir:   cfg.Data.CacheDir,
			MaxWorkers: cfg.Search.MaxWorkers,
		}, embedder, logger)
		if err != nil {
			return nil, fmt.Errorf("creating similarity search: %w", err)
		}
	}

	eng, err := engine.New(ctx, kb, analyzer.New(logger), matcher.New(logger), search, logger)
	if err != nil {
		return nil, err
	}

	return &app{engine: eng, kb: kb, logger: logger, embedder: embedder}, nil
}

// close flushes logs and releases the embedder.
func (a *app) close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	_ = logging.Sync(a.logger)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
