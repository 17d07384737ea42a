package main

import (
	"github.com/spf13/cobra"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over patterns and solutions",
	Long: `Search embeds the query and ranks every catalog entry by a blend of
semantic and fuzzy similarity.

Examples:
  errdex search "connection refused by database"
  errdex search "index out of range" --top-k 3`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base and search statistics",
	RunE:  runStats,
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "maximum results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	results, err := app.engine.Search(cmd.Context(), args[0], searchTopK)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func runStats(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	return printJSON(app.engine.Statistics())
}
