package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/errdex/internal/knowledge"
)

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Manage error patterns",
}

var (
	patternRegex       string
	patternDescription string
	patternSeverity    string
	patternCategory    string
	patternSubcategory string
	patternCauses      []string
	patternExamples    []string
)

var patternAddCmd = &cobra.Command{
	Use:   "add <pattern-type>",
	Short: "Add or update an error pattern",
	Long: `Add an error pattern to the knowledge base. Adding an existing
pattern type replaces it and keeps its original creation time.

Examples:
  errdex pattern add type_mismatch \
    --regex 'TypeError: unsupported operand' \
    --description 'Operation applied to incompatible types' \
    --severity medium --category runtime --subcategory type_error \
    --cause 'missing type conversion'`,
	Args: cobra.ExactArgs(1),
	RunE: runPatternAdd,
}

var patternGetCmd = &cobra.Command{
	Use:   "get <pattern-type>",
	Short: "Show a pattern and its solutions",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternGet,
}

var patternSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Substring search over the pattern catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternSearch,
}

var patternRemoveCmd = &cobra.Command{
	Use:   "remove <pattern-type>",
	Short: "Remove a pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternRemove,
}

var patternListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all patterns",
	RunE:  runPatternList,
}

func init() {
	patternAddCmd.Flags().StringVar(&patternRegex, "regex", "", "regex the pattern matches (required)")
	patternAddCmd.Flags().StringVar(&patternDescription, "description", "", "human-readable description (required)")
	patternAddCmd.Flags().StringVar(&patternSeverity, "severity", "medium", "severity: critical, high, medium or low")
	patternAddCmd.Flags().StringVar(&patternCategory, "category", "runtime", "category (runtime, database, network, ...)")
	patternAddCmd.Flags().StringVar(&patternSubcategory, "subcategory", "", "optional subcategory")
	patternAddCmd.Flags().StringArrayVar(&patternCauses, "cause", nil, "common cause (repeatable)")
	patternAddCmd.Flags().StringArrayVar(&patternExamples, "example", nil, "example message (repeatable)")
	_ = patternAddCmd.MarkFlagRequired("regex")
	_ = patternAddCmd.MarkFlagRequired("description")

	patternCmd.AddCommand(patternAddCmd)
	patternCmd.AddCommand(patternGetCmd)
	patternCmd.AddCommand(patternSearchCmd)
	patternCmd.AddCommand(patternRemoveCmd)
	patternCmd.AddCommand(patternListCmd)
}

func runPatternAdd(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	p := &knowledge.ErrorPattern{
		PatternType:  args[0],
		Regex:        patternRegex,
		Description:  patternDescription,
		Severity:     knowledge.Severity(patternSeverity),
		Category:     patternCategory,
		Subcategory:  patternSubcategory,
		CommonCauses: patternCauses,
		Examples:     patternExamples,
	}
	if err := app.engine.AddPattern(cmd.Context(), p); err != nil {
		return err
	}
	fmt.Printf("pattern %s added\n", p.PatternType)
	return nil
}

func runPatternGet(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	p := app.kb.GetPattern(args[0])
	if p == nil {
		return fmt.Errorf("pattern %s not found", args[0])
	}
	out := struct {
		Pattern   *knowledge.ErrorPattern   `json:"pattern"`
		Solutions []knowledge.ErrorSolution `json:"solutions"`
	}{p, app.kb.GetPatternSolutions(args[0])}
	return printJSON(out)
}

func runPatternSearch(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	return printJSON(app.kb.SearchPatterns(args[0]))
}

func runPatternRemove(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	if !app.engine.RemovePattern(cmd.Context(), args[0]) {
		return fmt.Errorf("pattern %s not found", args[0])
	}
	fmt.Printf("pattern %s removed\n", args[0])
	return nil
}

func runPatternList(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	return printJSON(app.kb.AllPatterns())
}
