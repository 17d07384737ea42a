package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/errdex/internal/knowledge"
)

var solutionCmd = &cobra.Command{
	Use:   "solution",
	Short: "Manage solutions",
}

var (
	solutionID            string
	solutionDescription   string
	solutionSteps         []string
	solutionPrerequisites []string
	solutionCriteria      []string
)

var solutionAddCmd = &cobra.Command{
	Use:   "add <pattern-type>",
	Short: "Add a solution for a pattern",
	Long: `Add a solution to the knowledge base. The solution is linked to the
given pattern type; an ID is generated when --id is omitted.

Examples:
  errdex solution add type_mismatch \
    --description 'Convert operands to a common type' \
    --step 'identify the mismatched operand' \
    --step 'cast it explicitly'`,
	Args: cobra.ExactArgs(1),
	RunE: runSolutionAdd,
}

var solutionGetCmd = &cobra.Command{
	Use:   "get <solution-id>",
	Short: "Show a solution",
	Args:  cobra.ExactArgs(1),
	RunE:  runSolutionGet,
}

func init() {
	solutionAddCmd.Flags().StringVar(&solutionID, "id", "", "solution ID (generated when empty)")
	solutionAddCmd.Flags().StringVar(&solutionDescription, "description", "", "what the solution does (required)")
	solutionAddCmd.Flags().StringArrayVar(&solutionSteps, "step", nil, "remediation step in order (repeatable)")
	solutionAddCmd.Flags().StringArrayVar(&solutionPrerequisites, "prerequisite", nil, "prerequisite (repeatable)")
	solutionAddCmd.Flags().StringArrayVar(&solutionCriteria, "success-criterion", nil, "criterion verifying the fix (repeatable)")
	_ = solutionAddCmd.MarkFlagRequired("description")

	solutionCmd.AddCommand(solutionAddCmd)
	solutionCmd.AddCommand(solutionGetCmd)
}

func runSolutionAdd(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	s := &knowledge.ErrorSolution{
		SolutionID:      solutionID,
		PatternType:     args[0],
		Description:     solutionDescription,
		Steps:           solutionSteps,
		Prerequisites:   solutionPrerequisites,
		SuccessCriteria: solutionCriteria,
	}
	if err := app.engine.AddSolution(cmd.Context(), s); err != nil {
		return err
	}
	fmt.Printf("solution %s added for pattern %s\n", s.SolutionID, s.PatternType)
	return nil
}

func runSolutionGet(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	s := app.kb.GetSolution(args[0])
	if s == nil {
		return fmt.Errorf("solution %s not found", args[0])
	}
	return printJSON(s)
}
