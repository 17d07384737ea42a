package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/errdex/internal/analyzer"
)

var (
	diagnoseStackFile string
	diagnoseCodeFile  string
	diagnoseCodeLine  int
	diagnoseEnv       map[string]string
)

var matchCmd = &cobra.Command{
	Use:   "match <error-message>",
	Short: "Match an error message against stored patterns",
	Long: `Match runs only the exact regex patterns against the message and
prints every hit with its captures and context agreement.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <error-message>",
	Short: "Run the full diagnosis pipeline on an error",
	Long: `Diagnose analyzes the message (plus optional stack trace, code and
environment), matches stored patterns and falls back to semantic search when
no confident exact match exists.

Examples:
  errdex diagnose "TypeError: unsupported operand type(s) for +"
  errdex diagnose "ConnectionRefusedError: [Errno 111]" --stack trace.txt
  cat trace.txt | errdex diagnose "KeyError: 'user_id'" --stack -`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagnose,
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseStackFile, "stack", "", "file with the stack trace ('-' for stdin)")
	diagnoseCmd.Flags().StringVar(&diagnoseCodeFile, "code", "", "file with the surrounding source code")
	diagnoseCmd.Flags().IntVar(&diagnoseCodeLine, "code-line", 0, "1-based line the error occurred on")
	diagnoseCmd.Flags().StringToStringVar(&diagnoseEnv, "env", nil, "environment fact as key=value (repeatable)")
}

func runMatch(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	d, err := app.engine.Diagnose(cmd.Context(), args[0], nil)
	if err != nil {
		return err
	}
	return printJSON(d.Matches)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	req, err := buildRequest()
	if err != nil {
		return err
	}

	d, err := app.engine.Diagnose(cmd.Context(), args[0], req)
	if err != nil {
		return err
	}
	return printJSON(d)
}

// buildRequest assembles the optional analysis inputs from flags.
func buildRequest() (*analyzer.Request, error) {
	req := &analyzer.Request{CodeLine: diagnoseCodeLine}

	if diagnoseStackFile != "" {
		var content []byte
		var err error
		if diagnoseStackFile == "-" {
			content, err = io.ReadAll(os.Stdin)
		} else {
			content, err = os.ReadFile(diagnoseStackFile)
		}
		if err != nil {
			return nil, fmt.Errorf("reading stack trace: %w", err)
		}
		req.StackTrace = string(content)
	}

	if diagnoseCodeFile != "" {
		content, err := os.ReadFile(diagnoseCodeFile)
		if err != nil {
			return nil, fmt.Errorf("reading code file: %w", err)
		}
		req.Code = string(content)
	}

	if len(diagnoseEnv) > 0 {
		env := make(map[string]interface{}, len(diagnoseEnv))
		for k, v := range diagnoseEnv {
			env[k] = v
		}
		req.Environment = env
	}

	if req.StackTrace == "" && req.Code == "" && req.Environment == nil {
		return nil, nil
	}
	return req, nil
}
