package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"reqflow/internal/issues"
	"reqflow/internal/policy"
	"reqflow/internal/stage"
)

func newCheckCommand(app *App) *cobra.Command {
	var (
		stageName string
		inputFile string
	)

	cmd := &cobra.Command{
		Use:   "check --stage <stage> <file|->",
		Short: "Check a stage transcript against the output rules",
		Long: `Check a stage output for conformance: required sections for
requirements, story titles and acceptance criteria for user stories, and
story traceability and priority tags for test cases. Issues the output
reports are listed as well.

For test cases, --input names the approved user stories so every case can be
traced to a known story.

Exits 1 when any rule is broken.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stageName == "" {
				return app.fail(fmt.Errorf("--stage is required"))
			}
			st, err := stage.Parse(stageName)
			if err != nil {
				return app.fail(err)
			}
			text, err := readSource(app, args[0])
			if err != nil {
				return app.fail(err)
			}
			var input string
			if inputFile != "" {
				if input, err = readSource(app, inputFile); err != nil {
					return app.fail(err)
				}
			}

			report, err := policy.CheckWithInput(st, text, input)
			if err != nil {
				return app.fail(err)
			}
			app.Printer.Issues("Reported issues", issues.ParseResponse(text))
			app.Printer.Report(report)
			if !report.OK() {
				return NewExitError(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&stageName, "stage", "s", "", "stage the transcript belongs to")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "approved input of the stage (stories for test-cases)")
	return cmd
}
