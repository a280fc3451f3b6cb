package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClarifyCommand(app *App) *cobra.Command {
	var (
		message string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "clarify [session] (-m text | -f file)",
		Short: "Answer the agent's questions",
		Long: `Send a clarification for the current stage.

At an approval gate the stage re-runs with the clarification. At
"Awaiting PM Clarification" the answer is recorded; run approve to resume.

Example:
  reqflow clarify -m "Only registered customers can reset passwords."
  reqflow clarify -f answers.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := message
			switch {
			case message != "" && file != "":
				return app.fail(fmt.Errorf("pass either -m or -f, not both"))
			case file != "":
				var err error
				if text, err = readSource(app, file); err != nil {
					return app.fail(err)
				}
			}

			id, err := app.resolveSession(args)
			if err != nil {
				return app.fail(err)
			}
			exec, err := app.Executor(cmd.Context())
			if err != nil {
				return app.fail(err)
			}

			sess, err := exec.Clarify(cmd.Context(), id, text)
			if err != nil {
				return app.fail(err)
			}
			app.Printer.Pause(sess)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "clarification text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the clarification from a file (\"-\" for stdin)")
	return cmd
}
