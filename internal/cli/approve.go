package cli

import (
	"github.com/spf13/cobra"
)

func newApproveCommand(app *App) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "approve [session]",
		Short: "Approve the current gate and run the next stage",
		Long: `Approve the output waiting at the current gate and run the next stage.

At "Awaiting PM Clarification" approve resumes the flagged stage once a
clarification has been given. When a stage failed to run, approve retries it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.resolveSession(args)
			if err != nil {
				return app.fail(err)
			}
			exec, err := app.Executor(cmd.Context())
			if err != nil {
				return app.fail(err)
			}

			sess, err := exec.Approve(cmd.Context(), id, note)
			if err != nil {
				if sess != nil {
					app.Printer.StateBanner(sess.Status)
					app.Printer.NextSteps(sess.Status)
				}
				return app.fail(err)
			}
			app.Printer.Pause(sess)
			return nil
		},
	}

	cmd.Flags().StringVarP(&note, "note", "n", "", "note recorded with the approval")
	return cmd
}
