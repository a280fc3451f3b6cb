package cli

import (
	"github.com/spf13/cobra"
)

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status [session]",
		Short: "Show the current state and a summary of every stage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.resolveSession(args)
			if err != nil {
				return app.fail(err)
			}
			sess, err := app.Store.Load(id)
			if err != nil {
				return app.fail(err)
			}
			app.Printer.Session(sess)
			app.Printer.NextSteps(sess.Status)
			return nil
		},
	}
}
