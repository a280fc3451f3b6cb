package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"reqflow/internal/status"
)

func newSessionsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := app.Store.List()
			if err != nil {
				return app.fail(err)
			}
			active, err := app.Store.Active()
			if err != nil && !errors.Is(err, status.ErrNoActiveSession) {
				return app.fail(err)
			}
			app.Printer.SessionList(sessions, active)
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "use <session>",
			Short: "Make a session the active session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := app.Store.Resolve(args[0])
				if err != nil {
					return app.fail(err)
				}
				if err := app.Store.SetActive(id); err != nil {
					return app.fail(err)
				}
				app.Printer.Success("Active session: " + id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <session>",
			Short: "Delete a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := app.Store.Resolve(args[0])
				if err != nil {
					return app.fail(err)
				}
				if err := app.Store.Delete(id); err != nil {
					return app.fail(err)
				}
				app.Printer.Success("Deleted session " + id)
				return nil
			},
		},
	)
	return cmd
}
