package cli

import (
	"github.com/spf13/cobra"
)

func newAgentsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List agent configurations and the root delegation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := app.Config.RootAgent
			app.Printer.Agents(app.Registry.List(), root)
			if err := app.Registry.Validate(); err != nil {
				return app.fail(err)
			}
			return nil
		},
	}
}
