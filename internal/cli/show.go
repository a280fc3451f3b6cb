package cli

import (
	"github.com/spf13/cobra"

	"reqflow/internal/stage"
)

func newShowCommand(app *App) *cobra.Command {
	var stageName string

	cmd := &cobra.Command{
		Use:   "show [session]",
		Short: "Print the labelled stage outputs",
		Long: `Print the full output of every stage that has run, or of one stage
with --stage (requirements, user-stories, test-cases).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stages := stage.Sequence()
			if stageName != "" {
				st, err := stage.Parse(stageName)
				if err != nil {
					return app.fail(err)
				}
				stages = []stage.Stage{st}
			}

			id, err := app.resolveSession(args)
			if err != nil {
				return app.fail(err)
			}
			sess, err := app.Store.Load(id)
			if err != nil {
				return app.fail(err)
			}

			shown := 0
			for _, st := range stages {
				art := sess.Artifact(st)
				if art == nil || art.Output == "" {
					continue
				}
				app.Printer.StageOutput(st.OutputLabel(), art.Output)
				app.Printer.Issues("Open issues", art.Issues)
				shown++
			}
			if shown == 0 {
				app.Printer.Text("No output yet.")
			}
			app.Printer.StateBanner(sess.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&stageName, "stage", "s", "", "only this stage")
	return cmd
}
