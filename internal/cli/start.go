package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newStartCommand(app *App) *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "start [file|-]",
		Short: "Submit a business document and run requirements analysis",
		Long: `Submit a business document and run the requirements stage.

The document is read from a file, from stdin when the argument is "-", or
from --text. The new session becomes the active session and pauses at
"Awaiting PM Approval".

Example:
  reqflow start docs/password-reset.md
  cat brief.txt | reqflow start -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(app, args, text)
			if err != nil {
				return app.fail(err)
			}

			exec, err := app.Executor(cmd.Context())
			if err != nil {
				return app.fail(err)
			}

			sess, err := exec.Start(cmd.Context(), doc)
			if sess != nil {
				app.Printer.Text("Session " + sess.ID)
			}
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

	cmd.Flags().StringVarP(&text, "text", "t", "", "document text (instead of a file)")
	return cmd
}

// readDocument returns the document from --text, a file, or stdin for "-".
func readDocument(app *App, args []string, text string) (string, error) {
	switch {
	case text != "" && len(args) > 0:
		return "", fmt.Errorf("pass either a file or --text, not both")
	case text != "":
		return text, nil
	case len(args) == 0:
		return "", fmt.Errorf("no document given: pass a file, \"-\" for stdin, or --text")
	}
	return readSource(app, args[0])
}

// readSource reads a file, or app.In for "-".
func readSource(app *App, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(app.In)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
