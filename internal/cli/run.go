package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reqflow/internal/lifecycle"
	"reqflow/internal/status"
)

func newRunCommand(app *App) *cobra.Command {
	var resume string

	cmd := &cobra.Command{
		Use:   "run [file|-]",
		Short: "Run the whole workflow interactively",
		Long: `Start a session and walk it through every gate on the terminal.

At each pause, answer on stdin:
  y, yes, approve   approve and continue
  q, quit           stop; the session stays where it is
  anything else     sent as a clarification

There is no timeout; run waits for input at every gate. Use --resume to
continue an existing session instead of starting a new one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exec, err := app.Executor(ctx)
			if err != nil {
				return app.fail(err)
			}

			var sess *status.Session
			if cmd.Flags().Changed("resume") {
				id, err := app.Store.Resolve(resume)
				if err != nil {
					return app.fail(err)
				}
				if sess, err = exec.Status(id); err != nil {
					return app.fail(err)
				}
				app.Printer.Pause(sess)
			} else {
				if len(args) == 0 {
					return app.fail(fmt.Errorf("no document given: pass a file or \"-\" for stdin"))
				}
				if args[0] == "-" {
					return app.fail(fmt.Errorf("stdin is reserved for answers under run; pass a file"))
				}
				doc, err := readSource(app, args[0])
				if err != nil {
					return app.fail(err)
				}
				started, err := exec.Start(ctx, doc)
				if err != nil {
					return app.fail(err)
				}
				sess = started
				app.Printer.Text("Session " + sess.ID)
				app.Printer.Pause(sess)
			}

			return app.interact(ctx, exec, sess)
		},
	}

	cmd.Flags().StringVar(&resume, "resume", "", "resume a session (empty for the active session)")
	cmd.Flags().Lookup("resume").NoOptDefVal = " "
	return cmd
}

// interact reads one answer per gate until the session is done or the
// reviewer quits. Failed stages are reported and the loop continues so the
// reviewer can retry.
func (a *App) interact(ctx context.Context, exec *lifecycle.Executor, sess *status.Session) error {
	scanner := bufio.NewScanner(a.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sess.Status != status.StatusDone {
		a.Printer.Text("> approve (y), clarify (type your answer) or quit (q):")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return a.fail(err)
			}
			a.Printer.Text("Input closed; session " + sess.ID + " is waiting at " + sess.Status.Label() + ".")
			return nil
		}
		answer := strings.TrimSpace(scanner.Text())

		var next *status.Session
		var err error
		switch strings.ToLower(answer) {
		case "":
			continue
		case "q", "quit", "exit":
			a.Printer.Text("Session " + sess.ID + " is waiting at " + sess.Status.Label() + ".")
			return nil
		case "y", "yes", "approve":
			next, err = exec.Approve(ctx, sess.ID, "")
		default:
			next, err = exec.Clarify(ctx, sess.ID, answer)
		}

		if err != nil {
			if ctx.Err() != nil {
				return a.fail(ctx.Err())
			}
			a.Printer.Error(err)
			if sess, err = exec.Status(sess.ID); err != nil {
				return a.fail(err)
			}
			a.Printer.StateBanner(sess.Status)
			continue
		}
		sess = next
		a.Printer.Pause(sess)
	}

	a.Printer.Success("Workflow is complete; all three outputs are final.")
	return nil
}
