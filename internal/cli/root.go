// Package cli provides the command-line interface for reqflow.
//
// Every command acts on one session. Commands that take an optional
// [session] argument fall back to the active session, which is the one most
// recently started. Gates never time out: a session waits at its gate until
// the next approve or clarify command, or forever on stdin under run.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"reqflow/internal/config"
	"reqflow/internal/logging"
	"reqflow/internal/router"
)

// ExecuteResult is the outcome of one CLI invocation.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// NewRootCommand creates the root command with all subcommands attached.
func NewRootCommand(app *App) *cobra.Command {
	var (
		configPath string
		verbose    bool
		closeLog   func() error
	)

	rootCmd := &cobra.Command{
		Use:   "reqflow",
		Short: "Turn business documents into requirements, user stories and test cases",
		Long: `reqflow runs three agents in a fixed order:

  1. requirements  - extract and normalize requirements, list issues and questions
  2. user-stories  - persona-scoped stories with acceptance criteria
  3. test-cases    - happy and negative path functional test cases

Each stage pauses for explicit approval before the next one starts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Config == nil {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				app.Config = cfg
			}
			if app.Logger == nil {
				logger, closeFn, err := logging.Setup(app.Config.Logging, verbose)
				if err != nil {
					return err
				}
				app.Logger = logger
				closeLog = closeFn
			}
			return app.init(cmd.OutOrStdout(), cmd.InOrStdin())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if closeLog != nil {
				return closeLog()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: user config dir or ./reqflow.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newStartCommand(app),
		newApproveCommand(app),
		newClarifyCommand(app),
		newStatusCommand(app),
		newShowCommand(app),
		newSessionsCommand(app),
		newAgentsCommand(app),
		newCheckCommand(app),
		newRunCommand(app),
	)

	return rootCmd
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		return loader.LoadFromFile(path)
	}
	return loader.Load()
}

// Run executes the CLI with args and returns the exit code instead of
// exiting.
func Run(ctx context.Context, app *App, args []string) ExecuteResult {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{ExitCode: 0}
}

// Execute runs the CLI with the process arguments and exits. Ctrl-C cancels
// an in-flight stage and leaves the session where it was.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	result := Run(ctx, &App{}, os.Args[1:])
	stop()
	os.Exit(result.ExitCode)
}

// fail prints err and converts it to an [ExitError]. Completion is reported
// as success.
func (a *App) fail(err error) error {
	if errors.Is(err, router.ErrWorkflowComplete) {
		a.Printer.Success("Workflow is complete; all three outputs are final.")
		return nil
	}
	a.Printer.Error(err)
	return NewExitError(1)
}
