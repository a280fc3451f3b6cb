package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"reqflow/internal/agent"
	"reqflow/internal/config"
	"reqflow/internal/lifecycle"
	"reqflow/internal/llm"
	"reqflow/internal/manifest"
	"reqflow/internal/output"
	"reqflow/internal/router"
	"reqflow/internal/stage"
	"reqflow/internal/status"
	"reqflow/internal/workflow"
)

// ModelFactory builds the inference backend. It is called at most once per
// process, and only by commands that run a stage.
type ModelFactory func(ctx context.Context, cfg *config.Config) (llm.Model, error)

// App holds the dependencies shared by all commands.
//
// Fields left nil are filled from Config before a command runs, so tests can
// inject any subset. The router and model are built on first use by
// [App.Executor].
type App struct {
	Config   *config.Config
	Store    *status.Store
	Registry *agent.Registry
	Router   *router.Router
	Printer  *output.Printer
	Logger   *slog.Logger
	In       io.Reader
	NewModel ModelFactory

	executor *lifecycle.Executor
}

func defaultModelFactory(ctx context.Context, cfg *config.Config) (llm.Model, error) {
	return llm.New(ctx, cfg, nil)
}

// init fills in missing dependencies.
func (a *App) init(out io.Writer, in io.Reader) error {
	if a.Config == nil {
		return fmt.Errorf("configuration not loaded")
	}
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	if a.Store == nil {
		a.Store = status.NewStore(a.Config.State.Dir)
	}
	if a.Registry == nil {
		reg, err := agent.NewRegistry(a.Config)
		if err != nil {
			return err
		}
		a.Registry = reg
	}
	if a.Printer == nil {
		a.Printer = output.NewPrinterWithConfig(out, a.Config.Output)
	}
	if a.In == nil {
		a.In = in
	}
	if a.NewModel == nil {
		a.NewModel = defaultModelFactory
	}
	return nil
}

// buildRouter binds stages to agents from the manifest when one is
// configured, otherwise from the root agent's sub-agents.
func buildRouter(cfg *config.Config, reg *agent.Registry) (*router.Router, error) {
	if cfg.StagesManifest == "" {
		agents, err := reg.StageAgents()
		if err != nil {
			return nil, err
		}
		return router.NewRouterWithAgents(agents), nil
	}

	m, err := manifest.ReadFromFile(cfg.StagesManifest)
	if err != nil {
		return nil, err
	}
	rt, err := router.NewRouterFromManifest(m)
	if err != nil {
		return nil, err
	}
	for _, st := range stage.Sequence() {
		name, _ := rt.AgentFor(st)
		if _, err := reg.Get(name); err != nil {
			return nil, fmt.Errorf("stages manifest: %w", err)
		}
	}
	return rt, nil
}

// Executor returns the lifecycle executor, building the model on first use.
func (a *App) Executor(ctx context.Context) (*lifecycle.Executor, error) {
	if a.executor != nil {
		return a.executor, nil
	}

	if a.Router == nil {
		rt, err := buildRouter(a.Config, a.Registry)
		if err != nil {
			return nil, err
		}
		a.Router = rt
	}

	model, err := a.NewModel(ctx, a.Config)
	if err != nil {
		return nil, err
	}

	runner := workflow.NewRunner(model, a.Registry, a.Router, a.Config)
	runner.SetLogger(a.Logger)

	exec := lifecycle.NewExecutor(runner, a.Store)
	exec.SetRouter(a.Router)
	exec.SetLogger(a.Logger)
	exec.SetOptions(lifecycle.Options{BlockOnOpenIssues: a.Config.Gates.BlockOnOpenIssues})
	exec.SetProgressCallback(func(st stage.Stage, agentName string, attempt int) {
		a.Printer.StageStart(st, agentName, attempt)
	})

	a.executor = exec
	return exec, nil
}

// resolveSession maps an optional id argument to a full session id.
func (a *App) resolveSession(args []string) (string, error) {
	var id string
	if len(args) > 0 {
		id = args[0]
	}
	return a.Store.Resolve(id)
}
