package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"reqflow/internal/config"
	"reqflow/internal/llm"
	"reqflow/internal/output"
)

// testApp bundles an [App] wired to a scripted model and a temp state dir.
type testApp struct {
	app   *App
	model *llm.MockModel
	out   *bytes.Buffer
	dir   string
}

// newTestApp creates an App whose model answers with responses in order.
func newTestApp(t *testing.T, responses ...string) *testApp {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AgentsDir = ""
	cfg.State.Dir = filepath.Join(dir, "state")

	model := &llm.MockModel{Responses: responses}
	out := &bytes.Buffer{}

	app := &App{
		Config:  cfg,
		Printer: output.NewPrinterWithWriter(out),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		In:      strings.NewReader(""),
		NewModel: func(ctx context.Context, cfg *config.Config) (llm.Model, error) {
			return model, nil
		},
	}
	return &testApp{app: app, model: model, out: out, dir: dir}
}

// run executes the CLI once and returns the result. Output accumulates in
// ta.out across calls.
func (ta *testApp) run(args ...string) ExecuteResult {
	return Run(context.Background(), ta.app, args)
}

// writeFile writes content under the test directory and returns its path.
func (ta *testApp) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(ta.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// readTestdata loads a sample stage output shared with the policy tests.
func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "policy", "testdata", name))
	require.NoError(t, err)
	return string(data)
}
