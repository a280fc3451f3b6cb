package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Request is one generation turn.
type Request struct {
	// Prompt is written to the CLI's stdin.
	Prompt string

	// SystemPrompt replaces the CLI's default system prompt when set.
	SystemPrompt string

	// Model is passed with --model when set.
	Model string
}

// EventHandler receives each parsed event as it arrives.
type EventHandler func(Event)

// Executor runs Claude CLI turns.
type Executor interface {
	// ExecuteWithResult runs req, calls handler for every event and returns
	// the process exit code. A non-nil error means the process could not be
	// run or was cancelled; a non-zero exit code with a nil error means the
	// CLI itself reported failure.
	ExecuteWithResult(ctx context.Context, req Request, handler EventHandler) (int, error)
}

// ExecutorConfig contains the CLI invocation settings.
type ExecutorConfig struct {
	// BinaryPath is the path to the Claude CLI binary. Default: "claude".
	BinaryPath string

	// OutputFormat is passed with --output-format. Default: "stream-json".
	OutputFormat string
}

// DefaultExecutor implements [Executor] by spawning the Claude CLI.
type DefaultExecutor struct {
	config ExecutorConfig
	parser Parser
}

// NewExecutor creates a [DefaultExecutor].
func NewExecutor(config ExecutorConfig) *DefaultExecutor {
	if config.BinaryPath == "" {
		config.BinaryPath = "claude"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = "stream-json"
	}
	return &DefaultExecutor{config: config, parser: NewParser()}
}

// Args returns the command-line arguments for req.
func (e *DefaultExecutor) Args(req Request) []string {
	args := []string{"-p", "--output-format", e.config.OutputFormat, "--verbose"}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	return args
}

// ExecuteWithResult spawns the CLI, streams its events to handler and waits
// for it to exit.
func (e *DefaultExecutor) ExecuteWithResult(ctx context.Context, req Request, handler EventHandler) (int, error) {
	cmd := exec.CommandContext(ctx, e.config.BinaryPath, e.Args(req)...)
	cmd.Stdin = strings.NewReader(req.Prompt)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start claude: %w", err)
	}

	var readErr error
	for event := range e.parser.Parse(stdout) {
		if event.Err != nil {
			readErr = event.Err
		}
		if handler != nil {
			handler(event)
		}
	}
	// Unread output would block the child on a full pipe.
	io.Copy(io.Discard, stdout)

	err = cmd.Wait()
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	if readErr != nil {
		return -1, fmt.Errorf("failed to read claude output: %w", readErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("claude failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return 0, nil
}

// MockExecutor implements [Executor] for testing.
//
// Configure the mock by setting its fields before calling ExecuteWithResult:
//
//	mock := &MockExecutor{
//	    Events: []Event{{Type: EventTypeAssistant, Text: "Hello"}},
//	}
type MockExecutor struct {
	// Events are replayed to the handler in order.
	Events []Event

	// ExitCode is returned after the events are replayed.
	ExitCode int

	// Err is returned instead of replaying events.
	Err error

	// Requests records all ExecuteWithResult invocations.
	Requests []Request
}

// ExecuteWithResult replays the configured events.
func (m *MockExecutor) ExecuteWithResult(ctx context.Context, req Request, handler EventHandler) (int, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return -1, m.Err
	}
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	for _, ev := range m.Events {
		if handler != nil {
			handler(ev)
		}
	}
	return m.ExitCode, nil
}
