// Package workflow runs a single stage agent against a conversation.
//
// The [Runner] resolves the agent bound to a stage, expands its instruction,
// appends the response protocol and sends the conversation to the configured
// [llm.Model]. The returned text is the agent's output, unmodified.
//
// Key types:
//   - [Runner] executes one stage turn and reports timing and token usage
//   - [Result] is the outcome of one turn
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reqflow/internal/agent"
	"reqflow/internal/config"
	"reqflow/internal/llm"
	"reqflow/internal/router"
	"reqflow/internal/stage"
	"reqflow/internal/status"
)

// ErrEmptyConversation is returned when a stage is run without input.
var ErrEmptyConversation = errors.New("stage conversation is empty")

// Result is the outcome of one stage turn.
type Result struct {
	Stage        stage.Stage
	Agent        string
	Model        string
	Output       string
	Duration     time.Duration
	PromptTokens int
	OutputTokens int
}

// Runner executes stage agents.
type Runner struct {
	model    llm.Model
	registry *agent.Registry
	router   *router.Router
	cfg      *config.Config
	logger   *slog.Logger
}

// NewRunner creates a [Runner]. A nil router binds the stock stage agents.
func NewRunner(model llm.Model, registry *agent.Registry, rt *router.Router, cfg *config.Config) *Runner {
	if rt == nil {
		rt = router.NewRouter()
	}
	return &Runner{
		model:    model,
		registry: registry,
		router:   rt,
		cfg:      cfg,
		logger:   slog.Default(),
	}
}

// SetLogger replaces the logger used for per-turn diagnostics.
func (r *Runner) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// AgentFor returns the agent bound to st.
func (r *Runner) AgentFor(st stage.Stage) (string, error) {
	return r.router.AgentFor(st)
}

// RunStage sends conversation to the agent bound to st and returns its
// response. The conversation must end with a user turn.
func (r *Runner) RunStage(ctx context.Context, st stage.Stage, conversation []status.Turn) (*Result, error) {
	if len(conversation) == 0 {
		return nil, ErrEmptyConversation
	}

	agentName, err := r.router.AgentFor(st)
	if err != nil {
		return nil, err
	}
	def, err := r.registry.Get(agentName)
	if err != nil {
		return nil, err
	}

	req, err := r.BuildRequest(def, conversation)
	if err != nil {
		return nil, err
	}

	log := r.logger.With("stage", string(st), "agent", agentName, "model", def.Model)
	log.Debug("running stage", "turns", len(conversation))

	start := time.Now()
	resp, err := r.model.Generate(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error("stage failed", "duration", elapsed, "error", err)
		return nil, fmt.Errorf("%s failed: %w", agentName, err)
	}

	log.Info("stage complete",
		"duration", elapsed,
		"prompt_tokens", resp.PromptTokens,
		"output_tokens", resp.OutputTokens,
	)

	return &Result{
		Stage:        st,
		Agent:        agentName,
		Model:        def.Model,
		Output:       resp.Text,
		Duration:     elapsed,
		PromptTokens: resp.PromptTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

// BuildRequest assembles the model request for def and conversation.
func (r *Runner) BuildRequest(def agent.Definition, conversation []status.Turn) (*llm.Request, error) {
	if conversation[len(conversation)-1].Role != status.RoleUser {
		return nil, fmt.Errorf("stage conversation must end with a user turn")
	}

	instruction, err := r.registry.Instruction(def.Name, config.PromptData{PersonaLabel: r.cfg.PersonaLabel})
	if err != nil {
		return nil, err
	}
	protocol, err := config.ExpandInstruction(config.ResponseProtocol(), config.PromptData{PersonaLabel: r.cfg.PersonaLabel})
	if err != nil {
		return nil, err
	}

	req := &llm.Request{
		Model:             def.Model,
		SystemInstruction: strings.TrimSpace(instruction) + "\n\n" + strings.TrimSpace(protocol),
		Messages:          make([]llm.Message, 0, len(conversation)),
	}
	for _, turn := range conversation {
		role := llm.RoleUser
		if turn.Role == status.RoleModel {
			role = llm.RoleModel
		}
		req.Messages = append(req.Messages, llm.Message{Role: role, Text: turn.Text})
	}
	llm.RequestOptions(r.cfg.Backend, req)
	return req, nil
}
