// Package llm defines the text-generation interface the stage agents run on
// and its backends.
//
// Two backends are provided: [GeminiModel] calls the Gemini API through the
// genai SDK, and [ClaudeModel] drives the Claude CLI through a
// [claude.Executor]. [MockModel] returns scripted responses for tests.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reqflow/internal/claude"
	"reqflow/internal/config"
)

var (
	// ErrMissingAPIKey is returned when the Gemini backend has no API key.
	ErrMissingAPIKey = errors.New("gemini API key is not configured (set GEMINI_API_KEY or GOOGLE_API_KEY)")

	// ErrEmptyResponse is returned when a backend produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrUnknownProvider is returned by [New] for an unsupported backend.provider.
	ErrUnknownProvider = errors.New("unknown backend provider")
)

// Role identifies the author of a [Message].
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn of a stage conversation.
type Message struct {
	Role Role
	Text string
}

// Request is a single generation call.
type Request struct {
	// Model is the backend model identifier.
	Model string

	// SystemInstruction is the expanded agent instruction.
	SystemInstruction string

	// Messages is the conversation so far, oldest first. The last message
	// is the one being answered.
	Messages []Message

	// Temperature is passed through when non-nil.
	Temperature *float64

	// MaxOutputTokens caps the response when positive.
	MaxOutputTokens int
}

// Response is the result of a generation call.
type Response struct {
	Text         string
	PromptTokens int
	OutputTokens int
}

// Model generates text for a [Request].
type Model interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// New returns the backend selected by cfg.Backend.Provider. The executor is
// only used by the claude backend; a nil executor there builds a
// [claude.DefaultExecutor] from cfg.Claude.
func New(ctx context.Context, cfg *config.Config, executor claude.Executor) (Model, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Backend.Provider))
	switch provider {
	case "", "gemini":
		return NewGeminiModel(ctx, cfg.Gemini.APIKey)
	case "claude":
		if executor == nil {
			executor = claude.NewExecutor(claude.ExecutorConfig{
				BinaryPath:   cfg.Claude.BinaryPath,
				OutputFormat: cfg.Claude.OutputFormat,
			})
		}
		return NewClaudeModel(executor, cfg.Claude.Model), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Backend.Provider)
	}
}

// RequestOptions applies the backend sampling settings from cfg to req.
func RequestOptions(cfg config.BackendConfig, req *Request) {
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		req.Temperature = &t
	}
	if cfg.MaxOutputTokens > 0 {
		req.MaxOutputTokens = cfg.MaxOutputTokens
	}
}
