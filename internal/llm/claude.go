package llm

import (
	"context"
	"fmt"
	"strings"

	"reqflow/internal/claude"
)

// ClaudeModel implements [Model] on the Claude CLI.
//
// The CLI takes a single prompt per invocation, so earlier turns of the
// conversation are rendered into the prompt as a transcript.
type ClaudeModel struct {
	executor claude.Executor

	// model overrides Request.Model when set. Gemini model names mean
	// nothing to the Claude CLI.
	model string
}

// NewClaudeModel wraps executor. A non-empty model replaces the agent model
// on every request.
func NewClaudeModel(executor claude.Executor, model string) *ClaudeModel {
	return &ClaudeModel{executor: executor, model: model}
}

// Generate runs one CLI turn.
func (m *ClaudeModel) Generate(ctx context.Context, req *Request) (*Response, error) {
	creq := claude.Request{
		Prompt:       RenderTranscript(req.Messages),
		SystemPrompt: req.SystemInstruction,
		Model:        m.model,
	}

	var tr claude.Transcript
	exitCode, err := m.executor.ExecuteWithResult(ctx, creq, tr.Add)
	if err != nil {
		return nil, fmt.Errorf("claude execution failed: %w", err)
	}
	if tr.Err != nil {
		return nil, fmt.Errorf("claude output could not be read: %w", tr.Err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("claude exited with status %d", exitCode)
	}
	if tr.IsError {
		return nil, fmt.Errorf("claude reported an error: %s", strings.TrimSpace(tr.Output()))
	}

	text := tr.Output()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{
		Text:         text,
		PromptTokens: tr.InputTokens,
		OutputTokens: tr.OutputTokens,
	}, nil
}

// RenderTranscript flattens a conversation into a single prompt. A lone user
// message is returned as is.
func RenderTranscript(messages []Message) string {
	if len(messages) == 1 && messages[0].Role == RoleUser {
		return messages[0].Text
	}

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case RoleModel:
			b.WriteString("### Your previous response\n\n")
		default:
			b.WriteString("### User\n\n")
		}
		b.WriteString(msg.Text)
	}
	return b.String()
}
