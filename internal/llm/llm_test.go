package llm

import (
	"bufio"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqflow/internal/claude"
	"reqflow/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		apiKey   string
		wantErr  error
		wantType any
	}{
		{name: "gemini without key", provider: "gemini", wantErr: ErrMissingAPIKey},
		{name: "default provider without key", provider: "", wantErr: ErrMissingAPIKey},
		{name: "claude", provider: "claude", wantType: &ClaudeModel{}},
		{name: "claude mixed case", provider: " Claude ", wantType: &ClaudeModel{}},
		{name: "unknown", provider: "openai", wantErr: ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Backend.Provider = tt.provider
			cfg.Gemini.APIKey = tt.apiKey

			m, err := New(context.Background(), cfg, &claude.MockExecutor{})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, m)
		})
	}
}

func TestNew_ClaudeWithoutExecutor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend.Provider = "claude"

	m, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	cm, ok := m.(*ClaudeModel)
	require.True(t, ok)
	assert.IsType(t, &claude.DefaultExecutor{}, cm.executor)
}

func TestRequestOptions(t *testing.T) {
	req := &Request{}
	RequestOptions(config.BackendConfig{}, req)
	assert.Nil(t, req.Temperature)
	assert.Zero(t, req.MaxOutputTokens)

	RequestOptions(config.BackendConfig{Temperature: 0.2, MaxOutputTokens: 2048}, req)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.2, *req.Temperature, 1e-9)
	assert.Equal(t, 2048, req.MaxOutputTokens)
}

func TestBuildGeminiRequest(t *testing.T) {
	temp := 0.4
	req := &Request{
		Model:             "gemini-2.5-flash-lite",
		SystemInstruction: "You are a business analyst.",
		Messages: []Message{
			{Role: RoleUser, Text: "doc"},
			{Role: RoleModel, Text: "analysis"},
			{Role: RoleUser, Text: "clarification"},
		},
		Temperature:     &temp,
		MaxOutputTokens: 1000,
	}

	contents, cfg := buildGeminiRequest(req)

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "clarification", contents[2].Parts[0].Text)

	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "You are a business analyst.", cfg.SystemInstruction.Parts[0].Text)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.4, float64(*cfg.Temperature), 1e-6)
	assert.Equal(t, int32(1000), cfg.MaxOutputTokens)
}

func TestBuildGeminiRequest_Minimal(t *testing.T) {
	contents, cfg := buildGeminiRequest(&Request{Messages: []Message{{Role: RoleUser, Text: "x"}}})
	require.Len(t, contents, 1)
	assert.Nil(t, cfg.SystemInstruction)
	assert.Nil(t, cfg.Temperature)
	assert.Zero(t, cfg.MaxOutputTokens)
}

func TestRenderTranscript(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{
			name:     "single user message",
			messages: []Message{{Role: RoleUser, Text: "the document"}},
			want:     "the document",
		},
		{
			name: "conversation",
			messages: []Message{
				{Role: RoleUser, Text: "doc"},
				{Role: RoleModel, Text: "draft"},
				{Role: RoleUser, Text: "fix it"},
			},
			want: "### User\n\ndoc\n\n### Your previous response\n\ndraft\n\n### User\n\nfix it",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTranscript(tt.messages))
		})
	}
}

func TestClaudeModel_Generate(t *testing.T) {
	exec := &claude.MockExecutor{
		Events: []claude.Event{
			{Type: claude.EventTypeAssistant, Text: "partial"},
			{Type: claude.EventTypeResult, SessionComplete: true, Result: "## Final", InputTokens: 10, OutputTokens: 5},
		},
	}
	m := NewClaudeModel(exec, "sonnet")

	resp, err := m.Generate(context.Background(), &Request{
		Model:             "gemini-2.5-flash-lite",
		SystemInstruction: "instr",
		Messages:          []Message{{Role: RoleUser, Text: "doc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "## Final", resp.Text)
	assert.Equal(t, 10, resp.PromptTokens)
	assert.Equal(t, 5, resp.OutputTokens)

	require.Len(t, exec.Requests, 1)
	assert.Equal(t, "doc", exec.Requests[0].Prompt)
	assert.Equal(t, "instr", exec.Requests[0].SystemPrompt)
	assert.Equal(t, "sonnet", exec.Requests[0].Model)
}

func TestClaudeModel_Errors(t *testing.T) {
	tests := []struct {
		name    string
		exec    *claude.MockExecutor
		wantErr error
		errText string
	}{
		{
			name:    "executor error",
			exec:    &claude.MockExecutor{Err: errors.New("spawn failed")},
			errText: "spawn failed",
		},
		{
			name:    "non-zero exit",
			exec:    &claude.MockExecutor{ExitCode: 1},
			errText: "exited with status 1",
		},
		{
			name: "unreadable stream",
			exec: &claude.MockExecutor{Events: []claude.Event{
				{Type: claude.EventTypeAssistant, Text: "partial"},
				{Type: claude.EventTypeError, Err: bufio.ErrTooLong},
			}},
			wantErr: bufio.ErrTooLong,
		},
		{
			name: "error result",
			exec: &claude.MockExecutor{Events: []claude.Event{
				{Type: claude.EventTypeResult, SessionComplete: true, IsError: true, Result: "rate limited"},
			}},
			errText: "rate limited",
		},
		{
			name: "empty output",
			exec: &claude.MockExecutor{Events: []claude.Event{
				{Type: claude.EventTypeResult, SessionComplete: true},
			}},
			wantErr: ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewClaudeModel(tt.exec, "")
			_, err := m.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Text: "x"}}})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText)
			}
		})
	}
}

func TestMockModel(t *testing.T) {
	m := &MockModel{
		Responses: []string{"first", "second"},
		Errs:      []error{nil, nil, errors.New("third fails")},
	}
	ctx := context.Background()

	r, err := m.Generate(ctx, &Request{Model: "a"})
	require.NoError(t, err)
	assert.Equal(t, "first", r.Text)

	r, err = m.Generate(ctx, &Request{Model: "b"})
	require.NoError(t, err)
	assert.Equal(t, "second", r.Text)

	_, err = m.Generate(ctx, &Request{Model: "c"})
	assert.EqualError(t, err, "third fails")

	r, err = m.Generate(ctx, &Request{Model: "d"})
	require.NoError(t, err)
	assert.Equal(t, "second", r.Text)

	assert.Len(t, m.Requests, 4)
	assert.Equal(t, "d", m.LastRequest().Model)
}

func TestMockModel_Empty(t *testing.T) {
	m := &MockModel{}
	assert.Nil(t, m.LastRequest())
	_, err := m.Generate(context.Background(), &Request{})
	assert.Error(t, err)
}
