package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reqflow/internal/agent"
	"reqflow/internal/config"
	"reqflow/internal/issues"
	"reqflow/internal/policy"
	"reqflow/internal/stage"
	"reqflow/internal/status"
)

func newTestPrinter() (*Printer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewPrinterWithWriter(buf), buf
}

func testSession() *status.Session {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &status.Session{
		ID:        "0b6c1b9e-1111-4a7e-9c55-000000000001",
		Status:    status.StatusAwaitingRequirementsApproval,
		Document:  "Users should be able to reset their password.\nMore text.",
		CreatedAt: at,
		UpdatedAt: at,
		PreScreen: []issues.Issue{{
			Category: issues.AmbiguousInput,
			Detail:   "missing persona",
			Source:   issues.SourcePreScreen,
		}},
		Stages: map[stage.Stage]*status.Artifact{
			stage.Requirements: {
				Stage:    stage.Requirements,
				Agent:    stage.RequirementsAgent,
				Output:   "## Extracted and Normalized Requirements\n- R1",
				Attempts: 1,
				Issues: []issues.Issue{{
					Category: issues.ConflictingRequirement,
					Detail:   "R1 conflicts with R2",
					Source:   issues.SourceAgent,
				}},
			},
		},
	}
}

func TestPrinter_Basics(t *testing.T) {
	p, buf := newTestPrinter()

	p.Text("plain")
	p.Success("saved")
	p.Error(errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "plain")
	assert.Contains(t, out, "✓ saved")
	assert.Contains(t, out, "Error: boom")
}

func TestPrinter_StageStart(t *testing.T) {
	p, buf := newTestPrinter()

	p.StageStart(stage.UserStories, stage.UserStoryAgent, 1)
	assert.Contains(t, buf.String(), "Running user-stories with user_story_agent")
	assert.NotContains(t, buf.String(), "attempt")

	buf.Reset()
	p.StageStart(stage.UserStories, stage.UserStoryAgent, 3)
	assert.Contains(t, buf.String(), "(attempt 3)")
}

func TestPrinter_StageOutputPlain(t *testing.T) {
	p, buf := newTestPrinter()
	p.StageOutput("User Stories Output", "### US-1\nTitle: \"As an admin...\"")

	out := buf.String()
	assert.Contains(t, out, "User Stories Output")
	assert.Contains(t, out, "### US-1\nTitle: \"As an admin...\"")
}

func TestPrinter_StageOutputMarkdown(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithConfig(buf, config.OutputConfig{
		Markdown: config.MarkdownConfig{Enabled: true, Style: "notty", WordWrap: 80},
	})
	p.StageOutput("Test Cases Output", "## US-1\n\n**TC-1** happy path")

	out := buf.String()
	assert.Contains(t, out, "Test Cases Output")
	assert.Contains(t, out, "TC-1")
	assert.Contains(t, out, "happy path")
}

func TestPrinter_StateBannerAndNextSteps(t *testing.T) {
	tests := []struct {
		status status.Status
		label  string
		hint   string
	}{
		{status.StatusAwaitingRequirementsApproval, "Awaiting PM Approval", "reqflow clarify"},
		{status.StatusAwaitingStoryApproval, "Awaiting PM Approval", "reqflow approve"},
		{status.StatusAwaitingClarification, "Awaiting PM Clarification", "resume once clarified"},
		{status.StatusAwaitingStoryGeneration, "Awaiting Story Generation", "retry the pending stage"},
		{status.StatusDone, "Complete", ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			p, buf := newTestPrinter()
			p.StateBanner(tt.status)
			p.NextSteps(tt.status)
			assert.Contains(t, buf.String(), "Current state: "+tt.label)
			if tt.hint != "" {
				assert.Contains(t, buf.String(), tt.hint)
			} else {
				assert.NotContains(t, buf.String(), "reqflow")
			}
		})
	}
}

func TestPrinter_Issues(t *testing.T) {
	p, buf := newTestPrinter()
	p.Issues("Open issues", nil)
	assert.Empty(t, buf.String())

	p.Issues("Open issues", []issues.Issue{{Category: issues.MissingNegativePath, Detail: "US-2 has no negative path"}})
	out := buf.String()
	assert.Contains(t, out, "Open issues (1)")
	assert.Contains(t, out, issues.MissingNegativePath.Label())
	assert.Contains(t, out, "US-2 has no negative path")
}

func TestPrinter_Report(t *testing.T) {
	p, buf := newTestPrinter()
	p.Report(policy.Report{Stage: stage.UserStories})
	assert.Contains(t, buf.String(), "user-stories output conforms")

	buf.Reset()
	p.Report(policy.Report{
		Stage:      stage.UserStories,
		Violations: []policy.Violation{{Rule: policy.RuleStoryTitle, Detail: "US-1 title is not in the expected form"}},
	})
	assert.Contains(t, buf.String(), "1 conformance problem(s)")
	assert.Contains(t, buf.String(), "US-1 title is not in the expected form")
}

func TestPrinter_Pause(t *testing.T) {
	p, buf := newTestPrinter()
	p.Pause(testSession())

	out := buf.String()
	assert.Contains(t, out, "Requirements Analysis Output")
	assert.Contains(t, out, "## Extracted and Normalized Requirements")
	assert.Contains(t, out, "Pre-screen findings (1)")
	assert.Contains(t, out, "R1 conflicts with R2")
	assert.Contains(t, out, "Current state: Awaiting PM Approval")
}

func TestPrinter_Session(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithConfig(buf, config.OutputConfig{TruncateLines: 1})
	p.Session(testSession())

	out := buf.String()
	assert.Contains(t, out, "Session 0b6c1b9e")
	assert.Contains(t, out, "Requirements Analysis Output")
	assert.Contains(t, out, "pending approval")
	assert.Contains(t, out, "1 more lines")
	assert.Contains(t, out, "User Stories Output: not started")
	assert.Contains(t, out, "Test Cases Output: not started")
}

func TestPrinter_SessionList(t *testing.T) {
	p, buf := newTestPrinter()
	p.SessionList(nil, "")
	assert.Contains(t, buf.String(), "No sessions.")

	buf.Reset()
	a := testSession()
	b := testSession()
	b.ID = "second"
	b.Status = status.StatusDone
	p.SessionList([]*status.Session{a, b}, "second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "* second")
	assert.Contains(t, lines[1], "Complete")
	assert.Contains(t, lines[0], "Users should be able to reset their password.")
}

func TestPrinter_Agents(t *testing.T) {
	p, buf := newTestPrinter()
	p.Agents([]agent.Definition{
		{Name: "requirements_agent", Model: "gemini-2.5-flash-lite", Source: agent.SourceConfig},
		{Name: "root_agent", Model: "gemini-2.5-flash", SubAgents: []string{"a", "b", "c"}, Source: agent.SourceOverride},
	}, "root_agent")

	out := buf.String()
	assert.Contains(t, out, "root_agent (root)")
	assert.Contains(t, out, "a → b → c")
	assert.Contains(t, out, "source: override")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"no limit", "a\nb\nc", 0, "a\nb\nc"},
		{"under limit", "a\nb\n", 5, "a\nb"},
		{"over limit", "a\nb\nc", 2, "a\nb\n… 1 more lines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.text, tt.n))
		})
	}
}
