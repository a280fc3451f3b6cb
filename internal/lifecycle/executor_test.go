package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqflow/internal/agent"
	"reqflow/internal/config"
	"reqflow/internal/issues"
	"reqflow/internal/llm"
	"reqflow/internal/router"
	"reqflow/internal/stage"
	"reqflow/internal/status"
	"reqflow/internal/workflow"
)

const document = "Users should be able to reset their password.\nAdmins can deactivate accounts."

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "policy", "testdata", name))
	require.NoError(t, err)
	return string(data)
}

type harness struct {
	exec  *Executor
	model *llm.MockModel
	store *status.Store
}

func newHarness(t *testing.T, responses ...string) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AgentsDir = ""

	registry, err := agent.NewRegistry(cfg)
	require.NoError(t, err)

	model := &llm.MockModel{Responses: responses}
	runner := workflow.NewRunner(model, registry, nil, cfg)
	store := status.NewStore(t.TempDir())

	exec := NewExecutor(runner, store)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	exec.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return &harness{exec: exec, model: model, store: store}
}

func lastMessage(req *llm.Request) string {
	return req.Messages[len(req.Messages)-1].Text
}

func TestExecutor_FullRun(t *testing.T) {
	reqs := readTestdata(t, "requirements_good.md")
	stories := readTestdata(t, "stories_good.md")
	tests := readTestdata(t, "testcases_good.md")
	h := newHarness(t, reqs, stories, tests)
	ctx := context.Background()

	sess, err := h.exec.Start(ctx, document)
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingRequirementsApproval, sess.Status)
	assert.Equal(t, "Awaiting PM Approval", sess.Status.Label())
	require.NotEmpty(t, sess.PreScreen)
	assert.Equal(t, issues.SourcePreScreen, sess.PreScreen[0].Source)

	reqArt := sess.Artifact(stage.Requirements)
	require.NotNil(t, reqArt)
	assert.Equal(t, reqs, reqArt.Output)
	assert.Equal(t, 1, reqArt.Attempts)
	assert.NotEmpty(t, reqArt.Issues)
	assert.Empty(t, reqArt.Violations)
	assert.Equal(t, document, lastMessage(h.model.Requests[0]))

	sess, err = h.exec.Approve(ctx, sess.ID, "looks right")
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingStoryApproval, sess.Status)
	assert.True(t, sess.Artifact(stage.Requirements).Approved)
	assert.True(t, sess.Artifact(stage.Requirements).ApprovedWithOpenIssues)

	storyReq := h.model.Requests[1]
	require.Len(t, storyReq.Messages, 1)
	assert.Equal(t, reqs, storyReq.Messages[0].Text)

	sess, err = h.exec.Approve(ctx, sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, status.StatusDone, sess.Status)

	testReq := h.model.Requests[2]
	require.Len(t, testReq.Messages, 1)
	assert.Equal(t, stories, testReq.Messages[0].Text)
	assert.NotContains(t, testReq.Messages[0].Text, document)
	assert.Equal(t, tests, sess.Artifact(stage.TestCases).Output)

	loaded, err := h.store.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, status.StatusDone, loaded.Status)

	var types []status.EventType
	for _, ev := range loaded.Events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []status.EventType{
		status.EventSubmitted,
		status.EventStageOutput,
		status.EventApproved,
		status.EventStageOutput,
		status.EventApproved,
		status.EventStageOutput,
	}, types)
	assert.Equal(t, "looks right", loaded.Events[2].Note)

	_, err = h.exec.Approve(ctx, sess.ID, "")
	assert.ErrorIs(t, err, router.ErrWorkflowComplete)
}

func TestExecutor_Start_EmptyDocument(t *testing.T) {
	h := newHarness(t, "x")
	_, err := h.exec.Start(context.Background(), "  \n ")
	assert.ErrorIs(t, err, ErrEmptyDocument)
	assert.Empty(t, h.model.Requests)
}

func TestExecutor_StrictApproval(t *testing.T) {
	h := newHarness(t, readTestdata(t, "requirements_good.md"))
	h.exec.SetOptions(Options{BlockOnOpenIssues: true})
	ctx := context.Background()

	sess, err := h.exec.Start(ctx, document)
	require.NoError(t, err)

	_, err = h.exec.Approve(ctx, sess.ID, "")
	assert.ErrorIs(t, err, ErrOpenIssues)

	loaded, err := h.store.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingRequirementsApproval, loaded.Status)
	assert.False(t, loaded.Artifact(stage.Requirements).Approved)
	assert.Len(t, h.model.Requests, 1)
}

func TestExecutor_StrictApproval_PlainIssuesHeading(t *testing.T) {
	analysis := "Extracted and Normalized Requirements:\n- R1: Reset password.\n\nIdentified Issues:\n- Missing persona: who resets passwords?\n\nPlease approve or clarify."
	h := newHarness(t, analysis)
	h.exec.SetOptions(Options{BlockOnOpenIssues: true})
	ctx := context.Background()

	sess, err := h.exec.Start(ctx, document)
	require.NoError(t, err)
	require.Len(t, sess.Artifact(stage.Requirements).Issues, 1)

	_, err = h.exec.Approve(ctx, sess.ID, "")
	assert.ErrorIs(t, err, ErrOpenIssues)
}

func TestExecutor_ClarifyAtGate(t *testing.T) {
	h := newHarness(t, "first analysis", "revised analysis")
	ctx := context.Background()

	sess, err := h.exec.Start(ctx, document)
	require.NoError(t, err)

	sess, err = h.exec.Clarify(ctx, sess.ID, "Only registered customers reset passwords.")
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingRequirementsApproval, sess.Status)

	art := sess.Artifact(stage.Requirements)
	assert.Equal(t, "revised analysis", art.Output)
	assert.Equal(t, 2, art.Attempts)
	require.Len(t, art.Conversation, 4)
	assert.Equal(t, status.RoleUser, art.Conversation[2].Role)

	req := h.model.LastRequest()
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "first analysis", req.Messages[1].Text)
	assert.Equal(t, "Only registered customers reset passwords.", lastMessage(req))
}

func TestExecutor_ClarifyValidation(t *testing.T) {
	h := newHarness(t, "analysis")
	ctx := context.Background()

	_, err := h.exec.Clarify(ctx, "anything", "   ")
	assert.ErrorIs(t, err, ErrEmptyClarification)

	_, err = h.exec.Clarify(ctx, "missing-id", "text")
	assert.ErrorIs(t, err, status.ErrSessionNotFound)
}

func TestExecutor_FlaggedStories(t *testing.T) {
	flagged := "### US-1\nCLARIFICATION NEEDED: Which persona deactivates accounts?"
	stories := readTestdata(t, "stories_good.md")
	h := newHarness(t, readTestdata(t, "requirements_good.md"), flagged, stories)
	ctx := context.Background()

	sess, err := h.exec.Start(ctx, document)
	require.NoError(t, err)

	sess, err = h.exec.Approve(ctx, sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingClarification, sess.Status)
	assert.Equal(t, status.StatusAwaitingStoryGeneration, sess.ResumeStatus)
	assert.Equal(t, "Awaiting PM Clarification", sess.Status.Label())

	art := sess.Artifact(stage.UserStories)
	require.Len(t, art.Issues, 1)
	assert.Equal(t, issues.SourceClarificationRequest, art.Issues[0].Source)

	_, err = h.exec.Approve(ctx, sess.ID, "")
	assert.ErrorIs(t, err, router.ErrClarificationRequired)

	sess, err = h.exec.Clarify(ctx, sess.ID, "Admins deactivate accounts.")
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingClarification, sess.Status)
	assert.Len(t, h.model.Requests, 2)

	sess, err = h.exec.Clarify(ctx, sess.ID, "Support agents only read history.")
	require.NoError(t, err)
	assert.Len(t, h.model.Requests, 2)

	sess, err = h.exec.Approve(ctx, sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingStoryApproval, sess.Status)
	assert.Empty(t, sess.ResumeStatus)

	req := h.model.LastRequest()
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "Admins deactivate accounts.\n\nSupport agents only read history.", lastMessage(req))
	assert.Equal(t, stories, sess.Artifact(stage.UserStories).Output)
	assert.Equal(t, 2, sess.Artifact(stage.UserStories).Attempts)
}

func TestExecutor_RequirementsNeverFlag(t *testing.T) {
	h := newHarness(t, "CLARIFICATION NEEDED: Who are the users?")
	sess, err := h.exec.Start(context.Background(), document)
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingRequirementsApproval, sess.Status)
	assert.Len(t, sess.Artifact(stage.Requirements).Issues, 1)
}

func TestExecutor_BackendFailureKeepsStatus(t *testing.T) {
	h := newHarness(t, "analysis", "analysis")
	h.model.Errs = []error{errors.New("deadline exceeded")}
	ctx := context.Background()

	sess, err := h.exec.Start(ctx, document)
	require.Error(t, err)
	require.NotNil(t, sess)

	loaded, err := h.store.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingRequirements, loaded.Status)
	assert.Equal(t, 0, loaded.Artifact(stage.Requirements).Attempts)

	sess, err = h.exec.Approve(ctx, sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingRequirementsApproval, sess.Status)
	assert.Equal(t, "analysis", sess.Artifact(stage.Requirements).Output)
}

func TestExecutor_ClarifyFailureLeavesSession(t *testing.T) {
	h := newHarness(t, "analysis")
	ctx := context.Background()

	sess, err := h.exec.Start(ctx, document)
	require.NoError(t, err)

	h.model.Errs = []error{nil, errors.New("unavailable")}
	_, err = h.exec.Clarify(ctx, sess.ID, "some answer")
	require.Error(t, err)

	loaded, err := h.store.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, status.StatusAwaitingRequirementsApproval, loaded.Status)
	assert.Len(t, loaded.Artifact(stage.Requirements).Conversation, 2)
	assert.Len(t, loaded.Events, 2)
}

func TestExecutor_InvalidSignals(t *testing.T) {
	h := newHarness(t, "analysis")
	h.model.Errs = []error{errors.New("down")}
	ctx := context.Background()

	sess, err := h.exec.Start(ctx, document)
	require.Error(t, err)

	_, err = h.exec.Clarify(ctx, sess.ID, "answer")
	var te *router.TransitionError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, router.ErrInvalidTransition)
	assert.Equal(t, status.StatusAwaitingRequirements, te.From)
}

func TestExecutor_DetectorError(t *testing.T) {
	h := newHarness(t, "analysis")
	h.exec.SetDetector(&issues.MockDetector{Err: errors.New("bad detector")})

	_, err := h.exec.Start(context.Background(), document)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue detection failed")
}

func TestExecutor_ProgressCallback(t *testing.T) {
	h := newHarness(t, "a", "b")
	type call struct {
		st      stage.Stage
		agent   string
		attempt int
	}
	var calls []call
	h.exec.SetProgressCallback(func(st stage.Stage, agentName string, attempt int) {
		calls = append(calls, call{st, agentName, attempt})
	})
	ctx := context.Background()

	sess, err := h.exec.Start(ctx, document)
	require.NoError(t, err)
	_, err = h.exec.Clarify(ctx, sess.ID, "more detail")
	require.NoError(t, err)

	assert.Equal(t, []call{
		{stage.Requirements, stage.RequirementsAgent, 1},
		{stage.Requirements, stage.RequirementsAgent, 2},
	}, calls)
}

func TestExecutor_Steps(t *testing.T) {
	h := newHarness(t, "analysis")
	sess, err := h.exec.Start(context.Background(), document)
	require.NoError(t, err)

	steps, err := h.exec.Steps(sess)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, stage.Requirements, steps[0].Stage)

	got, err := h.exec.Status(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}
