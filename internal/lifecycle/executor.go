// Package lifecycle advances a session through the gated stages one human
// signal at a time.
//
// The [Executor] owns the orchestration rules: stages run strictly in order,
// each stage reads only the approved output of its predecessor, and nothing
// advances without an explicit approval. Status changes are decided by the
// [router.Router] state machine; the executor runs the stage the new status
// calls for and records the result.
//
// Key concepts:
//   - [Executor.Start] submits a document and pauses after requirements analysis
//   - [Executor.Approve] passes the current gate and runs the next stage
//   - [Executor.Clarify] re-runs the stage at a gate with the reviewer's answer,
//     or records it at the clarification interrupt
//   - Progress can be tracked via [ProgressCallback]
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reqflow/internal/issues"
	"reqflow/internal/policy"
	"reqflow/internal/router"
	"reqflow/internal/stage"
	"reqflow/internal/status"
	"reqflow/internal/workflow"
)

var (
	// ErrEmptyDocument is returned by Start for blank input.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrEmptyClarification is returned by Clarify for a blank message.
	ErrEmptyClarification = errors.New("clarification message is empty")

	// ErrOpenIssues is returned by Approve in strict mode when the stage
	// output still lists issues.
	ErrOpenIssues = errors.New("stage output has open issues")
)

// StageRunner runs one stage agent. The [workflow.Runner] type implements
// this interface.
type StageRunner interface {
	RunStage(ctx context.Context, st stage.Stage, conversation []status.Turn) (*workflow.Result, error)
	AgentFor(st stage.Stage) (string, error)
}

// SessionStore persists sessions. The [status.Store] type implements this
// interface.
type SessionStore interface {
	Create(document string) (*status.Session, error)
	Load(id string) (*status.Session, error)
	Save(sess *status.Session) error
}

// ProgressCallback is invoked before each stage run begins.
//
// The callback receives the stage, the agent serving it and the 1-based
// attempt number for that stage.
type ProgressCallback func(st stage.Stage, agentName string, attempt int)

// Options controls approval behavior.
type Options struct {
	// BlockOnOpenIssues refuses approval while the gated stage lists issues.
	BlockOnOpenIssues bool
}

// Executor orchestrates sessions through the stages.
//
// Use [NewExecutor] to create an instance. By default the executor uses the
// stock router and the [issues.ResponseDetector]; call [SetRouter] and
// [SetDetector] to replace them.
type Executor struct {
	runner           StageRunner
	store            SessionStore
	router           *router.Router
	detector         issues.Detector
	options          Options
	progressCallback ProgressCallback
	logger           *slog.Logger
	now              func() time.Time
}

// NewExecutor creates a new Executor with the required dependencies.
func NewExecutor(runner StageRunner, store SessionStore) *Executor {
	return &Executor{
		runner:   runner,
		store:    store,
		router:   router.NewRouter(),
		detector: issues.ResponseDetector{},
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// SetRouter configures the state machine. A nil router is ignored.
func (e *Executor) SetRouter(r *router.Router) {
	if r != nil {
		e.router = r
	}
}

// SetDetector configures how stage output is scanned for issues.
func (e *Executor) SetDetector(d issues.Detector) {
	if d != nil {
		e.detector = d
	}
}

// SetOptions configures approval behavior.
func (e *Executor) SetOptions(o Options) {
	e.options = o
}

// SetLogger replaces the logger.
func (e *Executor) SetLogger(l *slog.Logger) {
	if l != nil {
		e.logger = l
	}
}

// SetProgressCallback configures an optional callback invoked before each
// stage run.
func (e *Executor) SetProgressCallback(cb ProgressCallback) {
	e.progressCallback = cb
}

// Start creates a session for document, runs the pre-screen and the
// requirements stage, and returns the session paused at
// awaiting-requirements-approval.
//
// The session is persisted before the requirements stage runs. When the stage
// fails, the returned session is still valid and sits at
// awaiting-requirements; [Executor.Approve] retries it.
func (e *Executor) Start(ctx context.Context, document string) (*status.Session, error) {
	if strings.TrimSpace(document) == "" {
		return nil, ErrEmptyDocument
	}

	sess, err := e.store.Create(document)
	if err != nil {
		return nil, err
	}
	sess.PreScreen = issues.PreScreen(document)

	next, err := e.router.Advance(sess, router.SignalSubmit)
	if err != nil {
		return nil, err
	}
	sess.Transition(status.EventSubmitted, stage.Requirements, next, "", e.now().UTC())

	agentName, err := e.runner.AgentFor(stage.Requirements)
	if err != nil {
		return nil, err
	}
	art := sess.EnsureArtifact(stage.Requirements, agentName)
	art.Conversation = []status.Turn{{Role: status.RoleUser, Text: document}}

	if err := e.store.Save(sess); err != nil {
		return nil, err
	}

	if err := e.runStage(ctx, sess, stage.Requirements); err != nil {
		return sess, err
	}
	return sess, nil
}

// Approve applies the reviewer's approval to the session.
//
// At an approval gate the gated stage is marked approved and the next stage
// runs. At the clarification interrupt the session resumes the flagged stage,
// which requires a clarification since the flag. At a generation status,
// where a previous run failed, the pending stage is retried.
func (e *Executor) Approve(ctx context.Context, id, note string) (*status.Session, error) {
	sess, err := e.store.Load(id)
	if err != nil {
		return nil, err
	}

	switch sess.Status {
	case status.StatusAwaitingRequirements, status.StatusAwaitingStoryGeneration, status.StatusAwaitingTestGeneration:
		st, err := e.router.StageFor(sess.Status)
		if err != nil {
			return nil, err
		}
		e.logger.Info("retrying stage", "session", sess.ID, "stage", string(st))
		return sess, e.runStage(ctx, sess, st)
	}

	next, err := e.router.Advance(sess, router.SignalApprove)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()

	if sess.Status == status.StatusAwaitingClarification {
		flagged, _ := sess.CurrentStage()
		sess.Transition(status.EventApproved, flagged, next, note, now)
		sess.ResumeStatus = ""
		if err := e.store.Save(sess); err != nil {
			return nil, err
		}
		return sess, e.runStage(ctx, sess, flagged)
	}

	gated, _ := sess.CurrentStage()
	art := sess.Artifact(gated)
	if art == nil || art.Output == "" {
		return nil, fmt.Errorf("%s has no output to approve", gated)
	}
	if len(art.Issues) > 0 && e.options.BlockOnOpenIssues {
		return nil, fmt.Errorf("%w: %d unresolved in %s", ErrOpenIssues, len(art.Issues), gated)
	}

	art.Approved = true
	art.ApprovedAt = &now
	art.ApprovedWithOpenIssues = len(art.Issues) > 0
	sess.Transition(status.EventApproved, gated, next, note, now)

	nextStage, err := e.router.StageFor(next)
	if err != nil {
		return nil, err
	}
	if err := e.prepareStage(sess, nextStage); err != nil {
		return nil, err
	}
	if err := e.store.Save(sess); err != nil {
		return nil, err
	}
	return sess, e.runStage(ctx, sess, nextStage)
}

// Clarify records the reviewer's answer.
//
// At an approval gate the gated stage re-runs with the clarification appended
// to its conversation. A failed re-run leaves the persisted session as it
// was. At the clarification interrupt the answer is recorded and the session
// waits for approval.
func (e *Executor) Clarify(ctx context.Context, id, text string) (*status.Session, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyClarification
	}

	sess, err := e.store.Load(id)
	if err != nil {
		return nil, err
	}

	next, err := e.router.Advance(sess, router.SignalClarify)
	if err != nil {
		return nil, err
	}
	st, ok := sess.CurrentStage()
	if !ok {
		return nil, fmt.Errorf("%w: no stage to clarify at %s", router.ErrInvalidTransition, sess.Status)
	}
	art := sess.Artifact(st)
	if art == nil {
		return nil, fmt.Errorf("%s has not run yet", st)
	}

	interrupted := sess.Status == status.StatusAwaitingClarification
	appendUserTurn(art, text)
	sess.Transition(status.EventClarified, st, next, text, e.now().UTC())

	if interrupted {
		if err := e.store.Save(sess); err != nil {
			return nil, err
		}
		return sess, nil
	}
	if err := e.runStage(ctx, sess, st); err != nil {
		return nil, err
	}
	return sess, nil
}

// Status returns the session with the given id.
func (e *Executor) Status(id string) (*status.Session, error) {
	return e.store.Load(id)
}

// Steps returns the stages the session has yet to complete.
func (e *Executor) Steps(sess *status.Session) ([]router.Step, error) {
	return e.router.Remaining(sess.Status, sess.ResumeStatus)
}

// prepareStage starts a fresh conversation for st from the approved output
// of the stage before it.
func (e *Executor) prepareStage(sess *status.Session, st stage.Stage) error {
	prev, ok := st.Previous()
	if !ok {
		return fmt.Errorf("%s has no input stage", st)
	}
	input, ok := sess.ApprovedOutput(prev)
	if !ok {
		return fmt.Errorf("%s cannot run before %s is approved", st, prev)
	}

	agentName, err := e.runner.AgentFor(st)
	if err != nil {
		return err
	}
	art := sess.EnsureArtifact(st, agentName)
	art.Agent = agentName
	art.Output = ""
	art.Issues = nil
	art.Violations = nil
	art.Approved = false
	art.ApprovedAt = nil
	art.ApprovedWithOpenIssues = false
	art.Conversation = []status.Turn{{Role: status.RoleUser, Text: input}}
	return nil
}

// runStage runs st on its artifact's conversation, records the output and
// applies the resulting signal. The session is saved only on success, so a
// failure leaves the persisted status unchanged.
func (e *Executor) runStage(ctx context.Context, sess *status.Session, st stage.Stage) error {
	art := sess.Artifact(st)
	if art == nil || len(art.Conversation) == 0 {
		return fmt.Errorf("%s has no input", st)
	}

	if e.progressCallback != nil {
		e.progressCallback(st, art.Agent, art.Attempts+1)
	}

	res, err := e.runner.RunStage(ctx, st, art.Conversation)
	if err != nil {
		return err
	}

	found, err := e.detector.Detect(st, res.Output)
	if err != nil {
		return fmt.Errorf("issue detection failed: %w", err)
	}
	var input string
	if prev, ok := st.Previous(); ok {
		input, _ = sess.ApprovedOutput(prev)
	}
	report, err := policy.CheckWithInput(st, res.Output, input)
	if err != nil {
		return err
	}

	sig := router.SignalOutput
	if st != stage.Requirements && issues.NeedsClarification(found) {
		sig = router.SignalFlagged
	}
	next, err := e.router.Advance(sess, sig)
	if err != nil {
		return err
	}

	art.Agent = res.Agent
	art.Output = res.Output
	art.Attempts++
	art.Issues = found
	art.Violations = report.Violations
	art.Conversation = append(art.Conversation, status.Turn{Role: status.RoleModel, Text: res.Output})

	now := e.now().UTC()
	if sig == router.SignalFlagged {
		sess.ResumeStatus = router.GenerationStatus(st)
		sess.Transition(status.EventClarificationRequested, st, next, summarize(found), now)
	} else {
		sess.Transition(status.EventStageOutput, st, next, "", now)
	}

	e.logger.Info("stage recorded",
		"session", sess.ID,
		"stage", string(st),
		"status", string(next),
		"issues", len(found),
		"violations", len(report.Violations),
	)
	return e.store.Save(sess)
}

// appendUserTurn adds text as a user turn, merging it into a trailing user
// turn so the conversation keeps alternating roles.
func appendUserTurn(art *status.Artifact, text string) {
	n := len(art.Conversation)
	if n > 0 && art.Conversation[n-1].Role == status.RoleUser {
		art.Conversation[n-1].Text += "\n\n" + text
		return
	}
	art.Conversation = append(art.Conversation, status.Turn{Role: status.RoleUser, Text: text})
}

func summarize(found []issues.Issue) string {
	parts := make([]string, 0, len(found))
	for _, i := range found {
		if i.Source == issues.SourcePreScreen {
			continue
		}
		parts = append(parts, string(i.Category))
	}
	return strings.Join(parts, ", ")
}
