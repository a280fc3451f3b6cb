// Package router encodes the gated workflow as a finite-state machine.
//
// Every status change a session can make is an edge in a fixed table keyed by
// (status, signal). Human signals (approve, clarify) and stage results
// (output, flagged) are the only inputs; there is no default edge, so an
// unexpected signal is an error rather than a silent advance. Approval out of
// the clarification interrupt is additionally guarded: it needs a recorded
// clarification and a resume status.
//
// The router also binds each stage to the agent that serves it, either from
// the stock agent names ([NewRouter]) or from a stage manifest
// ([NewRouterFromManifest]).
//
// Key types:
//   - [Router] - transition table plus stage-to-agent binding
//   - [Signal] - the input that drives a transition
//   - [Guards] - session facts consulted by guarded edges
//   - [Step] - one stage of the fixed sequence
package router

import (
	"errors"
	"fmt"

	"reqflow/internal/manifest"
	"reqflow/internal/stage"
	"reqflow/internal/status"
)

// Sentinel errors for workflow routing.
var (
	// ErrWorkflowComplete indicates the session is done and accepts no more
	// signals. Callers should report completion rather than a failure.
	ErrWorkflowComplete = errors.New("workflow is complete, no further stages")

	// ErrUnknownStatus indicates the status value is not recognized, which
	// usually means a hand-edited session file.
	ErrUnknownStatus = errors.New("unknown status value")

	// ErrInvalidTransition indicates the signal is not accepted in the
	// current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrClarificationRequired indicates approval was attempted at the
	// clarification interrupt before any clarification was given.
	ErrClarificationRequired = errors.New("clarification required before approval")

	// ErrStageOrder indicates a manifest that reorders, skips or merges stages.
	ErrStageOrder = errors.New("stage order must be requirements, user-stories, test-cases")
)

// Signal is an input to the state machine.
type Signal string

const (
	// SignalSubmit records a document for analysis.
	SignalSubmit Signal = "submit"

	// SignalApprove is the reviewer's explicit approval.
	SignalApprove Signal = "approve"

	// SignalClarify is a clarification message from the reviewer.
	SignalClarify Signal = "clarify"

	// SignalOutput reports a stage produced output with nothing flagged.
	SignalOutput Signal = "output"

	// SignalFlagged reports a stage produced output that asks for clarification.
	SignalFlagged Signal = "flagged"
)

// TransitionError reports a rejected signal.
type TransitionError struct {
	From   status.Status
	Signal Signal
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s at %s: %v", e.Signal, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Guards carries the session facts guarded edges depend on.
type Guards struct {
	// ResumeStatus is where the clarification interrupt returns to.
	ResumeStatus status.Status

	// Clarified is true when a clarification was recorded after the most
	// recent clarification request.
	Clarified bool
}

type edge struct {
	from   status.Status
	signal Signal
}

// resume marks an edge whose target is Guards.ResumeStatus.
const resume status.Status = "<resume>"

// transitions is the complete edge table.
var transitions = map[edge]status.Status{
	{status.StatusAwaitingRequirements, SignalSubmit}: status.StatusAwaitingRequirements,
	{status.StatusAwaitingRequirements, SignalOutput}: status.StatusAwaitingRequirementsApproval,

	{status.StatusAwaitingRequirementsApproval, SignalClarify}: status.StatusAwaitingRequirementsApproval,
	{status.StatusAwaitingRequirementsApproval, SignalOutput}:  status.StatusAwaitingRequirementsApproval,
	{status.StatusAwaitingRequirementsApproval, SignalApprove}: status.StatusAwaitingStoryGeneration,

	{status.StatusAwaitingStoryGeneration, SignalOutput}:  status.StatusAwaitingStoryApproval,
	{status.StatusAwaitingStoryGeneration, SignalFlagged}: status.StatusAwaitingClarification,

	{status.StatusAwaitingClarification, SignalClarify}: status.StatusAwaitingClarification,
	{status.StatusAwaitingClarification, SignalApprove}: resume,

	{status.StatusAwaitingStoryApproval, SignalClarify}: status.StatusAwaitingStoryApproval,
	{status.StatusAwaitingStoryApproval, SignalOutput}:  status.StatusAwaitingStoryApproval,
	{status.StatusAwaitingStoryApproval, SignalFlagged}: status.StatusAwaitingClarification,
	{status.StatusAwaitingStoryApproval, SignalApprove}: status.StatusAwaitingTestGeneration,

	{status.StatusAwaitingTestGeneration, SignalOutput}:  status.StatusDone,
	{status.StatusAwaitingTestGeneration, SignalFlagged}: status.StatusAwaitingClarification,
}

// generation maps each stage to the status in which it runs for the first time.
var generation = map[stage.Stage]status.Status{
	stage.Requirements: status.StatusAwaitingRequirements,
	stage.UserStories:  status.StatusAwaitingStoryGeneration,
	stage.TestCases:    status.StatusAwaitingTestGeneration,
}

// Router applies signals to statuses and binds stages to agents.
//
// Create with [NewRouter] for the stock agents or [NewRouterFromManifest]
// for manifest-driven binding.
type Router struct {
	agents map[stage.Stage]string
}

// NewRouter creates a [Router] bound to the stock stage agents.
func NewRouter() *Router {
	r := &Router{agents: make(map[stage.Stage]string)}
	for _, st := range stage.Sequence() {
		r.agents[st] = st.DefaultAgent()
	}
	return r
}

// NewRouterWithAgents creates a [Router] bound to the given stage agents.
// Stages missing from agents keep their stock agent.
func NewRouterWithAgents(agents map[stage.Stage]string) *Router {
	r := NewRouter()
	for st, name := range agents {
		if st.IsValid() && name != "" {
			r.agents[st] = name
		}
	}
	return r
}

// NewRouterFromManifest creates a [Router] whose stage agents come from m.
//
// The manifest must list exactly the three stages in canonical order. Trigger
// and next statuses, when given, must match the built-in table. Returns an
// error wrapping [ErrStageOrder] otherwise.
func NewRouterFromManifest(m *manifest.Manifest) (*Router, error) {
	seq := stage.Sequence()
	if len(m.Entries) != len(seq) {
		return nil, fmt.Errorf("%w: manifest lists %d stages", ErrStageOrder, len(m.Entries))
	}

	r := NewRouter()
	for i, entry := range m.Entries {
		st, err := stage.Parse(entry.Stage)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", i+2, err)
		}
		if st != seq[i] {
			return nil, fmt.Errorf("%w: got %s at position %d", ErrStageOrder, st, i+1)
		}

		step := r.stepFor(st)
		if entry.TriggerStatus != "" && status.Status(entry.TriggerStatus) != step.TriggerStatus {
			return nil, fmt.Errorf("%w: %s must trigger on %s, not %s", ErrStageOrder, st, step.TriggerStatus, entry.TriggerStatus)
		}
		if entry.NextStatus != "" && status.Status(entry.NextStatus) != step.NextStatus {
			return nil, fmt.Errorf("%w: %s must lead to %s, not %s", ErrStageOrder, st, step.NextStatus, entry.NextStatus)
		}
		if entry.Agent != "" {
			r.agents[st] = entry.Agent
		}
	}
	return r, nil
}

// Next returns the status reached by applying sig at current.
//
// Returns [ErrWorkflowComplete] at done, [ErrUnknownStatus] for unrecognized
// statuses and a [*TransitionError] for signals the status does not accept.
func (r *Router) Next(current status.Status, sig Signal, g Guards) (status.Status, error) {
	if current == status.StatusDone {
		return "", ErrWorkflowComplete
	}
	if !current.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, current)
	}

	target, ok := transitions[edge{current, sig}]
	if !ok {
		return "", &TransitionError{From: current, Signal: sig, Err: ErrInvalidTransition}
	}
	if target != resume {
		return target, nil
	}

	if !g.Clarified {
		return "", &TransitionError{From: current, Signal: sig, Err: ErrClarificationRequired}
	}
	switch g.ResumeStatus {
	case status.StatusAwaitingStoryGeneration, status.StatusAwaitingTestGeneration:
		return g.ResumeStatus, nil
	}
	return "", &TransitionError{
		From:   current,
		Signal: sig,
		Err:    fmt.Errorf("%w: no resume status recorded", ErrInvalidTransition),
	}
}

// Advance applies sig to the session's current status using the session's
// own guard facts. The session is not modified.
func (r *Router) Advance(sess *status.Session, sig Signal) (status.Status, error) {
	return r.Next(sess.Status, sig, Guards{
		ResumeStatus: sess.ResumeStatus,
		Clarified:    sess.ClarifiedSinceFlag(),
	})
}

// Accepts reports whether sig has an edge at current, ignoring guards.
func (r *Router) Accepts(current status.Status, sig Signal) bool {
	_, ok := transitions[edge{current, sig}]
	return ok
}

// StageFor returns the stage that runs when a session sits at s. Approval
// gates return their own stage, which is re-run after a clarification.
//
// Returns [ErrWorkflowComplete] at done and [ErrUnknownStatus] for the
// clarification interrupt and unrecognized values.
func (r *Router) StageFor(s status.Status) (stage.Stage, error) {
	switch s {
	case status.StatusDone:
		return "", ErrWorkflowComplete
	case status.StatusAwaitingRequirements, status.StatusAwaitingRequirementsApproval:
		return stage.Requirements, nil
	case status.StatusAwaitingStoryGeneration, status.StatusAwaitingStoryApproval:
		return stage.UserStories, nil
	case status.StatusAwaitingTestGeneration:
		return stage.TestCases, nil
	}
	return "", fmt.Errorf("%w: no stage runs at %q", ErrUnknownStatus, s)
}

// GenerationStatus returns the status in which st first runs. It is the
// resume target when st's output is flagged.
func GenerationStatus(st stage.Stage) status.Status {
	return generation[st]
}

// AgentFor returns the agent bound to st.
func (r *Router) AgentFor(st stage.Stage) (string, error) {
	name, ok := r.agents[st]
	if !ok {
		return "", fmt.Errorf("no agent bound to stage %q", st)
	}
	return name, nil
}
