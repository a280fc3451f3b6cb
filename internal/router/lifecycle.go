package router

import (
	"reqflow/internal/stage"
	"reqflow/internal/status"
)

// Step is one stage of the fixed sequence with its bound agent and the
// statuses it moves between.
type Step struct {
	Stage stage.Stage

	// Agent is the agent that runs the stage.
	Agent string

	// TriggerStatus is the status in which the stage first runs.
	TriggerStatus status.Status

	// NextStatus is the status after the stage produces unflagged output.
	NextStatus status.Status
}

func (r *Router) stepFor(st stage.Stage) Step {
	trigger := generation[st]
	return Step{
		Stage:         st,
		Agent:         r.agents[st],
		TriggerStatus: trigger,
		NextStatus:    transitions[edge{trigger, SignalOutput}],
	}
}

// Steps returns every stage in order.
func (r *Router) Steps() []Step {
	seq := stage.Sequence()
	steps := make([]Step, len(seq))
	for i, st := range seq {
		steps[i] = r.stepFor(st)
	}
	return steps
}

// Remaining returns the stages that have not produced approved output yet,
// starting with the one current is working on or waiting on.
//
// Returns [ErrWorkflowComplete] at done.
func (r *Router) Remaining(current status.Status, resumeStatus status.Status) ([]Step, error) {
	if current == status.StatusDone {
		return nil, ErrWorkflowComplete
	}
	if current == status.StatusAwaitingClarification {
		current = resumeStatus
	}
	st, err := r.StageFor(current)
	if err != nil {
		return nil, err
	}
	return r.Steps()[st.Index():], nil
}
