// Package status tracks where a session is in the gated workflow and
// persists sessions as YAML files.
//
// Key types:
//   - [Status] - the workflow state, one value per gate or generation step
//   - [Session] - one document's journey through the stages
//   - [Artifact] - the output of one stage, immutable once approved
//   - [Store] - file-backed session persistence with atomic writes
package status

// Status is the workflow state of a session.
type Status string

const (
	// StatusAwaitingRequirements means no document has been analyzed yet.
	StatusAwaitingRequirements Status = "awaiting-requirements"

	// StatusAwaitingRequirementsApproval pauses after requirements analysis.
	StatusAwaitingRequirementsApproval Status = "awaiting-requirements-approval"

	// StatusAwaitingStoryGeneration means requirements are approved and
	// user stories are due.
	StatusAwaitingStoryGeneration Status = "awaiting-story-generation"

	// StatusAwaitingClarification interrupts generation when an agent flags
	// uncertainty. Session.ResumeStatus records where to continue.
	StatusAwaitingClarification Status = "awaiting-clarification"

	// StatusAwaitingStoryApproval pauses after user-story generation.
	StatusAwaitingStoryApproval Status = "awaiting-story-approval"

	// StatusAwaitingTestGeneration means stories are approved and test cases
	// are due.
	StatusAwaitingTestGeneration Status = "awaiting-test-generation"

	// StatusDone means all three artifacts exist.
	StatusDone Status = "done"
)

var allStatuses = []Status{
	StatusAwaitingRequirements,
	StatusAwaitingRequirementsApproval,
	StatusAwaitingStoryGeneration,
	StatusAwaitingClarification,
	StatusAwaitingStoryApproval,
	StatusAwaitingTestGeneration,
	StatusDone,
}

// All returns every status in workflow order.
func All() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// IsValid returns true if the status is a recognized value.
func (s Status) IsValid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsGate reports whether the session is waiting on the human.
func (s Status) IsGate() bool {
	switch s {
	case StatusAwaitingRequirementsApproval, StatusAwaitingStoryApproval, StatusAwaitingClarification:
		return true
	}
	return false
}

// Label returns the current-state label shown to the reviewer.
func (s Status) Label() string {
	switch s {
	case StatusAwaitingRequirements:
		return "Awaiting Requirements"
	case StatusAwaitingRequirementsApproval, StatusAwaitingStoryApproval:
		return "Awaiting PM Approval"
	case StatusAwaitingStoryGeneration:
		return "Awaiting Story Generation"
	case StatusAwaitingClarification:
		return "Awaiting PM Clarification"
	case StatusAwaitingTestGeneration:
		return "Awaiting Test Generation"
	case StatusDone:
		return "Complete"
	}
	return string(s)
}

func (s Status) String() string {
	return string(s)
}
