package status

import (
	"time"

	"reqflow/internal/issues"
	"reqflow/internal/policy"
	"reqflow/internal/stage"
)

// EventType names an entry in the session event log.
type EventType string

const (
	EventSubmitted              EventType = "submitted"
	EventStageOutput            EventType = "stage-output"
	EventApproved               EventType = "approved"
	EventClarified              EventType = "clarified"
	EventClarificationRequested EventType = "clarification-requested"
)

// Event is one ordered entry in the session log. The log is append-only and
// records every status change together with the human signal behind it.
type Event struct {
	At    time.Time   `yaml:"at"`
	Type  EventType   `yaml:"type"`
	Stage stage.Stage `yaml:"stage,omitempty"`
	From  Status      `yaml:"from"`
	To    Status      `yaml:"to"`
	Note  string      `yaml:"note,omitempty"`
}

// Turn is one message of a stage conversation.
type Turn struct {
	Role string `yaml:"role"`
	Text string `yaml:"text"`
}

// Conversation roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Artifact is the output of one stage.
type Artifact struct {
	Stage        stage.Stage    `yaml:"stage"`
	Agent        string         `yaml:"agent"`
	Output       string         `yaml:"output"`
	Conversation []Turn         `yaml:"conversation,omitempty"`
	Attempts     int            `yaml:"attempts"`
	Issues       []issues.Issue `yaml:"issues,omitempty"`
	Approved     bool           `yaml:"approved"`
	ApprovedAt   *time.Time     `yaml:"approved_at,omitempty"`

	// Violations lists the conformance rules the latest output breaks.
	Violations []policy.Violation `yaml:"violations,omitempty"`

	// ApprovedWithOpenIssues is set when the reviewer approved while Issues
	// was non-empty.
	ApprovedWithOpenIssues bool `yaml:"approved_with_open_issues,omitempty"`
}

// Session is one document's progress through the stages.
type Session struct {
	ID           string                    `yaml:"id"`
	Status       Status                    `yaml:"status"`
	ResumeStatus Status                    `yaml:"resume_status,omitempty"`
	Document     string                    `yaml:"document"`
	Stages       map[stage.Stage]*Artifact `yaml:"stages,omitempty"`
	PreScreen    []issues.Issue            `yaml:"pre_screen,omitempty"`
	Events       []Event                   `yaml:"events,omitempty"`
	CreatedAt    time.Time                 `yaml:"created_at"`
	UpdatedAt    time.Time                 `yaml:"updated_at"`
}

// Artifact returns the artifact for st, or nil when the stage has not run.
func (s *Session) Artifact(st stage.Stage) *Artifact {
	if s.Stages == nil {
		return nil
	}
	return s.Stages[st]
}

// EnsureArtifact returns the artifact for st, creating it if needed.
func (s *Session) EnsureArtifact(st stage.Stage, agent string) *Artifact {
	if s.Stages == nil {
		s.Stages = make(map[stage.Stage]*Artifact)
	}
	a, ok := s.Stages[st]
	if !ok {
		a = &Artifact{Stage: st, Agent: agent}
		s.Stages[st] = a
	}
	return a
}

// ApprovedOutput returns the output of st only if the reviewer approved it.
func (s *Session) ApprovedOutput(st stage.Stage) (string, bool) {
	a := s.Artifact(st)
	if a == nil || !a.Approved {
		return "", false
	}
	return a.Output, true
}

// Transition moves the session to next and appends the matching event.
func (s *Session) Transition(typ EventType, st stage.Stage, next Status, note string, at time.Time) {
	s.Events = append(s.Events, Event{
		At:    at,
		Type:  typ,
		Stage: st,
		From:  s.Status,
		To:    next,
		Note:  note,
	})
	s.Status = next
	s.UpdatedAt = at
}

// ClarifiedSinceFlag reports whether a clarification was recorded after the
// most recent clarification request.
func (s *Session) ClarifiedSinceFlag() bool {
	for i := len(s.Events) - 1; i >= 0; i-- {
		switch s.Events[i].Type {
		case EventClarified:
			return true
		case EventClarificationRequested:
			return false
		}
	}
	return false
}

// CurrentStage returns the stage the session is working on or waiting on.
func (s *Session) CurrentStage() (stage.Stage, bool) {
	switch s.Status {
	case StatusAwaitingRequirements, StatusAwaitingRequirementsApproval:
		return stage.Requirements, true
	case StatusAwaitingStoryGeneration, StatusAwaitingStoryApproval:
		return stage.UserStories, true
	case StatusAwaitingTestGeneration:
		return stage.TestCases, true
	case StatusAwaitingClarification:
		switch s.ResumeStatus {
		case StatusAwaitingStoryGeneration:
			return stage.UserStories, true
		case StatusAwaitingTestGeneration:
			return stage.TestCases, true
		}
	}
	return "", false
}
