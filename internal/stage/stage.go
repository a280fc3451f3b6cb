// Package stage defines the three workflow stages a document moves through.
//
// The order is fixed: requirements analysis, then user-story generation, then
// test-case generation. Each stage is served by one agent and produces one
// labelled artifact.
package stage

import (
	"fmt"
	"strings"
)

// Stage identifies a workflow stage.
type Stage string

const (
	// Requirements turns raw document text into normalized requirements,
	// classified issues, assumptions and clarifying questions.
	Requirements Stage = "requirements"

	// UserStories turns approved requirements into persona-scoped stories.
	UserStories Stage = "user-stories"

	// TestCases turns approved stories into happy and negative path test cases.
	TestCases Stage = "test-cases"
)

// Default agent names bound to each stage.
const (
	RequirementsAgent = "requirements_agent"
	UserStoryAgent    = "user_story_agent"
	TestCaseAgent     = "test_case_agent"
	RootAgent         = "root_agent"
)

var sequence = []Stage{Requirements, UserStories, TestCases}

var aliases = map[string]Stage{
	"requirements": Requirements,
	"reqs":         Requirements,
	"req":          Requirements,
	"user-stories": UserStories,
	"stories":      UserStories,
	"story":        UserStories,
	"test-cases":   TestCases,
	"tests":        TestCases,
	"test":         TestCases,
}

// Sequence returns the stages in execution order. The returned slice is a copy.
func Sequence() []Stage {
	out := make([]Stage, len(sequence))
	copy(out, sequence)
	return out
}

// Parse converts a stage name or short alias into a Stage.
func Parse(s string) (Stage, error) {
	if st, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown stage %q (valid: requirements, user-stories, test-cases)", s)
}

// IsValid reports whether s is one of the three stages.
func (s Stage) IsValid() bool {
	return s.Index() >= 0
}

// Index returns the zero-based position of s in the sequence, or -1.
func (s Stage) Index() int {
	for i, st := range sequence {
		if st == s {
			return i
		}
	}
	return -1
}

// Previous returns the stage whose approved output feeds s.
// The first stage has no predecessor.
func (s Stage) Previous() (Stage, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return sequence[i-1], true
}

// OutputLabel is the heading the orchestrator prints above the stage's output.
func (s Stage) OutputLabel() string {
	switch s {
	case Requirements:
		return "Requirements Analysis Output"
	case UserStories:
		return "User Stories Output"
	case TestCases:
		return "Test Cases Output"
	}
	return string(s)
}

// DefaultAgent returns the name of the stock agent that serves s.
func (s Stage) DefaultAgent() string {
	switch s {
	case Requirements:
		return RequirementsAgent
	case UserStories:
		return UserStoryAgent
	case TestCases:
		return TestCaseAgent
	}
	return ""
}

func (s Stage) String() string {
	return string(s)
}
