// Package policy checks stage transcripts against the behavioral contract of
// each stage agent.
//
// The agents are prompted to follow these rules but nothing forces a model to
// obey, so the orchestrator re-checks every output and shows violations to the
// reviewer next to the artifact. Checks are textual and conservative: they
// look for required structure and forbidden vocabulary, not meaning.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"reqflow/internal/stage"
)

// Rule identifies a conformance rule.
type Rule string

const (
	RuleEmpty              Rule = "empty-output"
	RuleSections           Rule = "required-sections"
	RuleClosingRequest     Rule = "closing-request"
	RuleNoDownstream       Rule = "no-downstream-artifacts"
	RuleStoryID            Rule = "story-id"
	RuleStoryTitle         Rule = "story-title"
	RuleAcceptanceCriteria Rule = "acceptance-criteria"
	RuleImplementation     Rule = "implementation-detail"
	RuleStoryRef           Rule = "story-reference"
	RulePriority           Rule = "priority-tag"
	RuleMustHaveHappyPath  Rule = "must-have-happy-path"
	RuleNonFunctional      Rule = "non-functional"
	RuleAutomation         Rule = "automation-detail"
)

// Violation is one broken rule.
type Violation struct {
	Rule   Rule   `yaml:"rule"`
	Detail string `yaml:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

// Report is the result of checking one stage output.
type Report struct {
	Stage      stage.Stage
	Violations []Violation
}

// OK reports whether no rule was broken.
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// Check runs the checks for st over text. Test cases are checked without a
// known story list; use [CheckTestCases] directly to check traceability
// against approved stories.
func Check(st stage.Stage, text string) (Report, error) {
	report := Report{Stage: st}
	switch st {
	case stage.Requirements:
		report.Violations = CheckRequirements(text)
	case stage.UserStories:
		report.Violations = CheckStories(text)
	case stage.TestCases:
		report.Violations = CheckTestCases(text, nil)
	default:
		return report, fmt.Errorf("no policy for stage %q", st)
	}
	return report, nil
}

// CheckWithInput is [Check] with the stage's approved input available. Test
// cases are then also traced to the story IDs found in input.
func CheckWithInput(st stage.Stage, text, input string) (Report, error) {
	if st != stage.TestCases || strings.TrimSpace(input) == "" {
		return Check(st, text)
	}
	ids := StoryIDs(ParseStories(input))
	return Report{Stage: st, Violations: CheckTestCases(text, ids)}, nil
}

var (
	storyIDPattern    = regexp.MustCompile(`\bUS-\d+\b`)
	testCaseIDPattern = regexp.MustCompile(`\bTC-\d+\b`)
	gwtPattern        = regexp.MustCompile(`(?i)\bgiven\b.+\bwhen\b.+\bthen\b`)
)

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func isHeading(line string) bool {
	return strings.HasPrefix(line, "#")
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
