// Package issues classifies the problems a stage agent reports in its output.
//
// Agents are asked to report issues with marker lines (see the response
// protocol in the config package). Requirements analysis additionally lists
// classified issues under an "Identified Issues" heading. This package turns
// both forms into [Issue] values the orchestrator can gate on, and runs a
// deterministic pre-screen over the raw document.
//
// Key types:
//   - [Category] - the fixed issue taxonomy
//   - [Issue] - one classified issue with its origin
//   - [Detector] - interface for extracting issues from stage output
//   - [ResponseDetector] - production implementation backed by [ParseResponse]
//   - [MockDetector] - test implementation with configurable results
package issues

import (
	"fmt"
	"regexp"
	"strings"

	"reqflow/internal/stage"
)

// Category is one entry of the issue taxonomy.
type Category string

const (
	AmbiguousInput               Category = "ambiguous-input"
	ConflictingRequirement       Category = "conflicting-requirement"
	OutOfScopeRequirement        Category = "out-of-scope-requirement"
	UnconfirmedAssumption        Category = "unconfirmed-assumption"
	IncompleteAcceptanceCriteria Category = "incomplete-acceptance-criteria"
	MissingNegativePath          Category = "missing-negative-path"
)

// Categories returns every category in taxonomy order.
func Categories() []Category {
	return []Category{
		AmbiguousInput,
		ConflictingRequirement,
		OutOfScopeRequirement,
		UnconfirmedAssumption,
		IncompleteAcceptanceCriteria,
		MissingNegativePath,
	}
}

// IsValid reports whether c is part of the taxonomy.
func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the human-readable name used in agent instructions.
func (c Category) Label() string {
	switch c {
	case AmbiguousInput:
		return "Missing or ambiguous requirement"
	case ConflictingRequirement:
		return "Conflicting requirement"
	case OutOfScopeRequirement:
		return "Out-of-scope requirement"
	case UnconfirmedAssumption:
		return "Assumption requiring clarification"
	case IncompleteAcceptanceCriteria:
		return "Incomplete acceptance criteria"
	case MissingNegativePath:
		return "Missing negative path"
	}
	return string(c)
}

// Source records where an issue came from.
type Source string

const (
	// SourceAgent is an issue the stage agent reported in its output.
	SourceAgent Source = "agent"

	// SourceClarificationRequest is a direct question from the agent that
	// must be answered before the stage can continue.
	SourceClarificationRequest Source = "clarification-request"

	// SourcePreScreen is a finding of [PreScreen] over the raw document.
	SourcePreScreen Source = "pre-screen"
)

// Issue is one classified problem.
type Issue struct {
	Category Category `yaml:"category"`
	Detail   string   `yaml:"detail"`
	Source   Source   `yaml:"source"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s", i.Category, i.Detail)
}

// categoryTokens maps phrases to categories. Order matters: earlier entries
// win when several phrases appear in the same text.
var categoryTokens = []struct {
	token    string
	category Category
}{
	{"ambiguous-input", AmbiguousInput},
	{"conflicting-requirement", ConflictingRequirement},
	{"out-of-scope-requirement", OutOfScopeRequirement},
	{"unconfirmed-assumption", UnconfirmedAssumption},
	{"incomplete-acceptance-criteria", IncompleteAcceptanceCriteria},
	{"missing-negative-path", MissingNegativePath},
	{"negative path", MissingNegativePath},
	{"acceptance criteria", IncompleteAcceptanceCriteria},
	{"conflict", ConflictingRequirement},
	{"contradict", ConflictingRequirement},
	{"out-of-scope", OutOfScopeRequirement},
	{"out of scope", OutOfScopeRequirement},
	{"assumption", UnconfirmedAssumption},
	{"missing", AmbiguousInput},
	{"ambiguous", AmbiguousInput},
	{"unclear", AmbiguousInput},
}

// ParseCategory maps a category name, label or free text to a [Category].
// The second result is false when nothing recognizable was found.
func ParseCategory(text string) (Category, bool) {
	lower := strings.ToLower(text)
	for _, ct := range categoryTokens {
		if strings.Contains(lower, ct.token) {
			return ct.category, true
		}
	}
	return "", false
}

var (
	markerPattern        = regexp.MustCompile(`(?i)^\[ISSUE:\s*([^\]]*)\]\s*(.*)$`)
	clarificationPattern = regexp.MustCompile(`(?i)^\**clarification needed:?\**:?\s*(.*)$`)
	headingPattern       = regexp.MustCompile(`^(#{1,6}\s+|\*\*[^*]+\*\*\s*$)`)
	bulletPattern        = regexp.MustCompile(`^(?:[-*+•]|\d+[.)])\s+(.*)$`)
	noneItem             = regexp.MustCompile(`(?i)^(none|n/a|no issues?)( identified| found| detected)?\W*$`)

	// labelHeading is a plain "Section name:" line. Only known section names
	// open or close the issues list, so prose ending in a colon does not.
	labelHeading  = regexp.MustCompile(`^[^:]{1,60}:$`)
	otherSections = regexp.MustCompile(`(?i)\b(requirements|out[- ]of[- ]scope|exclusions|assumptions|questions)\b`)
)

// ParseResponse extracts every issue reported in a stage response.
//
// Three forms are recognized: "[ISSUE:<category>] detail" marker lines,
// "CLARIFICATION NEEDED: question" lines, and list items under an
// "Identified Issues" heading, written in markdown, in bold or as a plain
// "Identified Issues:" line. Items reading "None" are ignored and duplicate
// issues are reported once. The response text is never modified.
func ParseResponse(response string) []Issue {
	var found []Issue
	seen := make(map[Issue]bool)
	add := func(i Issue) {
		i.Detail = strings.TrimSpace(i.Detail)
		if i.Detail == "" || noneItem.MatchString(i.Detail) {
			return
		}
		key := Issue{Category: i.Category, Detail: strings.ToLower(i.Detail)}
		if seen[key] {
			return
		}
		seen[key] = true
		found = append(found, i)
	}

	inIssues := false
	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		content := line
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			content = strings.TrimSpace(m[1])
		}

		if m := markerPattern.FindStringSubmatch(content); m != nil {
			cat, ok := ParseCategory(m[1])
			if !ok {
				cat = AmbiguousInput
			}
			add(Issue{Category: cat, Detail: m[2], Source: SourceAgent})
			continue
		}
		if m := clarificationPattern.FindStringSubmatch(content); m != nil {
			add(Issue{Category: AmbiguousInput, Detail: m[1], Source: SourceClarificationRequest})
			continue
		}

		if headingPattern.MatchString(line) {
			inIssues = strings.Contains(strings.ToLower(line), "identified issues")
			continue
		}
		if content == line && labelHeading.MatchString(line) {
			switch {
			case strings.Contains(strings.ToLower(line), "identified issues"):
				inIssues = true
				continue
			case otherSections.MatchString(line):
				inIssues = false
				continue
			}
		}
		if inIssues && content != line {
			add(classifyItem(content))
		}
	}
	return found
}

// classifyItem turns an "Identified Issues" list item into an Issue. Items
// usually lead with the category ("Conflicting requirement: ...").
func classifyItem(item string) Issue {
	item = strings.TrimSpace(strings.ReplaceAll(item, "**", ""))
	cat, ok := AmbiguousInput, false
	if head, _, found := strings.Cut(item, ":"); found {
		cat, ok = ParseCategory(head)
	}
	if !ok {
		if cat, ok = ParseCategory(item); !ok {
			cat = AmbiguousInput
		}
	}
	return Issue{Category: cat, Detail: item, Source: SourceAgent}
}

// NeedsClarification reports whether any issue came from the agent itself.
// Pre-screen findings are advisory and never halt a stage.
func NeedsClarification(list []Issue) bool {
	for _, i := range list {
		if i.Source != SourcePreScreen {
			return true
		}
	}
	return false
}

// Detector extracts issues from a stage's output.
type Detector interface {
	Detect(st stage.Stage, output string) ([]Issue, error)
}

// ResponseDetector implements [Detector] with [ParseResponse].
type ResponseDetector struct{}

// Detect parses output for reported issues.
func (ResponseDetector) Detect(_ stage.Stage, output string) ([]Issue, error) {
	return ParseResponse(output), nil
}

// MockDetector implements [Detector] for testing.
//
// Set Results to return a different list per call; once exhausted, Issues is
// returned.
type MockDetector struct {
	// Issues is returned when Results is exhausted.
	Issues []Issue

	// Results holds per-call return values, consumed in order.
	Results [][]Issue

	// Err is the error to return from Detect.
	Err error

	// Calls records all Detect invocations for verification.
	Calls []struct {
		Stage  stage.Stage
		Output string
	}
}

// Detect returns the pre-configured issues or error.
func (m *MockDetector) Detect(st stage.Stage, output string) ([]Issue, error) {
	m.Calls = append(m.Calls, struct {
		Stage  stage.Stage
		Output string
	}{st, output})

	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Results) > 0 {
		next := m.Results[0]
		m.Results = m.Results[1:]
		return next, nil
	}
	return m.Issues, nil
}
