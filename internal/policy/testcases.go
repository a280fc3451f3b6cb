package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// Priority is the Must-have / Nice-to-have tag of a test case.
type Priority string

const (
	MustHave   Priority = "must-have"
	NiceToHave Priority = "nice-to-have"
)

// Path distinguishes happy-path from negative-path cases.
type Path string

const (
	HappyPath    Path = "happy"
	NegativePath Path = "negative"
)

// TestCase is a test case parsed from a transcript.
type TestCase struct {
	ID       string
	StoryID  string
	Priority Priority
	Path     Path
	Text     string
}

var (
	mustHavePattern   = regexp.MustCompile(`(?i)\bmust[- ]have\b`)
	niceToHavePattern = regexp.MustCompile(`(?i)\bnice[- ]to[- ]have\b`)
	happyLabel        = regexp.MustCompile(`(?i)\b(happy|positive)[- ]path\b`)
	negativeLabel     = regexp.MustCompile(`(?i)\bnegative[- ]path\b`)
	happyWord         = regexp.MustCompile(`(?i)\bhappy\b`)
	negativeWord      = regexp.MustCompile(`(?i)\bnegative\b`)
	nonFunctional     = regexp.MustCompile(`(?i)\b(performance|load|stress|soak|security|penetration|accessibility|scalability|usability)[- ](test|tests|testing)\b|\b(category|type):\s*(performance|load|stress|security|accessibility|scalability|usability)\b|\b(latency|throughput|response time)\b`)
	automationTooling = regexp.MustCompile(`(?i)\b(selenium|cypress|playwright|webdriver|junit|pytest|jest|automation script|test script)\b`)
)

// ParseTestCases extracts test cases from a test-case transcript.
//
// A case starts at a TC-n identifier. Its story is the first US-n mentioned in
// its lines or, failing that, the story of the enclosing section heading.
func ParseTestCases(text string) []TestCase {
	var cases []TestCase
	var cur *TestCase
	var body []string
	pathLabelled := false
	sectionStory := ""

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.Join(body, "\n")
		if cur.StoryID == "" {
			cur.StoryID = sectionStory
		}
		cases = append(cases, *cur)
		cur, body = nil, nil
	}

	for _, line := range nonEmptyLines(text) {
		if id := testCaseIDPattern.FindString(line); id != "" && (cur == nil || cur.ID != id) {
			flush()
			cur = &TestCase{ID: id}
			pathLabelled = false
		} else if isHeading(line) {
			flush()
			if sid := storyIDPattern.FindString(line); sid != "" {
				sectionStory = sid
			}
			continue
		}
		if cur == nil {
			if sid := storyIDPattern.FindString(line); sid != "" {
				sectionStory = sid
			}
			continue
		}

		body = append(body, line)
		if cur.StoryID == "" {
			cur.StoryID = storyIDPattern.FindString(line)
		}
		switch {
		case cur.Priority != "":
		case mustHavePattern.MatchString(line):
			cur.Priority = MustHave
		case niceToHavePattern.MatchString(line):
			cur.Priority = NiceToHave
		}
		if !pathLabelled {
			if p, labelled := pathOf(line); labelled || (p != "" && cur.Path == "") {
				cur.Path, pathLabelled = p, labelled
			}
		}
	}
	flush()
	return cases
}

// pathOf classifies a line. An explicit "happy path" or "negative path" label
// wins over a bare mention of either word; labelled reports which one matched.
func pathOf(line string) (p Path, labelled bool) {
	h := happyLabel.FindStringIndex(line)
	n := negativeLabel.FindStringIndex(line)
	switch {
	case h != nil && (n == nil || h[0] < n[0]):
		return HappyPath, true
	case n != nil:
		return NegativePath, true
	case negativeWord.MatchString(line):
		return NegativePath, false
	case happyWord.MatchString(line):
		return HappyPath, false
	}
	return "", false
}

// CheckTestCases checks a test-case transcript. Every case must reference a
// story and carry a priority tag, every story must have at least one
// Must-have happy-path case, and no non-functional or automation content may
// appear. When storyIDs is empty the stories referenced by the cases are used.
func CheckTestCases(text string, storyIDs []string) []Violation {
	if len(nonEmptyLines(text)) == 0 {
		return []Violation{{RuleEmpty, "test case output is empty"}}
	}

	cases := ParseTestCases(text)
	if len(cases) == 0 {
		return []Violation{{RuleStoryRef, "no TC-n test cases found"}}
	}

	var violations []Violation
	known := make(map[string]bool, len(storyIDs))
	for _, id := range storyIDs {
		known[id] = true
	}

	covered := make(map[string]bool)
	var referenced []string
	for _, tc := range cases {
		switch {
		case tc.StoryID == "":
			violations = append(violations, Violation{RuleStoryRef, fmt.Sprintf("%s does not reference a story", tc.ID)})
		case len(known) > 0 && !known[tc.StoryID]:
			violations = append(violations, Violation{RuleStoryRef, fmt.Sprintf("%s references unknown story %s", tc.ID, tc.StoryID)})
		}
		if tc.StoryID != "" && !contains(referenced, tc.StoryID) {
			referenced = append(referenced, tc.StoryID)
		}
		if tc.Priority == "" {
			violations = append(violations, Violation{RulePriority, fmt.Sprintf("%s is not tagged Must-have or Nice-to-have", tc.ID)})
		}
		if tc.Priority == MustHave && tc.Path == HappyPath {
			covered[tc.StoryID] = true
		}
		if m := nonFunctional.FindString(tc.Text); m != "" {
			violations = append(violations, Violation{RuleNonFunctional, fmt.Sprintf("%s covers non-functional testing (%s)", tc.ID, m)})
		}
		if m := automationTooling.FindString(tc.Text); m != "" {
			violations = append(violations, Violation{RuleAutomation, fmt.Sprintf("%s mentions automation tooling (%s)", tc.ID, m)})
		}
	}

	stories := storyIDs
	if len(stories) == 0 {
		stories = referenced
	}
	for _, id := range stories {
		if !covered[id] {
			violations = append(violations, Violation{RuleMustHaveHappyPath, fmt.Sprintf("%s has no Must-have happy-path test case", id)})
		}
	}

	return violations
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
