package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// requiredSections are the five labelled sections of a requirements analysis.
// Each entry lists phrases any of which identifies the section.
var requiredSections = []struct {
	name    string
	phrases []string
}{
	{"Extracted and Normalized Requirements", []string{"normalized requirements", "normalised requirements", "extracted requirements"}},
	{"Out-of-Scope / Exclusions", []string{"out-of-scope", "out of scope", "exclusions"}},
	{"Explicit Assumptions", []string{"assumptions"}},
	{"Identified Issues", []string{"identified issues", "issues"}},
	{"Clarifying Questions", []string{"clarifying questions", "questions for"}},
}

var (
	closingKeyword = regexp.MustCompile(`(?i)\b(approv\w*|sign[- ]?off|confirm\w*|clarif\w*)\b|\b(may|shall|can) (i|we) proceed\b`)
	closingAsk     = regexp.MustCompile(`(?i)\?|\b(please|kindly|request\w*|let (me|us) know|await\w*|waiting for|reply|respond|provide)\b`)
	closingProceed = regexp.MustCompile(`(?i)\b(proceeding|moving on|now (proceed|generat|writ|mov)\w*|will now)\b|\bno (further )?(approval|confirmation|clarification|sign[- ]?off)s? (is |are )?(needed|required)\b|\bwithout (waiting for )?(approval|confirmation|sign[- ]?off)\b`)
)

// requestsApproval reports whether the closing text asks the reviewer to
// approve or clarify rather than announcing the next stage.
func requestsApproval(closing string) bool {
	if closingProceed.MatchString(closing) {
		return false
	}
	return closingKeyword.MatchString(closing) && closingAsk.MatchString(closing)
}

// CheckRequirements checks a requirements analysis: all five sections are
// present, the closing text asks for approval or clarification, and no user
// stories or test cases were produced.
func CheckRequirements(text string) []Violation {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return []Violation{{RuleEmpty, "requirements analysis is empty"}}
	}

	var violations []Violation

	var headings []string
	for _, l := range lines {
		if isHeading(l) || strings.HasPrefix(l, "**") || strings.HasSuffix(l, ":") {
			headings = append(headings, strings.ToLower(l))
		}
	}
	for _, sec := range requiredSections {
		if !anyContains(headings, sec.phrases) {
			violations = append(violations, Violation{RuleSections, fmt.Sprintf("missing section %q", sec.name)})
		}
	}

	if !requestsApproval(closingText(lines)) {
		violations = append(violations, Violation{RuleClosingRequest, "response does not end by requesting approval or clarification"})
	}

	if len(ParseStories(text)) > 0 || storyIDPattern.MatchString(text) {
		violations = append(violations, Violation{RuleNoDownstream, "requirements analysis contains user stories"})
	}
	if testCaseIDPattern.MatchString(text) {
		violations = append(violations, Violation{RuleNoDownstream, "requirements analysis contains test cases"})
	}

	return violations
}

// closingText returns the last two lines that are not headings.
func closingText(lines []string) string {
	var tail []string
	for i := len(lines) - 1; i >= 0 && len(tail) < 2; i-- {
		if !isHeading(lines[i]) {
			tail = append([]string{lines[i]}, tail...)
		}
	}
	return strings.Join(tail, " ")
}

func anyContains(haystacks []string, phrases []string) bool {
	for _, h := range haystacks {
		for _, p := range phrases {
			if strings.Contains(h, p) {
				return true
			}
		}
	}
	return false
}
