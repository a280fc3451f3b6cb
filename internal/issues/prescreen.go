package issues

import (
	"fmt"
	"regexp"
	"strings"
)

// genericSubject matches a requirement sentence whose subject is a generic
// stand-in for a user rather than a named persona.
var genericSubject = regexp.MustCompile(`(?i)^(?:(?:the|all|any|an?)\s+)?(users?|end[- ]users?|people|everyone|everybody|anyone|someone|they)\s+(?:should|must|shall|can|could|will|need to|needs to|want to|wants to|are able to|is able to)\b`)

// genericObject matches a capability granted to generic users anywhere in a
// sentence, as in "The system should let users reset their password".
var genericObject = regexp.MustCompile(`(?i)\b(?:allows?|lets?|enables?|permits?)\s+(?:(?:the|all|any)\s+)?(users?|end[- ]users?|people|everyone|everybody|anyone|someone)\s+(?:to\s+)?\w`)

var (
	listMarker    = regexp.MustCompile(`^(?:[-*+•]|\d+[.)])\s+`)
	reqLabel      = regexp.MustCompile(`^[A-Za-z]{1,4}-?\d+[.:)]\s*`)
	sentenceBreak = regexp.MustCompile(`[.!?]\s+`)
)

// PreScreen flags requirement sentences in a raw document that name no user
// persona, such as "Users should be able to reset their password".
//
// Findings are advisory: they are shown next to the requirements analysis so
// a missing persona is never silently filled in with a generic "end user".
func PreScreen(document string) []Issue {
	var found []Issue
	seen := make(map[string]bool)

	for _, line := range strings.Split(document, "\n") {
		line = listMarker.ReplaceAllString(strings.TrimSpace(line), "")
		line = reqLabel.ReplaceAllString(line, "")
		for _, sentence := range splitSentences(line) {
			if !genericSubject.MatchString(sentence) && !genericObject.MatchString(sentence) {
				continue
			}
			key := strings.ToLower(sentence)
			if seen[key] {
				continue
			}
			seen[key] = true
			found = append(found, Issue{
				Category: AmbiguousInput,
				Detail:   fmt.Sprintf("missing persona: %q does not name which user persona needs this capability", sentence),
				Source:   SourcePreScreen,
			})
		}
	}
	return found
}

func splitSentences(line string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(line, -1) {
		s = strings.TrimRight(strings.TrimSpace(s), ".!?")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
