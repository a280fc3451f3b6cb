package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Story is a user story parsed from a transcript.
type Story struct {
	ID       string
	Title    string
	Persona  string
	Action   string
	Value    string
	Criteria []string
}

var (
	titlePattern     = regexp.MustCompile(`(?i)\bas (?:an? )?(.+?), I should be able to (.+?) so that (.+)$`)
	titleCandidate   = regexp.MustCompile(`(?i)^(?:[-*#>\s]*)(?:\**title\**\s*:?\**\s*)?["“]?as an?\b`)
	implementation   = regexp.MustCompile(`(?i)\b(ui|user interface|button|click(?:s|ed)?|drop-?down|modal|checkbox|screen|api|apis|endpoint|http|json|database|db|sql|schema)\b`)
	titleTrimTrailer = regexp.MustCompile(`["”*.\s]+$`)
)

// ParseStories extracts user stories from a story transcript.
//
// A story starts at a new US-n identifier or at a title when the current
// story already has one. Given/When/Then lines become acceptance criteria of
// the current story.
func ParseStories(text string) []Story {
	var stories []Story
	var cur *Story
	flush := func() {
		if cur != nil && (cur.ID != "" || cur.Title != "") {
			stories = append(stories, *cur)
		}
		cur = nil
	}

	for _, line := range nonEmptyLines(text) {
		if gwtPattern.MatchString(line) {
			if cur != nil {
				cur.Criteria = append(cur.Criteria, cleanItem(line))
			}
			continue
		}

		if id := storyIDPattern.FindString(line); id != "" && (cur == nil || cur.ID != id) {
			flush()
			cur = &Story{ID: id}
		}

		if m := titlePattern.FindStringSubmatch(line); m != nil {
			if cur == nil || cur.Title != "" {
				flush()
				cur = &Story{}
			}
			cur.Persona = strings.TrimSpace(m[1])
			cur.Action = strings.TrimSpace(m[2])
			cur.Value = titleTrimTrailer.ReplaceAllString(strings.TrimSpace(m[3]), "")
			cur.Title = titleTrimTrailer.ReplaceAllString(m[0], "")
		}
	}
	flush()
	return stories
}

// CheckStories checks a story transcript: at least one story, every story has
// an identifier, a title in the fixed phrasing and Given/When/Then acceptance
// criteria, and no UI, API or database vocabulary appears in titles or
// criteria.
func CheckStories(text string) []Violation {
	if len(nonEmptyLines(text)) == 0 {
		return []Violation{{RuleEmpty, "story output is empty"}}
	}

	var violations []Violation

	for _, line := range nonEmptyLines(text) {
		if titleCandidate.MatchString(line) && !titlePattern.MatchString(line) {
			violations = append(violations, Violation{RuleStoryTitle, fmt.Sprintf("title does not match \"As a X, I should be able to Y so that Z\": %s", cleanItem(line))})
		}
	}

	stories := ParseStories(text)
	if len(stories) == 0 && len(violations) == 0 {
		violations = append(violations, Violation{RuleStoryTitle, "no user stories found"})
	}

	for _, s := range stories {
		name := s.ID
		if name == "" {
			name = s.Title
			violations = append(violations, Violation{RuleStoryID, fmt.Sprintf("story %q has no US-n identifier", s.Title)})
		}
		if s.Title == "" {
			violations = append(violations, Violation{RuleStoryTitle, fmt.Sprintf("%s has no title in the fixed phrasing", name)})
		}
		if len(s.Criteria) == 0 {
			violations = append(violations, Violation{RuleAcceptanceCriteria, fmt.Sprintf("%s has no Given/When/Then acceptance criteria", name)})
		}
		for _, line := range append([]string{s.Title}, s.Criteria...) {
			if m := implementation.FindString(line); m != "" {
				violations = append(violations, Violation{RuleImplementation, fmt.Sprintf("%s mentions %q", name, m)})
			}
		}
	}

	return violations
}

// StoryIDs returns the identifiers of the parsed stories.
func StoryIDs(stories []Story) []string {
	var ids []string
	for _, s := range stories {
		if s.ID != "" {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// EquivalentStories reports whether two story sets carry the same
// persona, action and value content, ignoring order, identifiers, case and
// spacing. Re-running an approved requirement set should produce an
// equivalent set.
func EquivalentStories(a, b []Story) bool {
	if len(a) != len(b) {
		return false
	}
	ka, kb := storyKeys(a), storyKeys(b)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

func storyKeys(stories []Story) []string {
	keys := make([]string, len(stories))
	for i, s := range stories {
		keys[i] = normalize(s.Persona) + "|" + normalize(s.Action) + "|" + normalize(s.Value)
	}
	sort.Strings(keys)
	return keys
}

func cleanItem(line string) string {
	line = strings.TrimLeft(line, "-*+•># \t")
	return strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
}
