// Package matcher evaluates inbound messages against keyword rules.
package matcher

import (
	"regexp"
	"sort"
	"strings"

	"newswatch_bot/internal/model"
)

// Result is a single rule that matched a message.
type Result struct {
	Keyword model.Keyword
	Matched string
}

// Skipped flags a rule that could not be evaluated (malformed regex).
// A bad rule never aborts evaluation of the remaining rules.
type Skipped struct {
	KeywordID int64
	Err       error
}

// Match evaluates text against the given rules and returns the matches
// ordered by rule priority, highest first. Inactive rules are ignored.
func Match(text string, rules []model.Keyword) ([]Result, []Skipped) {
	ordered := make([]model.Keyword, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	var results []Result
	var skipped []Skipped
	for _, r := range ordered {
		matched, ok, err := evaluate(text, r)
		if err != nil {
			skipped = append(skipped, Skipped{KeywordID: r.ID, Err: err})
			continue
		}
		if ok {
			results = append(results, Result{Keyword: r, Matched: matched})
		}
	}
	return results, skipped
}

func evaluate(text string, r model.Keyword) (string, bool, error) {
	switch r.Mode {
	case model.MatchExact:
		msg := strings.TrimSpace(text)
		pattern := r.Pattern
		if !r.CaseSensitive {
			msg = strings.ToLower(msg)
			pattern = strings.ToLower(pattern)
		}
		return r.Pattern, msg == pattern, nil
	case model.MatchRegex:
		pattern := r.Pattern
		if !r.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return "", false, err
		}
		loc := re.FindStringIndex(text)
		if loc == nil {
			return "", false, nil
		}
		return text[loc[0]:loc[1]], true, nil
	default: // contains
		msg, pattern := text, r.Pattern
		if !r.CaseSensitive {
			msg = strings.ToLower(msg)
			pattern = strings.ToLower(pattern)
		}
		return r.Pattern, strings.Contains(msg, pattern), nil
	}
}
