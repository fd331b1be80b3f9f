package utils

import (
	"strings"
)

// SuggestionFilter drops case-insensitive duplicates from a stream of
// suggestion texts. It is not safe for concurrent use.
type SuggestionFilter struct {
	seen map[string]bool
}

// NewSuggestionFilter creates a filter that also rejects every text in exclude.
func NewSuggestionFilter(exclude ...string) *SuggestionFilter {
	seen := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			seen[e] = true
		}
	}
	return &SuggestionFilter{seen: seen}
}

// ShouldInclude checks if a text should be included in results (not a duplicate)
// Returns true if the text should be included, false if it's a duplicate
func (f *SuggestionFilter) ShouldInclude(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" || f.seen[lower] {
		return false
	}
	f.seen[lower] = true
	return true
}
