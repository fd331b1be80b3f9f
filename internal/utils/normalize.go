package utils

import "strings"

// NormalizeQuery case-folds s, trims it and collapses every run of
// whitespace into a single space. It is the cache key form of a query.
func NormalizeQuery(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// LastWord returns the final whitespace separated word of s, or "" when s
// ends in whitespace.
func LastWord(s string) string {
	if s == "" || strings.TrimRight(s, " \t\n") != s {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
