package utils

import (
	"unicode"
)

// IsSeparator checks if a rune is a separator character
func IsSeparator(r rune) bool {
	return r == ' ' || r == '_' || r == '-' || r == '.' || r == '/'
}

// ContainsLetters checks if a string contains any letter
func ContainsLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// IsOnlyNumbers checks if a string consists entirely of numeric digits
func IsOnlyNumbers(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// IsRepetitive checks if a string consists of one repeated character ("aaa", "....")
func IsRepetitive(s string) bool {
	if len(s) <= 2 {
		return false
	}
	firstChar := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] != firstChar {
			return false
		}
	}
	return true
}

// IsValidQuery reports whether a query is worth sending to a remote fallback:
// it must contain a letter and must not be a single repeated character.
func IsValidQuery(s string) bool {
	compact := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			compact = append(compact, r)
		}
	}
	if len(compact) == 0 || !ContainsLetters(s) {
		return false
	}
	return !IsRepetitive(string(compact))
}
