package nlu

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bastiangx/tripserve/internal/utils"
)

// Token is a lower-cased word with its byte offsets in the lower-cased text.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenize lower-cases text and splits it into words. Hyphens and apostrophes
// inside a word are kept ("check-in", "5-day", "what's").
func Tokenize(text string) []Token {
	lower := strings.ToLower(text)
	var tokens []Token
	start := -1
	for i, r := range lower {
		if isTokenRune(r) || (start >= 0 && (r == '-' || r == '\'') && joinsWord(lower, i+utf8.RuneLen(r))) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, Token{Text: lower[start:i], Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: lower[start:], Start: start, End: len(lower)})
	}
	return tokens
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func joinsWord(s string, next int) bool {
	if next >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[next:])
	return isTokenRune(r)
}

var numberWords = map[string]bool{
	"one": true, "two": true, "three": true, "four": true, "five": true, "six": true,
	"seven": true, "eight": true, "nine": true, "ten": true, "eleven": true, "twelve": true,
}

// isNumeral accepts digit strings and the spelled-out numbers one to twelve.
func isNumeral(s string) bool {
	return utils.IsOnlyNumbers(s) || numberWords[s]
}

// Canonical is the form a query is resolved and cached under: case-folded
// with whitespace collapsed. Entity offsets in a resolved match index into it.
func Canonical(text string) string {
	return utils.NormalizeQuery(text)
}

func tokenSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// HasQuantifiedKeyword reports whether text contains one of keywords. With
// requiresNumber the keyword must carry a count: a numeral right before it
// ("3 nights"), one word before it ("2 adult guests"), right after it
// ("guests 4"), or hyphen-joined ("5-day").
func HasQuantifiedKeyword(text string, keywords []string, requiresNumber bool) bool {
	return hasQuantified(Tokenize(text), tokenSet(keywords...), requiresNumber)
}

func hasQuantified(tokens []Token, keywords map[string]bool, requiresNumber bool) bool {
	for i, tok := range tokens {
		if head, tail, ok := strings.Cut(tok.Text, "-"); ok && keywords[tail] && isNumeral(head) {
			return true
		}
		if !keywords[tok.Text] {
			continue
		}
		if !requiresNumber {
			return true
		}
		if i > 0 && isNumeral(tokens[i-1].Text) {
			return true
		}
		if i > 1 && isNumeral(tokens[i-2].Text) && !keywords[tokens[i-1].Text] {
			return true
		}
		if i+1 < len(tokens) && isNumeral(tokens[i+1].Text) {
			return true
		}
	}
	return false
}
