// Package pattern wraps regexp with a compiled-pattern cache and the small set
// of matching primitives the NLU rule tables are built from.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

// ErrInvalidPattern is returned when a rule pattern does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// Match is a single regex hit inside a text.
type Match struct {
	Text   string
	Start  int
	End    int
	Groups []string
}

// Matcher compiles patterns on first use and keeps them for the process lifetime.
// Safe for concurrent use.
type Matcher struct {
	compiled sync.Map
}

// NewMatcher returns an empty Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

var defaultMatcher = NewMatcher()

// Default returns the shared process-wide Matcher.
func Default() *Matcher {
	return defaultMatcher
}

// Compile builds a case-insensitive expression unless caseSensitive is set.
func Compile(expr string, caseSensitive bool) (*regexp.Regexp, error) {
	src := expr
	if !caseSensitive {
		src = "(?i)" + expr
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, expr, err)
	}
	return re, nil
}

// MustCompile is Compile for package-level rule tables.
func MustCompile(expr string) *regexp.Regexp {
	re, err := Compile(expr, false)
	if err != nil {
		panic(err)
	}
	return re
}

func (m *Matcher) get(expr string, caseSensitive bool) *regexp.Regexp {
	key := expr
	if caseSensitive {
		key = "cs:" + expr
	}
	if re, ok := m.compiled.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	re, err := Compile(expr, caseSensitive)
	if err != nil {
		log.Errorf("pattern: %v", err)
		return nil
	}
	actual, _ := m.compiled.LoadOrStore(key, re)
	return actual.(*regexp.Regexp)
}

// Match searches text for pattern. Patterns that fail to compile never match.
func (m *Matcher) Match(text, expr string, caseSensitive bool) (Match, bool) {
	re := m.get(expr, caseSensitive)
	if re == nil {
		return Match{}, false
	}
	return Find(re, text)
}

// MatchAny returns the first pattern in list order that matches text.
// Order is precedence: earlier patterns win even if a later one matches more.
func (m *Matcher) MatchAny(text string, exprs []string) (string, Match, bool) {
	for _, expr := range exprs {
		if hit, ok := m.Match(text, expr, false); ok {
			return expr, hit, true
		}
	}
	return "", Match{}, false
}

// ExtractGroups returns the capture groups of the first match, or an empty slice.
func (m *Matcher) ExtractGroups(text, expr string) []string {
	hit, ok := m.Match(text, expr, false)
	if !ok {
		return []string{}
	}
	return hit.Groups
}

// Find runs a precompiled expression.
func Find(re *regexp.Regexp, text string) (Match, bool) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}
	hit := Match{
		Text:   text[loc[0]:loc[1]],
		Start:  loc[0],
		End:    loc[1],
		Groups: make([]string, 0, len(loc)/2-1),
	}
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] < 0 {
			hit.Groups = append(hit.Groups, "")
			continue
		}
		hit.Groups = append(hit.Groups, text[loc[i]:loc[i+1]])
	}
	return hit, true
}

// HasWordBoundary reports whether word occurs in text as a whole word,
// case-insensitively.
func HasWordBoundary(text, word string) bool {
	_, ok := IndexWord(strings.ToLower(text), strings.ToLower(word))
	return ok
}

// IndexWord returns the byte offset of the first whole-word occurrence of word
// in text. Both arguments are expected to be lower-cased already.
func IndexWord(text, word string) (int, bool) {
	if word == "" {
		return 0, false
	}
	from := 0
	for from <= len(text)-len(word) {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return 0, false
		}
		start := from + i
		end := start + len(word)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return start, true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return 0, false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
