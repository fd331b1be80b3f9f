package nlu

import (
	"fmt"
	"sort"
	"strings"
)

// KeywordHit is a schema keyword found in the query.
type KeywordHit struct {
	Phrase string
	Slot   Slot
	Start  int
	End    int
}

// dateBoundary slots end the text segment a date is read from.
var dateBoundary = map[Slot]bool{SlotDate: true, SlotReturn: true, SlotCheckin: true, SlotCheckout: true}

// "on" before one of these is not a date cue ("on vacation", "on a budget")
var onFollowers = tokenSet("vacation", "holiday", "holidays", "trip", "a", "an", "the", "budget", "tour")

// Evidence is everything the fillers and predicates of a schema may look at.
type Evidence struct {
	Text   string
	Intent Intent
	Tokens []Token
	Bag    EntityBag
	Hits   []KeywordHit
	Route  Route

	dates  RuleTable
	direct map[Slot]bool
	filled map[Slot]bool
}

// Filled reports whether slot is satisfied directly or by implication.
func (ev *Evidence) Filled(slot Slot) bool {
	return ev.filled[slot]
}

// Mentioned reports whether slot has a keyword cue or is directly filled.
func (ev *Evidence) Mentioned(slot Slot) bool {
	return ev.direct[slot] || len(ev.HitsFor(slot)) > 0
}

func (ev *Evidence) HasToken(word string) bool {
	for _, t := range ev.Tokens {
		if t.Text == word {
			return true
		}
	}
	return false
}

// HitsFor returns the keyword hits of slot in text order.
func (ev *Evidence) HitsFor(slot Slot) []KeywordHit {
	var out []KeywordHit
	for _, h := range ev.Hits {
		if h.Slot == slot {
			out = append(out, h)
		}
	}
	return out
}

// DateAfter reports whether a date expression follows a keyword of slot
// before the next date-bearing keyword.
func (ev *Evidence) DateAfter(slot Slot) bool {
	for i, h := range ev.Hits {
		if h.Slot != slot {
			continue
		}
		end := len(ev.Text)
		for _, n := range ev.Hits[i+1:] {
			if dateBoundary[n.Slot] && n.Start >= h.End {
				end = n.Start
				break
			}
		}
		segment := ev.Text[h.End:end]
		for _, r := range ev.dates.Rules {
			if r.Expr.MatchString(segment) {
				return true
			}
		}
	}
	return false
}

type compiledKeyword struct {
	words  []string
	phrase string
	slot   Slot
}

type compiledSchema struct {
	Schema
	keywords []compiledKeyword
}

// Resolver picks the next slot to ask for.
type Resolver struct {
	schemas map[Intent]*compiledSchema
	dates   RuleTable
}

// NewResolver validates schemas and indexes them by intent. dates supplies the
// rules used to read a date after a keyword.
func NewResolver(schemas []Schema, dates RuleTable) (*Resolver, error) {
	r := &Resolver{schemas: make(map[Intent]*compiledSchema, len(schemas)), dates: dates}
	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.schemas[s.Intent]; dup {
			return nil, fmt.Errorf("duplicate schema for %q", s.Intent)
		}
		cs := &compiledSchema{Schema: s}
		for _, k := range s.Keywords {
			phrase := strings.ToLower(strings.TrimSpace(k.Phrase))
			cs.keywords = append(cs.keywords, compiledKeyword{words: strings.Fields(phrase), phrase: phrase, slot: k.Slot})
		}
		// longest phrase first, declaration order otherwise
		sort.SliceStable(cs.keywords, func(i, j int) bool {
			return len(cs.keywords[i].words) > len(cs.keywords[j].words)
		})
		r.schemas[s.Intent] = cs
	}
	return r, nil
}

// NewDefaultResolver builds a Resolver from DefaultSchemas and the built-in
// date rules.
func NewDefaultResolver() (*Resolver, error) {
	tables, err := DefaultEntityRules()
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t.Category == CatDates {
			return NewResolver(DefaultSchemas(), t)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, CatDates)
}

// Schema returns the schema registered for intent.
func (r *Resolver) Schema(intent Intent) (Schema, bool) {
	cs, ok := r.schemas[intent]
	if !ok {
		return Schema{}, false
	}
	return cs.Schema, true
}

func (r *Resolver) evidence(cs *compiledSchema, text string, intent Intent, bag EntityBag) *Evidence {
	if bag == nil {
		bag = NewEntityBag()
	}
	lower := strings.ToLower(text)
	tokens := Tokenize(lower)
	ev := &Evidence{
		Text:   lower,
		Intent: intent,
		Tokens: tokens,
		Bag:    bag,
		Hits:   findKeywords(tokens, cs.keywords),
		Route:  routeOf(lower, tokens, bag.Places()),
		dates:  r.dates,
		direct: map[Slot]bool{},
		filled: map[Slot]bool{},
	}
	for _, slot := range cs.Slots() {
		if cs.Fill[slot](ev) {
			ev.direct[slot] = true
			ev.filled[slot] = true
		}
	}
	for _, imp := range cs.Implications {
		if impliedBy(ev, imp) {
			ev.filled[imp.Implies] = true
		}
	}
	return ev
}

// implications read direct evidence only, so they never chain
func impliedBy(ev *Evidence, imp Implication) bool {
	for _, s := range imp.Mentioned {
		if !ev.Mentioned(s) {
			return false
		}
	}
	for _, s := range imp.Filled {
		if !ev.direct[s] {
			return false
		}
	}
	return true
}

func findKeywords(tokens []Token, keywords []compiledKeyword) []KeywordHit {
	var hits []KeywordHit
	for i := 0; i < len(tokens); {
		matched := 0
		for _, k := range keywords {
			if !wordsAt(tokens, i, k.words) || skipKeyword(tokens, i, k.words) {
				continue
			}
			hits = append(hits, KeywordHit{
				Phrase: k.phrase,
				Slot:   k.slot,
				Start:  tokens[i].Start,
				End:    tokens[i+len(k.words)-1].End,
			})
			matched = len(k.words)
			break
		}
		if matched == 0 {
			matched = 1
		}
		i += matched
	}
	return hits
}

func wordsAt(tokens []Token, i int, words []string) bool {
	if len(words) == 0 || i+len(words) > len(tokens) {
		return false
	}
	for j, w := range words {
		if tokens[i+j].Text != w {
			return false
		}
	}
	return true
}

func skipKeyword(tokens []Token, i int, words []string) bool {
	if len(words) != 1 {
		return false
	}
	switch words[0] {
	case "to":
		return isInfinitiveTo(tokens, i)
	case "on":
		return i+1 < len(tokens) && onFollowers[tokens[i+1].Text]
	}
	return false
}

// Next returns the slot to ask for. With no intent it asks for the intent;
// SlotNone means the schema is complete.
func (r *Resolver) Next(text string, intent Intent, bag EntityBag) Slot {
	if intent == IntentNone {
		return SlotIntent
	}
	cs, ok := r.schemas[intent]
	if !ok {
		return SlotNone
	}
	ev := r.evidence(cs, text, intent, bag)

	if n := len(ev.Tokens); n > 0 && cs.Connector != nil {
		if last := ev.Tokens[n-1].Text; last == "with" || last == "for" {
			if s := cs.Connector(last, ev); s != SlotNone && cs.declares(s) && !ev.Filled(s) {
				return s
			}
		}
	}
	if n := len(ev.Hits); n > 0 {
		if last := ev.Hits[n-1]; !ev.Filled(last.Slot) {
			return last.Slot
		}
	}
	for _, p := range cs.Precedence {
		if !ev.Filled(p[0]) {
			return p[0]
		}
	}
	for _, s := range cs.Required {
		if !ev.Filled(s) {
			return s
		}
	}
	for _, o := range cs.Optional {
		if !ev.Filled(o.Slot) && o.When(ev) {
			return o.Slot
		}
	}
	return SlotNone
}

// FilledSlots lists the satisfied slots of intent in schema order.
func (r *Resolver) FilledSlots(text string, intent Intent, bag EntityBag) []Slot {
	cs, ok := r.schemas[intent]
	if !ok {
		return []Slot{}
	}
	ev := r.evidence(cs, text, intent, bag)
	out := []Slot{}
	for _, s := range cs.Slots() {
		if ev.Filled(s) {
			out = append(out, s)
		}
	}
	return out
}
