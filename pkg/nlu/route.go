package nlu

import "strings"

// Route is the positional reading of origin and destination in a query.
type Route struct {
	From *Entity
	To   *Entity
}

var (
	fromWords = tokenSet("from", "departing", "leaving")
	toWords   = tokenSet("to", "towards")
	// a "to" followed by one of these is an infinitive ("want to book"),
	// not a destination marker
	toVerbs = tokenSet("book", "fly", "go", "travel", "reach", "stay", "visit", "find", "get",
		"buy", "take", "see", "make", "plan", "check", "search", "leave", "spend", "explore",
		"know", "have", "be", "do", "catch")
)

func isInfinitiveTo(tokens []Token, i int) bool {
	return tokens[i].Text == "to" && i+1 < len(tokens) && toVerbs[tokens[i+1].Text]
}

type direction struct {
	from bool
	tok  Token
}

// AttributeRoute decides which recognised place is the origin and which the
// destination.
func AttributeRoute(text string, bag EntityBag) Route {
	return routeOf(strings.ToLower(text), Tokenize(text), bag.Places())
}

// routeOf applies, in order: a place right after "from"/"to" with no other
// direction word in between; a place directly before a bare "from" as the
// destination ("delhi from mumbai"); with no "from" word, the first place
// before any "to" as the origin; with no "to" word, the next place after the
// origin as the destination.
func routeOf(lower string, tokens []Token, places []Entity) Route {
	var dirs []direction
	hasFrom, hasTo := false, false
	firstTo := len(lower) + 1
	for i, t := range tokens {
		switch {
		case fromWords[t.Text]:
			dirs = append(dirs, direction{from: true, tok: t})
			hasFrom = true
		case toWords[t.Text] && !isInfinitiveTo(tokens, i):
			dirs = append(dirs, direction{from: false, tok: t})
			if !hasTo {
				firstTo = t.Start
			}
			hasTo = true
		}
	}

	next := func(d direction) *Entity {
		for i := range places {
			p := places[i]
			if p.Start < d.tok.End {
				continue
			}
			for _, o := range dirs {
				if o.tok.Start >= d.tok.End && o.tok.End <= p.Start {
					return nil
				}
			}
			return &p
		}
		return nil
	}
	same := func(a, b *Entity) bool {
		return a != nil && b != nil && a.Start == b.Start
	}

	var r Route
	for _, d := range dirs {
		if d.from {
			if p := next(d); p != nil {
				r.From = p
				break
			}
		}
	}
	for _, d := range dirs {
		if !d.from {
			if p := next(d); p != nil && !same(p, r.From) {
				r.To = p
				break
			}
		}
	}
	if r.To == nil {
	reversed:
		for _, d := range dirs {
			if !d.from {
				continue
			}
			for i := range places {
				p := places[i]
				if p.End <= d.tok.Start && strings.TrimSpace(lower[p.End:d.tok.Start]) == "" && !same(&p, r.From) {
					r.To = &p
					break reversed
				}
			}
		}
	}
	if r.From == nil && !hasFrom {
		for i := range places {
			p := places[i]
			if p.Start < firstTo && !same(&p, r.To) {
				r.From = &p
				break
			}
		}
	}
	if r.To == nil && !hasTo && r.From != nil {
		for i := range places {
			p := places[i]
			if p.Start > r.From.Start && !same(&p, r.From) {
				r.To = &p
				break
			}
		}
	}
	return r
}

func hasAnyToken(tokens []Token, set map[string]bool) bool {
	for _, t := range tokens {
		if set[t.Text] {
			return true
		}
	}
	return false
}
