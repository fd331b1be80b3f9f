package nlu

import (
	"fmt"
	"strings"

	"github.com/bastiangx/tripserve/pkg/gazetteer"
	"github.com/bastiangx/tripserve/pkg/pattern"
)

// Extractor pulls typed entities out of a query.
type Extractor struct {
	gaz    *gazetteer.Gazetteer
	tables []RuleTable
}

// NewExtractor validates tables and binds them to a gazetteer. A nil
// gazetteer behaves as an empty one.
func NewExtractor(gaz *gazetteer.Gazetteer, tables []RuleTable) (*Extractor, error) {
	if gaz == nil {
		gaz = gazetteer.Empty()
	}
	for _, t := range tables {
		if !isCategory(t.Category) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, t.Category)
		}
		if t.Category == CatCities || t.Category == CatStations {
			return nil, fmt.Errorf("%s is filled from the gazetteer, not a rule table", t.Category)
		}
		for i, r := range t.Rules {
			if r.Expr == nil {
				return nil, fmt.Errorf("%s rule %d: %w", t.Category, i, pattern.ErrInvalidPattern)
			}
		}
	}
	return &Extractor{gaz: gaz, tables: tables}, nil
}

// Extract returns an EntityBag for text. Intent gates the hotel, holiday and
// train tables; pass IntentNone when it is not known yet.
func (e *Extractor) Extract(text string, intent Intent) EntityBag {
	lower := strings.ToLower(text)
	bag := NewEntityBag()
	rawOK := len(lower) == len(text)

	seen := map[string]bool{}
	for _, h := range e.gaz.Find(lower) {
		category := CatCities
		if h.Kind == gazetteer.KindStation {
			category = CatStations
		}
		key := category + "\x00" + strings.ToLower(h.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		tag := string(h.Kind)
		if h.Alias && h.Kind == gazetteer.KindCity {
			tag = "alias"
		}
		bag[category] = append(bag[category], Entity{
			Text:  h.Matched,
			Type:  tag,
			Raw:   rawSlice(text, lower, h.Start, h.End, rawOK),
			Value: h.Name,
			Start: h.Start,
			End:   h.End,
		})
	}

	for _, t := range e.tables {
		if !t.Scope.applies(intent) {
			continue
		}
		for _, r := range t.Rules {
			hit, ok := pattern.Find(r.Expr, lower)
			if !ok {
				continue
			}
			bag[t.Category] = append(bag[t.Category], Entity{
				Text:  hit.Text,
				Type:  r.Tag,
				Raw:   rawSlice(text, lower, hit.Start, hit.End, rawOK),
				Start: hit.Start,
				End:   hit.End,
			})
			break
		}
	}
	return bag
}

// rawSlice returns the original-case text of a span when lower-casing kept
// byte offsets stable, otherwise the lower-cased span.
func rawSlice(text, lower string, start, end int, stable bool) string {
	if stable {
		return text[start:end]
	}
	return lower[start:end]
}
