// Package gazetteer holds the population-ranked place list used both to
// recognise cities in free text and to rank city suggestions by prefix.
//
// Names live in a patricia trie keyed by their lower-cased form with the
// population rank as the item, the same layout the completion trie uses for
// word frequencies. A Gazetteer is immutable once built and safe for any
// number of concurrent readers.
package gazetteer

import (
	"sort"
	"strings"

	"github.com/bastiangx/tripserve/pkg/pattern"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Place is a single gazetteer row.
type Place struct {
	Name       string
	Population int
}

// AliasKind tells what sort of code an alias is.
type AliasKind string

const (
	KindCity    AliasKind = "city"
	KindAirport AliasKind = "airport"
	KindStation AliasKind = "station"
)

// Alias maps a short code (NYC, BOM, NDLS) to a canonical place name.
type Alias struct {
	Code string    `toml:"code"`
	Name string    `toml:"name"`
	Kind AliasKind `toml:"kind"`
}

// Hit is one whole-word occurrence of a gazetteer entry inside a text.
type Hit struct {
	Name    string // canonical
	Matched string // as found in the text
	Kind    AliasKind
	Alias   bool
	Start   int
	End     int
}

type Gazetteer struct {
	trie       *patricia.Trie
	places     []Place
	lowerNames []string
	aliases    []Alias
	byCode     map[string]Alias
}

// New builds a gazetteer. Places are ranked by population, highest first;
// duplicate names keep their most populous row.
func New(places []Place, aliases []Alias) *Gazetteer {
	ranked := make([]Place, 0, len(places))
	seen := make(map[string]bool, len(places))

	sorted := append([]Place(nil), places...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Population > sorted[j].Population
	})
	for _, p := range sorted {
		name := strings.TrimSpace(p.Name)
		lower := strings.ToLower(name)
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		ranked = append(ranked, Place{Name: name, Population: p.Population})
	}

	g := &Gazetteer{
		trie:       patricia.NewTrie(),
		places:     ranked,
		lowerNames: make([]string, len(ranked)),
		byCode:     make(map[string]Alias, len(aliases)),
	}
	for i, p := range ranked {
		lower := strings.ToLower(p.Name)
		g.lowerNames[i] = lower
		g.trie.Insert(patricia.Prefix(lower), i)
	}
	for _, a := range aliases {
		code := strings.ToLower(strings.TrimSpace(a.Code))
		if code == "" || a.Name == "" {
			continue
		}
		if _, dup := g.byCode[code]; dup {
			continue
		}
		if a.Kind == "" {
			a.Kind = KindCity
		}
		a.Code = code
		g.byCode[code] = a
		g.aliases = append(g.aliases, a)
	}
	return g
}

// Empty returns a gazetteer with no entries.
func Empty() *Gazetteer {
	return New(nil, nil)
}

// Search returns up to limit names starting with prefix, most populous first,
// skipping any name in exclude. An empty prefix yields the global top-N.
func (g *Gazetteer) Search(prefix string, limit int, exclude ...string) []string {
	if limit <= 0 {
		return []string{}
	}
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[strings.ToLower(strings.TrimSpace(e))] = true
	}

	lower := strings.ToLower(strings.TrimSpace(prefix))
	var ranks []int
	if lower == "" {
		ranks = make([]int, len(g.places))
		for i := range ranks {
			ranks[i] = i
		}
	} else {
		err := g.trie.VisitSubtree(patricia.Prefix(lower), func(p patricia.Prefix, item patricia.Item) error {
			switch v := item.(type) {
			case int:
				ranks = append(ranks, v)
			default:
				log.Errorf("Unknown gazetteer item type: %T for %s", item, p)
			}
			return nil
		})
		if err != nil {
			log.Errorf("Error visiting gazetteer subtree: %v", err)
		}
		sort.Ints(ranks)
	}

	results := make([]string, 0, min(limit, len(ranks)))
	for _, r := range ranks {
		if skip[g.lowerNames[r]] {
			continue
		}
		results = append(results, g.places[r].Name)
		if len(results) == limit {
			break
		}
	}
	return results
}

// HasPrefix reports whether any name starts with prefix.
func (g *Gazetteer) HasPrefix(prefix string) bool {
	lower := strings.ToLower(strings.TrimSpace(prefix))
	if lower == "" {
		return false
	}
	found := false
	g.trie.VisitSubtree(patricia.Prefix(lower), func(patricia.Prefix, patricia.Item) error {
		found = true
		return patricia.SkipSubtree
	})
	return found
}

// IsMember is an exact, case-insensitive membership test.
func (g *Gazetteer) IsMember(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return false
	}
	return g.trie.Get(patricia.Prefix(lower)) != nil
}

// Resolve looks up an alias code.
func (g *Gazetteer) Resolve(code string) (Alias, bool) {
	a, ok := g.byCode[strings.ToLower(strings.TrimSpace(code))]
	return a, ok
}

// IsStationCode reports whether token is a known railway station code.
func (g *Gazetteer) IsStationCode(token string) bool {
	a, ok := g.Resolve(token)
	return ok && a.Kind == KindStation
}

// IsPlaceCode reports whether token is a known city or airport code.
func (g *Gazetteer) IsPlaceCode(token string) bool {
	a, ok := g.Resolve(token)
	return ok && a.Kind != KindStation
}

// Find returns every entry occurring in text as a whole word: names in rank
// order, then aliases in table order. Each entry contributes its first
// occurrence. A hit whose span lies inside a longer hit ("delhi" within
// "new delhi") is dropped.
func (g *Gazetteer) Find(text string) []Hit {
	lower := strings.ToLower(text)
	var hits []Hit
	for i, name := range g.lowerNames {
		if start, ok := pattern.IndexWord(lower, name); ok {
			hits = append(hits, Hit{
				Name:    g.places[i].Name,
				Matched: name,
				Kind:    KindCity,
				Start:   start,
				End:     start + len(name),
			})
		}
	}
	for _, a := range g.aliases {
		if start, ok := pattern.IndexWord(lower, a.Code); ok {
			hits = append(hits, Hit{
				Name:    a.Name,
				Matched: a.Code,
				Kind:    a.Kind,
				Alias:   true,
				Start:   start,
				End:     start + len(a.Code),
			})
		}
	}
	return dropNested(hits)
}

func dropNested(hits []Hit) []Hit {
	out := hits[:0:0]
	for i, h := range hits {
		nested := false
		for j, o := range hits {
			if i == j {
				continue
			}
			if o.Start <= h.Start && h.End <= o.End && (o.End-o.Start) > (h.End-h.Start) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, h)
		}
	}
	return out
}

// Len is the number of ranked places.
func (g *Gazetteer) Len() int {
	return len(g.places)
}

// Stats returns entry counts for health output.
func (g *Gazetteer) Stats() map[string]int {
	stations := 0
	for _, a := range g.aliases {
		if a.Kind == KindStation {
			stations++
		}
	}
	return map[string]int{
		"places":   len(g.places),
		"aliases":  len(g.aliases),
		"stations": stations,
	}
}
