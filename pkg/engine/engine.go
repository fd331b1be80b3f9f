// Package engine composes the NLU stages into resolve and suggest calls and
// falls back to partial-intent, city-first and LLM guesses when no rule fires.
package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/tripserve/pkg/cache"
	"github.com/bastiangx/tripserve/pkg/gazetteer"
	"github.com/bastiangx/tripserve/pkg/nlu"
	"github.com/bastiangx/tripserve/pkg/pattern"
	"github.com/bastiangx/tripserve/pkg/suggest"
)

// Fallback confidences. They rank below every accepted rule match.
const (
	PartialIntentConfidence = 0.5
	IntentOpenerConfidence  = 0.4
	CityRouteConfidence     = 0.6
	BareCityConfidence      = 0.5
)

// Options injects the rule tables and collaborators. Zero fields get the built-in defaults.
type Options struct {
	Gazetteer   *gazetteer.Gazetteer
	Cache       cache.Cache
	EntityRules []nlu.RuleTable
	IntentRules []nlu.IntentTable
	Schemas     []nlu.Schema
}

// ResolveOptions tunes a single Resolve call.
type ResolveOptions struct {
	// SkipCache bypasses both cache lookup and store.
	SkipCache bool
}

// Engine is safe for concurrent use. Matches returned from the cache are
// shared and must be treated as read-only.
type Engine struct {
	extractor  *nlu.Extractor
	classifier *nlu.Classifier
	resolver   *nlu.Resolver
	generator  suggest.ISuggester
	cache      cache.Cache
}

// New validates every rule table and schema. Errors here are programmer errors.
func New(opts Options) (*Engine, error) {
	gaz := opts.Gazetteer
	if gaz == nil {
		gaz = gazetteer.Empty()
	}
	entities := opts.EntityRules
	if entities == nil {
		var err error
		if entities, err = nlu.DefaultEntityRules(); err != nil {
			return nil, err
		}
	}
	intents := opts.IntentRules
	if intents == nil {
		var err error
		if intents, err = nlu.DefaultIntentRules(); err != nil {
			return nil, err
		}
	}
	schemas := opts.Schemas
	if schemas == nil {
		schemas = nlu.DefaultSchemas()
	}

	extractor, err := nlu.NewExtractor(gaz, entities)
	if err != nil {
		return nil, err
	}
	var dates nlu.RuleTable
	for _, t := range entities {
		if t.Category == nlu.CatDates {
			dates = t
		}
	}
	resolver, err := nlu.NewResolver(schemas, dates)
	if err != nil {
		return nil, err
	}

	c := opts.Cache
	if c == nil {
		c = cache.Nop{}
	}
	return &Engine{
		extractor:  extractor,
		classifier: nlu.NewClassifier(gaz, intents),
		resolver:   resolver,
		generator:  suggest.NewGenerator(gaz),
		cache:      c,
	}, nil
}

// Resolve maps rawQuery to a RuleMatch. ok is false on a definitive miss.
// The query is resolved in its canonical form so that a cached match carries
// offsets valid for every spelling that shares its cache key.
func (e *Engine) Resolve(ctx context.Context, rawQuery string, opts ResolveOptions) (*nlu.RuleMatch, bool) {
	text := nlu.Canonical(rawQuery)
	if text == "" {
		return nil, false
	}
	if !opts.SkipCache {
		if m, ok := e.cache.Get(ctx, text); ok {
			log.Debugf("cache hit: %q", text)
			return m, true
		}
	}

	if c, ok := e.classifier.Classify(text); ok {
		bag := e.extractor.Extract(text, c.Intent)
		m := &nlu.RuleMatch{
			Intent:     c.Intent,
			Confidence: c.Confidence,
			Entities:   bag,
			NextSlot:   e.resolver.Next(text, c.Intent, bag),
			MatchText:  c.Matched,
		}
		if !opts.SkipCache {
			e.cache.Set(ctx, text, m)
		}
		return m, true
	}

	if m := partialIntent(text); m != nil {
		return m, true
	}
	if m := e.cityFirst(text); m != nil {
		return m, true
	}
	return nil, false
}

// Suggest renders suggestions for a match. rawQuery is the text as typed,
// trailing whitespace included.
func (e *Engine) Suggest(match *nlu.RuleMatch, max int, includePlaceholder bool, rawQuery string) []suggest.Suggestion {
	return e.generator.Generate(match, max, includePlaceholder, rawQuery)
}

// FilledSlots exposes the resolver's view of which slots the query already
// answers. match must come from Resolve.
func (e *Engine) FilledSlots(rawQuery string, match *nlu.RuleMatch) []nlu.Slot {
	if match == nil || match.Intent == nlu.IntentNone {
		return []nlu.Slot{}
	}
	return e.resolver.FilledSlots(nlu.Canonical(rawQuery), match.Intent, match.Entities)
}

func (e *Engine) ClearCache(ctx context.Context) error {
	return e.cache.Clear(ctx)
}

func (e *Engine) Stats() map[string]int {
	stats := make(map[string]int)
	for k, v := range e.generator.Stats() {
		stats[k] = v
	}
	for k, v := range e.cache.Stats() {
		stats["cache_"+k] = v
	}
	return stats
}

// longest first
var partialEndings = []string{
	"want to book a", "need to book a", "looking for a", "search for a",
	"book me a", "book me", "want to book", "need to book",
	"book a", "want a", "need a", "book", "want", "need",
}

var (
	intentOpeners = []string{"i want", "i need", "i am looking", "want", "need"}
	intentWords   = []string{"flight", "hotel", "train", "holiday", "cab", "ticket", "airline",
		"accommodation", "stay", "vacation", "package"}
)

var (
	partialEndingPatterns = anchored(partialEndings, `(?:^|\s)`, `$`)
	intentOpenerPatterns  = anchored(intentOpeners, `^`, `(?:\s|$)`)
)

func anchored(phrases []string, before, after string) []string {
	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = before + regexp.QuoteMeta(p) + after
	}
	return out
}

// partialIntent recognises a query that is about to name an intent.
func partialIntent(rawQuery string) *nlu.RuleMatch {
	q := cache.NormalizeKey(rawQuery)
	m := pattern.Default()
	if expr, _, ok := m.MatchAny(q, partialEndingPatterns); ok {
		log.Debugf("Partial intent %q via %s", q, expr)
		return intentMatch(PartialIntentConfidence, nil)
	}
	if _, _, ok := m.MatchAny(q, intentOpenerPatterns); !ok {
		return nil
	}
	for _, w := range intentWords {
		if strings.Contains(q, w) {
			return nil
		}
	}
	return intentMatch(IntentOpenerConfidence, nil)
}

func intentMatch(confidence float64, bag nlu.EntityBag) *nlu.RuleMatch {
	if bag == nil {
		bag = nlu.NewEntityBag()
	}
	return &nlu.RuleMatch{Confidence: confidence, Entities: bag, NextSlot: nlu.SlotIntent}
}

// cityFirst handles a route typed before any intent word: both ends known
// asks for the intent, an origin alone asks for the destination.
func (e *Engine) cityFirst(rawQuery string) *nlu.RuleMatch {
	bag := e.extractor.Extract(rawQuery, nlu.IntentNone)
	places := bag.Places()
	if len(places) == 0 {
		return nil
	}
	lower := strings.ToLower(rawQuery)
	route := nlu.AttributeRoute(rawQuery, bag)
	switch {
	case route.From != nil && route.To != nil:
		return intentMatch(CityRouteConfidence, bag)
	case route.From != nil:
		confidence := CityRouteConfidence
		if len(nlu.Tokenize(lower[route.From.End:])) == 0 && len(places) == 1 && route.From.Start == firstTokenStart(lower) {
			// nothing but the city itself
			confidence = BareCityConfidence
		}
		return &nlu.RuleMatch{Confidence: confidence, Entities: bag, NextSlot: nlu.SlotTo}
	}
	return nil
}

func firstTokenStart(s string) int {
	tokens := nlu.Tokenize(s)
	if len(tokens) == 0 {
		return -1
	}
	return tokens[0].Start
}
