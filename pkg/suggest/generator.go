package suggest

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/tripserve/internal/utils"
	"github.com/bastiangx/tripserve/pkg/gazetteer"
	"github.com/bastiangx/tripserve/pkg/nlu"
)

// DefaultMax is used when Generate is called with max <= 0.
const DefaultMax = 8

var (
	intentList = []string{"flight", "hotel", "train", "holiday"}

	// canned values per slot; class depends on the intent
	cannedLists = map[nlu.Slot][]string{
		nlu.SlotDate:       {"today", "tomorrow", "this weekend", "next week", "next month"},
		nlu.SlotReturn:     {"same day", "tomorrow", "this weekend", "next week", "next month"},
		nlu.SlotCheckin:    {"today", "tomorrow", "this weekend", "next week", "next month"},
		nlu.SlotCheckout:   {"tomorrow", "in 2 days", "in 3 days", "next week"},
		nlu.SlotTime:       {"morning", "afternoon", "evening", "night"},
		nlu.SlotPassengers: {"1 passenger", "2 passengers", "3 passengers", "4 passengers", "2 adults and 1 child"},
		nlu.SlotGuests:     {"1", "2", "3", "4", "5", "6"},
		nlu.SlotRooms:      {"1", "2", "3", "4"},
		nlu.SlotNights:     {"1", "2", "3", "5", "7"},
		nlu.SlotQuota:      {"general", "tatkal", "ladies", "senior citizen"},
		nlu.SlotBerth:      {"lower", "middle", "upper", "side lower", "side upper"},
		nlu.SlotRoomType:   {"single", "double", "twin", "deluxe", "suite"},
		nlu.SlotAmenities:  {"wifi", "breakfast", "pool", "parking", "gym"},
		nlu.SlotCategory:   {"3 star", "4 star", "5 star", "budget", "luxury"},
		nlu.SlotTheme:      {"beach", "honeymoon", "adventure", "family", "hill station", "wildlife"},
		nlu.SlotBudget:     {"under 25k", "under 50k", "under 1 lakh", "luxury"},
	}
	classLists = map[nlu.Intent][]string{
		nlu.IntentFlight: {"economy", "premium economy", "business", "first"},
		nlu.IntentTrain:  {"sleeper", "3AC", "2AC", "1AC", "general"},
	}

	placeholders = map[nlu.Slot]string{
		nlu.SlotIntent:     "flight, hotel, train or holiday",
		nlu.SlotFrom:       "from city",
		nlu.SlotTo:         "to city",
		nlu.SlotDate:       "on date",
		nlu.SlotPassengers: "for N passengers",
		nlu.SlotReturn:     "returning on date",
		nlu.SlotClass:      "in class",
		nlu.SlotTime:       "at time",
		nlu.SlotQuota:      "in quota",
		nlu.SlotBerth:      "berth preference",
		nlu.SlotCity:       "in city",
		nlu.SlotCheckin:    "check-in date",
		nlu.SlotCheckout:   "check-out date",
		nlu.SlotNights:     "for N nights",
		nlu.SlotGuests:     "for N guests",
		nlu.SlotRooms:      "N rooms",
		nlu.SlotRoomType:   "room type",
		nlu.SlotAmenities:  "with amenities",
		nlu.SlotCategory:   "star rating",
		nlu.SlotTheme:      "theme",
		nlu.SlotBudget:     "budget",
	}

	// tokens that never start a city prefix ("to" would otherwise match Tokyo)
	connectorWords = map[string]bool{
		"from": true, "to": true, "in": true, "at": true, "near": true, "for": true, "with": true,
		"on": true, "and": true, "or": true, "via": true, "towards": true, "by": true, "of": true,
		"the": true, "a": true, "an": true, "departing": true, "leaving": true,
	}
)

func isCitySlot(s nlu.Slot) bool {
	return s == nlu.SlotFrom || s == nlu.SlotTo || s == nlu.SlotCity
}

// Generator builds suggestions from canned lists and the gazetteer.
type Generator struct {
	gaz *gazetteer.Gazetteer
}

func NewGenerator(gaz *gazetteer.Gazetteer) *Generator {
	if gaz == nil {
		gaz = gazetteer.Empty()
	}
	return &Generator{gaz: gaz}
}

// Generate returns suggestions for the next slot of match. A nil match, or one
// without intent, yields the intent list. A terminal match yields nothing. The
// placeholder, when requested, comes first and does not count against max.
func (g *Generator) Generate(match *nlu.RuleMatch, max int, includePlaceholder bool, rawQuery string) []Suggestion {
	if max <= 0 {
		max = DefaultMax
	}

	slot := nlu.SlotIntent
	intent := nlu.IntentNone
	confidence := 0.0
	if match != nil {
		intent, confidence = match.Intent, match.Confidence
		slot = match.NextSlot
		if slot == nlu.SlotNone {
			if intent != nlu.IntentNone {
				return []Suggestion{}
			}
			slot = nlu.SlotIntent
		}
	}

	var values []string
	switch {
	case slot == nlu.SlotIntent:
		values = intentList
	case slot == nlu.SlotClass:
		values = classLists[intent]
	case isCitySlot(slot):
		values = g.cities(match, slot, rawQuery, max)
	default:
		values = cannedLists[slot]
	}

	out := make([]Suggestion, 0, min(len(values), max)+1)
	if text, ok := placeholders[slot]; ok && includePlaceholder {
		out = append(out, Suggestion{
			Text:          text,
			EntityType:    string(slot),
			Confidence:    confidence,
			IsPlaceholder: true,
		})
	}
	filter := utils.NewSuggestionFilter()
	n := 0
	for _, v := range values {
		if n >= max {
			break
		}
		if !filter.ShouldInclude(v) {
			continue
		}
		n++
		out = append(out, Suggestion{
			Text:       v,
			EntityType: string(slot),
			Confidence: confidence,
			Selectable: true,
		})
	}
	log.Debugf("suggest: slot=%s intent=%s values=%d", slot, intent, len(out))
	return out
}

func (g *Generator) cities(match *nlu.RuleMatch, slot nlu.Slot, rawQuery string, limit int) []string {
	var exclude []string
	if match != nil && slot != nlu.SlotCity {
		if name := conjugateCity(match, slot, rawQuery); name != "" {
			exclude = append(exclude, name)
		}
	}
	return g.gaz.Search(g.CityPrefix(rawQuery), limit, exclude...)
}

// conjugateCity is the city already given for the other end of the route.
func conjugateCity(match *nlu.RuleMatch, slot nlu.Slot, rawQuery string) string {
	if strings.TrimSpace(rawQuery) == "" {
		places := match.Entities.Places()
		if slot == nlu.SlotTo && len(places) > 0 {
			return canonical(places[0])
		}
		return ""
	}
	route := nlu.AttributeRoute(nlu.Canonical(rawQuery), match.Entities)
	other := route.From
	if slot == nlu.SlotFrom {
		other = route.To
	}
	if other == nil {
		return ""
	}
	return canonical(*other)
}

func canonical(e nlu.Entity) string {
	if e.Value != "" {
		return e.Value
	}
	return e.Text
}

// CityPrefix returns the partially typed city at the end of rawQuery, or ""
// when the query ends in whitespace or the trailing word is a connector or a
// complete place. Two trailing words form a prefix only when the first alone
// already starts some place name ("new d").
func (g *Generator) CityPrefix(rawQuery string) string {
	if rawQuery == "" || unicode.IsSpace(rune(rawQuery[len(rawQuery)-1])) {
		return ""
	}
	tokens := nlu.Tokenize(rawQuery)
	n := len(tokens)
	if n == 0 || tokens[n-1].End != len(rawQuery) {
		return ""
	}
	last := tokens[n-1].Text
	if connectorWords[last] || g.complete(last) {
		return ""
	}
	if n >= 2 {
		first := tokens[n-2].Text
		if !connectorWords[first] && g.gaz.HasPrefix(first) && g.gaz.HasPrefix(first+" "+last) {
			return first + " " + last
		}
	}
	if g.gaz.HasPrefix(last) {
		return last
	}
	return ""
}

func (g *Generator) complete(token string) bool {
	if g.gaz.IsMember(token) {
		return true
	}
	_, ok := g.gaz.Resolve(token)
	return ok
}

func (g *Generator) Stats() map[string]int {
	stats := map[string]int{
		"intents":      len(intentList),
		"cannedSlots":  len(cannedLists),
		"placeholders": len(placeholders),
	}
	for k, v := range g.gaz.Stats() {
		stats[k] = v
	}
	return stats
}
