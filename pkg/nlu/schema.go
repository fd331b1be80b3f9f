package nlu

import (
	"fmt"
	"strings"
)

// Filler reports whether a slot is satisfied by the evidence.
type Filler func(ev *Evidence) bool

// Predicate gates an optional slot.
type Predicate func(ev *Evidence) bool

// OptionalSlot is asked for only when When holds.
type OptionalSlot struct {
	Slot Slot
	When Predicate
}

// KeywordRule marks Phrase as a cue for Slot. Multi-word phrases are space
// separated and matched against whole tokens.
type KeywordRule struct {
	Phrase string
	Slot   Slot
}

// Implication treats Implies as satisfied when every slot in Mentioned is at
// least mentioned and every slot in Filled is directly filled.
type Implication struct {
	Mentioned []Slot
	Filled    []Slot
	Implies   Slot
}

// Schema is the slot layout of one intent.
type Schema struct {
	Intent       Intent
	Required     []Slot
	Optional     []OptionalSlot
	Fill         map[Slot]Filler
	Keywords     []KeywordRule
	Implications []Implication
	// Precedence pairs (a, b): a is asked before b whatever the keyword order.
	Precedence [][2]Slot
	// Connector picks the target of a trailing "with"/"for", or SlotNone.
	Connector func(word string, ev *Evidence) Slot
}

func (s Schema) declares(slot Slot) bool {
	for _, r := range s.Required {
		if r == slot {
			return true
		}
	}
	for _, o := range s.Optional {
		if o.Slot == slot {
			return true
		}
	}
	return false
}

// Slots lists required then optional slots.
func (s Schema) Slots() []Slot {
	out := append([]Slot(nil), s.Required...)
	for _, o := range s.Optional {
		out = append(out, o.Slot)
	}
	return out
}

// Validate rejects schemas that reference undeclared slots or lack fillers.
func (s Schema) Validate() error {
	known := false
	for _, i := range Intents {
		known = known || i == s.Intent
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownIntent, s.Intent)
	}
	for _, slot := range s.Slots() {
		if s.Fill[slot] == nil {
			return fmt.Errorf("%s schema: no filler for %q", s.Intent, slot)
		}
	}
	for _, o := range s.Optional {
		if o.When == nil {
			return fmt.Errorf("%s schema: optional %q has no predicate", s.Intent, o.Slot)
		}
	}
	check := func(where string, slot Slot) error {
		if !s.declares(slot) {
			return fmt.Errorf("%s schema %s: %w %q", s.Intent, where, ErrUnknownSlot, slot)
		}
		return nil
	}
	for slot := range s.Fill {
		if err := check("filler", slot); err != nil {
			return err
		}
	}
	for _, k := range s.Keywords {
		if strings.TrimSpace(k.Phrase) == "" {
			return fmt.Errorf("%s schema: empty keyword for %q", s.Intent, k.Slot)
		}
		if err := check("keyword "+k.Phrase, k.Slot); err != nil {
			return err
		}
	}
	for _, imp := range s.Implications {
		for _, slot := range append(append([]Slot{imp.Implies}, imp.Mentioned...), imp.Filled...) {
			if err := check("implication", slot); err != nil {
				return err
			}
		}
	}
	for _, p := range s.Precedence {
		for _, slot := range p {
			if err := check("precedence", slot); err != nil {
				return err
			}
		}
	}
	return nil
}

var (
	passengerWords = []string{"passenger", "passengers", "people", "persons", "person", "adult", "adults",
		"child", "children", "kids", "infant", "infants", "traveller", "travellers", "traveler", "travelers",
		"ticket", "tickets", "seat", "seats", "pax"}
	guestWords = []string{"guest", "guests", "people", "persons", "person", "adult", "adults",
		"child", "children", "kids", "pax", "traveller", "travellers", "traveler", "travelers", "passengers"}
	hotelNightWords   = []string{"night", "nights"}
	holidayNightWords = []string{"night", "nights", "day", "days"}
	roomWords         = []string{"room", "rooms"}

	passengerSet      = tokenSet(passengerWords...)
	guestSet          = tokenSet(guestWords...)
	hotelNightSet     = tokenSet(hotelNightWords...)
	holidayNightSet   = tokenSet(holidayNightWords...)
	roomSet           = tokenSet(roomWords...)
	passengerKeywords = []string{"passenger", "passengers", "people", "persons", "adult", "adults",
		"children", "kids", "travellers", "travelers", "pax"}
	guestKeywords = []string{"guest", "guests", "people", "persons", "adult", "adults", "children",
		"kids", "pax", "travellers", "travelers"}
)

func keywords(slot Slot, phrases ...string) []KeywordRule {
	out := make([]KeywordRule, len(phrases))
	for i, p := range phrases {
		out[i] = KeywordRule{Phrase: p, Slot: slot}
	}
	return out
}

func concat(groups ...[]KeywordRule) []KeywordRule {
	var out []KeywordRule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func always(*Evidence) bool { return true }

func hasEntity(category string) Filler {
	return func(ev *Evidence) bool { return ev.Bag.Has(category) }
}

func mentioned(slot Slot) Predicate {
	return func(ev *Evidence) bool { return ev.Mentioned(slot) }
}

func quantified(category string, set map[string]bool) Filler {
	return func(ev *Evidence) bool {
		return (category != "" && ev.Bag.Has(category)) || hasQuantified(ev.Tokens, set, true)
	}
}

func fillFrom(ev *Evidence) bool { return ev.Route.From != nil }
func fillTo(ev *Evidence) bool   { return ev.Route.To != nil }

func fillDate(ev *Evidence) bool {
	return ev.Bag.Has(CatDates) || ev.Bag.Has(CatDateRanges)
}

func fillTime(ev *Evidence) bool {
	return ev.Bag.Has(CatTimes) || ev.Bag.Has(CatTimePreferences)
}

func fillReturn(ev *Evidence) bool {
	return ev.Bag.Has(CatDateRanges) || ev.DateAfter(SlotReturn)
}

func fillHotelCity(ev *Evidence) bool {
	return len(ev.Bag.Places()) > 0
}

// holidays have no origin slot: any place other than the one right after
// "from" is the destination, so "goa holiday from next week" keeps goa
func fillHolidayTo(ev *Evidence) bool {
	if ev.Route.To != nil {
		return true
	}
	var origin *Entity
	if hasAnyToken(ev.Tokens, fromWords) {
		origin = ev.Route.From
	}
	for _, p := range ev.Bag.Places() {
		if origin == nil || p.Start != origin.Start {
			return true
		}
	}
	return false
}

func fillCheckin(ev *Evidence) bool {
	if len(ev.HitsFor(SlotCheckin)) > 0 {
		return ev.DateAfter(SlotCheckin)
	}
	if !ev.Bag.Has(CatDates) {
		return false
	}
	out := ev.HitsFor(SlotCheckout)
	return len(out) == 0 || ev.Bag[CatDates][0].Start < out[0].Start
}

func fillCheckout(ev *Evidence) bool {
	return ev.DateAfter(SlotCheckout)
}

func fillBudget(ev *Evidence) bool {
	return ev.Bag.Has(CatHolidayBudget) || ev.Bag.Has(CatPrice)
}

func roundTrip(ev *Evidence) bool {
	return ev.Bag.HasType(CatTripType, "round_trip") || ev.Mentioned(SlotReturn)
}

func berthClass(ev *Evidence) bool {
	return ev.Bag.HasType(CatClasses, "sleeper", "1ac", "2ac", "3ac", "ac")
}

func withPresent(ev *Evidence) bool {
	return ev.HasToken("with")
}

func passengersConnector(_ string, ev *Evidence) Slot {
	if !ev.Filled(SlotPassengers) {
		return SlotPassengers
	}
	return SlotNone
}

func hotelConnector(word string, ev *Evidence) Slot {
	if !ev.Filled(SlotGuests) {
		return SlotGuests
	}
	switch {
	case word == "with" && !ev.Filled(SlotAmenities):
		return SlotAmenities
	case word == "for" && !ev.Filled(SlotNights):
		return SlotNights
	}
	return SlotNone
}

func holidayConnector(_ string, ev *Evidence) Slot {
	if !ev.Filled(SlotGuests) {
		return SlotGuests
	}
	return SlotNone
}

var routeKeywords = concat(
	keywords(SlotFrom, "from", "departing", "leaving", "origin"),
	keywords(SlotTo, "to", "towards", "destination"),
)

// DefaultSchemas returns the built-in slot layouts for every intent.
func DefaultSchemas() []Schema {
	return []Schema{
		{
			Intent:   IntentFlight,
			Required: []Slot{SlotFrom, SlotTo, SlotDate, SlotPassengers},
			Optional: []OptionalSlot{
				{SlotReturn, roundTrip},
				{SlotClass, always},
				{SlotTime, mentioned(SlotTime)},
			},
			Fill: map[Slot]Filler{
				SlotFrom:       fillFrom,
				SlotTo:         fillTo,
				SlotDate:       fillDate,
				SlotPassengers: quantified(CatPassengers, passengerSet),
				SlotReturn:     fillReturn,
				SlotClass:      hasEntity(CatClasses),
				SlotTime:       fillTime,
			},
			Keywords: concat(routeKeywords,
				keywords(SlotDate, "on", "date", "departure date"),
				keywords(SlotPassengers, passengerKeywords...),
				keywords(SlotReturn, "return", "returning", "coming back"),
				keywords(SlotClass, "class", "cabin"),
				keywords(SlotTime, "at", "time", "departure time"),
			),
			Precedence: [][2]Slot{{SlotFrom, SlotTo}},
			Connector:  passengersConnector,
		},
		{
			Intent:   IntentHotel,
			Required: []Slot{SlotCity, SlotCheckin, SlotNights, SlotCheckout, SlotGuests},
			Optional: []OptionalSlot{
				{SlotRooms, mentioned(SlotRooms)},
				{SlotRoomType, always},
				{SlotAmenities, withPresent},
				// catch-all once the core booking is complete
				{SlotCategory, always},
			},
			Fill: map[Slot]Filler{
				SlotCity:      fillHotelCity,
				SlotCheckin:   fillCheckin,
				SlotNights:    quantified(CatNights, hotelNightSet),
				SlotCheckout:  fillCheckout,
				SlotGuests:    quantified(CatGuests, guestSet),
				SlotRooms:     quantified(CatRooms, roomSet),
				SlotRoomType:  hasEntity(CatRoomTypes),
				SlotAmenities: hasEntity(CatAmenities),
				SlotCategory:  hasEntity(CatCategories),
			},
			Keywords: concat(
				keywords(SlotCity, "in", "at", "near"),
				keywords(SlotCheckin, "check-in", "checkin", "check in", "checking in", "arriving", "from", "starting"),
				keywords(SlotCheckout, "check-out", "checkout", "check out", "checking out", "till", "until", "leaving"),
				keywords(SlotNights, hotelNightWords...),
				keywords(SlotGuests, guestKeywords...),
				keywords(SlotRooms, "rooms"),
				keywords(SlotRoomType, "room type"),
				keywords(SlotAmenities, "amenities"),
				keywords(SlotCategory, "star", "stars", "rating"),
			),
			Implications: []Implication{
				{Mentioned: []Slot{SlotCheckin, SlotCheckout}, Implies: SlotNights},
				{Filled: []Slot{SlotCheckin, SlotNights}, Implies: SlotCheckout},
			},
			Connector: hotelConnector,
		},
		{
			Intent:   IntentTrain,
			Required: []Slot{SlotFrom, SlotTo, SlotDate, SlotClass, SlotPassengers},
			Optional: []OptionalSlot{
				{SlotQuota, always},
				{SlotBerth, berthClass},
			},
			Fill: map[Slot]Filler{
				SlotFrom:       fillFrom,
				SlotTo:         fillTo,
				SlotDate:       fillDate,
				SlotClass:      hasEntity(CatClasses),
				SlotPassengers: quantified(CatPassengers, passengerSet),
				SlotQuota:      hasEntity(CatQuota),
				SlotBerth:      hasEntity(CatBerths),
			},
			Keywords: concat(routeKeywords,
				keywords(SlotDate, "on", "date"),
				keywords(SlotClass, "class", "coach"),
				keywords(SlotPassengers, passengerKeywords...),
				keywords(SlotQuota, "quota"),
				keywords(SlotBerth, "berth", "seat preference"),
			),
			Precedence: [][2]Slot{{SlotFrom, SlotTo}},
			Connector:  passengersConnector,
		},
		{
			Intent:   IntentHoliday,
			Required: []Slot{SlotTo, SlotDate, SlotNights, SlotGuests},
			Optional: []OptionalSlot{
				{SlotTheme, always},
				{SlotBudget, always},
			},
			Fill: map[Slot]Filler{
				SlotTo:     fillHolidayTo,
				SlotDate:   fillDate,
				SlotNights: quantified(CatDurations, holidayNightSet),
				SlotGuests: quantified("", guestSet),
				SlotTheme:  hasEntity(CatThemes),
				SlotBudget: fillBudget,
			},
			Keywords: concat(
				keywords(SlotTo, "to", "destination"),
				keywords(SlotDate, "on", "starting", "from", "departing"),
				keywords(SlotNights, holidayNightWords...),
				keywords(SlotGuests, guestKeywords...),
				keywords(SlotTheme, "theme"),
				keywords(SlotBudget, "budget"),
			),
			Precedence: [][2]Slot{{SlotTo, SlotDate}},
			Connector:  holidayConnector,
		},
	}
}
