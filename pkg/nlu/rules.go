package nlu

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/bastiangx/tripserve/pkg/pattern"
)

var (
	ErrUnknownCategory = errors.New("unknown entity category")
	ErrUnknownSlot     = errors.New("unknown slot")
	ErrUnknownIntent   = errors.New("unknown intent")
)

// Scope limits a rule table to the intents it makes sense for.
type Scope int

const (
	// ScopeCommon tables always run.
	ScopeCommon Scope = iota
	// ScopeTrain tables run for train or when no intent is known.
	ScopeTrain
	// ScopeHotel tables run only for hotel.
	ScopeHotel
	// ScopeHoliday tables run only for holiday.
	ScopeHoliday
)

func (s Scope) applies(intent Intent) bool {
	switch s {
	case ScopeTrain:
		return intent == IntentNone || intent == IntentTrain
	case ScopeHotel:
		return intent == IntentHotel
	case ScopeHoliday:
		return intent == IntentHoliday
	default:
		return true
	}
}

// Rule pairs a compiled expression with the sub-type it yields.
type Rule struct {
	Expr *regexp.Regexp
	Tag  string
}

// RuleTable is an ordered list of rules for one category. The first rule
// that matches wins, so the most specific phrasing comes first.
type RuleTable struct {
	Category string
	Scope    Scope
	Rules    []Rule
}

// NewRuleTable compiles (expr, tag) pairs in order.
func NewRuleTable(category string, scope Scope, pairs ...[2]string) (RuleTable, error) {
	if !isCategory(category) {
		return RuleTable{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	t := RuleTable{Category: category, Scope: scope, Rules: make([]Rule, 0, len(pairs))}
	for _, p := range pairs {
		re, err := pattern.Compile(p[0], false)
		if err != nil {
			return RuleTable{}, fmt.Errorf("%s table: %w", category, err)
		}
		t.Rules = append(t.Rules, Rule{Expr: re, Tag: p[1]})
	}
	return t, nil
}

// IntentRule scores an intent when Expr matches.
type IntentRule struct {
	Expr       *regexp.Regexp
	Confidence float64
}

// IntentTable is the ordered rule list of one intent.
type IntentTable struct {
	Intent Intent
	Rules  []IntentRule
}

type intentRuleSpec struct {
	expr       string
	confidence float64
}

// NewIntentTable compiles rules in order. Confidences must lie in [0,1].
func NewIntentTable(intent Intent, specs ...intentRuleSpec) (IntentTable, error) {
	known := false
	for _, i := range Intents {
		known = known || i == intent
	}
	if !known {
		return IntentTable{}, fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
	}
	t := IntentTable{Intent: intent, Rules: make([]IntentRule, 0, len(specs))}
	for _, s := range specs {
		if s.confidence < 0 || s.confidence > 1 {
			return IntentTable{}, fmt.Errorf("%s rule %q: confidence %v out of range", intent, s.expr, s.confidence)
		}
		re, err := pattern.Compile(s.expr, false)
		if err != nil {
			return IntentTable{}, fmt.Errorf("%s table: %w", intent, err)
		}
		t.Rules = append(t.Rules, IntentRule{Expr: re, Confidence: s.confidence})
	}
	return t, nil
}

const months = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

type tableSpec struct {
	category string
	scope    Scope
	rules    [][2]string
}

var entityTableDefs = []tableSpec{
	{CatDates, ScopeCommon, [][2]string{
		{`\bday after tomorrow\b`, "day_after_tomorrow"},
		{`\b(?:today|tonight)\b`, "today"},
		{`\b(?:tomorrow|tmrw|tmr)\b`, "tomorrow"},
		{`\b\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?\b`, "numeric"},
		{`\b\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?` + months + `\b`, "day_month"},
		{`\b` + months + `\s+\d{1,2}(?:st|nd|rd|th)?\b`, "month_day"},
		{`\b(?:this|next)\s+(?:week(?:end)?|month)\b`, "relative_period"},
		{`\b(?:next\s+|this\s+|coming\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`, "weekday"},
		{`\bin\s+\d+\s+(?:days?|weeks?)\b`, "relative_days"},
		{`\bweekend\b`, "weekend"},
	}},
	{CatDateRanges, ScopeCommon, [][2]string{
		{`\bbetween\s+[a-z0-9 ]+?\s+and\s+[a-z0-9]+`, "range"},
		{`\b\d{1,2}(?:st|nd|rd|th)?\s*(?:-|to|till|until)\s*\d{1,2}(?:st|nd|rd|th)?\s+` + months + `\b`, "range"},
		{`(?:\+/-|±|plus or minus)\s*\d+\s+days?\b`, "plus_minus"},
		{`\b(?:flexible dates?|flexible|any ?time)\b`, "flexible"},
	}},
	{CatTimes, ScopeCommon, [][2]string{
		{`\b\d{1,2}:\d{2}\s*(?:am|pm)?\b`, "clock"},
		{`\b\d{1,2}\s*(?:am|pm)\b`, "clock"},
		{`\bearly morning\b`, "early_morning"},
		{`\bmorning\b`, "morning"},
		{`\bafternoon\b`, "afternoon"},
		{`\bevening\b`, "evening"},
		{`\b(?:late night|overnight|night)\b`, "night"},
	}},
	{CatTimePreferences, ScopeCommon, [][2]string{
		{`\bred[- ]?eye\b`, "red_eye"},
		{`\b(?:before|after|by)\s+\d{1,2}(?::\d{2})?\s*(?:am|pm)?\b`, "window"},
		{`\b(?:earliest|first available)\b`, "earliest"},
		{`\b(?:latest|last)\s+(?:flight|train)\b`, "latest"},
	}},
	{CatClasses, ScopeCommon, [][2]string{
		{`\bpremium economy\b`, "premium_economy"},
		{`\bbusiness(?:\s+class)?\b`, "business"},
		{`\b(?:first ac|1\s?ac)\b`, "1ac"},
		{`\b(?:second ac|2\s?ac|two tier)\b`, "2ac"},
		{`\b(?:third ac|3\s?ac|three tier)\b`, "3ac"},
		{`\bsleeper\b`, "sleeper"},
		{`\bchair car\b`, "chair_car"},
		{`\bnon[- ]?ac\b`, "non_ac"},
		{`\bac\b`, "ac"},
		{`\bfirst\s+class\b`, "first"},
		{`\beconomy\b`, "economy"},
	}},
	{CatPrice, ScopeCommon, [][2]string{
		{`\b(?:under|below|less than|within|upto|up to|max(?:imum)?)\s*(?:rs\.?|inr|usd)?\s*[₹$]?\s*\d[\d,]*k?\b`, "max"},
		{`\b(?:above|over|more than|min(?:imum)?)\s*(?:rs\.?|inr|usd)?\s*[₹$]?\s*\d[\d,]*k?\b`, "min"},
		{`\b(?:cheapest|lowest fare|low cost|cheap)\b`, "cheapest"},
	}},
	{CatPassengers, ScopeCommon, [][2]string{
		{`\b\d+\s+adults?\s+and\s+\d+\s+(?:child|children|kids?|infants?)\b`, "mixed"},
		{`\b\d+\s+adults?\b`, "adults"},
		{`\b\d+\s+(?:passengers?|people|persons|pax|travell?ers?|tickets?|seats?)\b`, "count"},
		{`\b\d+\s+(?:child|children|kids?|infants?)\b`, "children"},
		{`\bfamily of\s+\d+\b`, "family"},
		{`\b(?:solo|alone|just me)\b`, "solo"},
	}},
	{CatStops, ScopeCommon, [][2]string{
		{`\b(?:non[- ]?stop|direct)\b`, "non_stop"},
		{`\b(?:one|1|single)[- ]stop\b`, "one_stop"},
		{`\b(?:two|2|multiple|multi)[- ]stops?\b`, "multi_stop"},
	}},
	{CatBaggage, ScopeCommon, [][2]string{
		{`\bcabin (?:baggage|bag|luggage)\b`, "cabin_only"},
		{`\b(?:extra|additional) (?:baggage|luggage)\b`, "extra"},
		{`\b\d+\s*kgs?\b`, "weight"},
		{`\b(?:check-?in|checked) (?:baggage|bag|luggage)\b`, "checked"},
	}},
	{CatTripType, ScopeCommon, [][2]string{
		{`\bround[- ]?trip\b|\breturn (?:flight|ticket|trip|journey)\b|\bto and fro\b`, "round_trip"},
		{`\bone[- ]?way\b`, "one_way"},
		{`\bmulti[- ]?city\b`, "multi_city"},
	}},
	{CatActions, ScopeCommon, [][2]string{
		{`\b(?:confirm|proceed|book it|book now)\b`, "confirm"},
		{`\bcancel\b`, "cancel"},
		{`\b(?:modify|reschedule|change)\b`, "modify"},
		{`\bcompare\b`, "compare"},
	}},
	{CatQuota, ScopeTrain, [][2]string{
		{`\bpremium tatkal\b`, "premium_tatkal"},
		{`\btatkal\b`, "tatkal"},
		{`\bladies(?:\s+quota)?\b`, "ladies"},
		{`\bsenior citizen\b`, "senior_citizen"},
		{`\b(?:general|gn)\s+quota\b`, "general"},
	}},
	{CatBerths, ScopeTrain, [][2]string{
		{`\bside lower\b`, "side_lower"},
		{`\bside upper\b`, "side_upper"},
		{`\blower(?:\s+berth)?\b`, "lower"},
		{`\bmiddle(?:\s+berth)?\b`, "middle"},
		{`\bupper(?:\s+berth)?\b`, "upper"},
	}},
	{CatPNR, ScopeTrain, [][2]string{
		{`\bpnr\s*(?:no\.?|number)?\s*[:#]?\s*\d{10}\b`, "number"},
		{`\bpnr\b`, "status"},
	}},
	{CatTrainNames, ScopeTrain, [][2]string{
		{`\b(?:rajdhani|shatabdi|duronto|vande bharat|garib rath|tejas|humsafar)\b`, "named"},
		{`\b\d{5}\b`, "number"},
	}},
	{CatAvailability, ScopeTrain, [][2]string{
		{`\brac\b`, "rac"},
		{`\b(?:waitlist(?:ed)?|waiting list|wl)\b`, "waitlist"},
		{`\b(?:available|availability|seats? left)\b`, "available"},
	}},
	{CatNights, ScopeHotel, [][2]string{
		{`\b\d+\s*-?\s*nights?\b`, "nights"},
		{`\b\d+\s*-?\s*days?\b`, "days"},
		{`\b(?:a|one)\s+(?:week|night)\b`, "single"},
	}},
	{CatGuests, ScopeHotel, [][2]string{
		{`\b\d+\s+adults?\s+and\s+\d+\s+(?:child|children|kids?)\b`, "mixed"},
		{`\b\d+\s+(?:guests?|people|persons|adults?|pax)\b`, "count"},
		{`\b(?:couple|two of us)\b`, "couple"},
	}},
	{CatRooms, ScopeHotel, [][2]string{
		{`\b\d+\s+rooms?\b`, "count"},
	}},
	{CatRoomTypes, ScopeHotel, [][2]string{
		{`\b(?:suite|presidential suite)\b`, "suite"},
		{`\bdeluxe\b`, "deluxe"},
		{`\b(?:double|king|queen)(?:\s+bed)?(?:\s+room)?\b`, "double"},
		{`\btwin(?:\s+room)?\b`, "twin"},
		{`\bsingle(?:\s+room)?\b`, "single"},
	}},
	{CatCategories, ScopeHotel, [][2]string{
		{`\b[1-7]\s*-?\s*star\b`, "star"},
		{`\b(?:luxury|premium)\b`, "luxury"},
		{`\b(?:budget|cheap|economy)\b`, "budget"},
		{`\b(?:boutique|resort|hostel|homestay|villa)\b`, "property_type"},
	}},
	{CatAmenities, ScopeHotel, [][2]string{
		{`\b(?:swimming pool|pool)\b`, "pool"},
		{`\b(?:wifi|wi-fi)\b`, "wifi"},
		{`\bbreakfast\b`, "breakfast"},
		{`\bparking\b`, "parking"},
		{`\b(?:gym|spa)\b`, "wellness"},
		{`\b(?:sea view|balcony)\b`, "view"},
	}},
	{CatThemes, ScopeHoliday, [][2]string{
		{`\bhoneymoon\b`, "honeymoon"},
		{`\bbeach\b`, "beach"},
		{`\badventure\b`, "adventure"},
		{`\bfamily\b`, "family"},
		{`\b(?:pilgrimage|spiritual)\b`, "pilgrimage"},
		{`\bhill station\b`, "hills"},
		{`\bwildlife\b`, "wildlife"},
	}},
	{CatHolidayBudget, ScopeHoliday, [][2]string{
		{`\b(?:under|below|within|upto|up to)\s*(?:rs\.?|inr)?\s*[₹$]?\s*\d[\d,]*k?\b`, "max"},
		{`\b(?:luxury|premium)\b`, "luxury"},
		{`\bbudget\b`, "budget"},
	}},
	{CatDurations, ScopeHoliday, [][2]string{
		{`\b\d+\s*-?\s*nights?\b`, "nights"},
		{`\b\d+\s*-?\s*days?\b`, "days"},
		{`\b(?:week[- ]long|a week|one week)\b`, "week"},
	}},
}

// DefaultEntityRules compiles the built-in entity tables. The result is a
// fresh value each call; callers own it.
func DefaultEntityRules() ([]RuleTable, error) {
	tables := make([]RuleTable, 0, len(entityTableDefs))
	for _, def := range entityTableDefs {
		t, err := NewRuleTable(def.category, def.scope, def.rules...)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

const bookVerbs = `(?:book|booking|want|need|looking for|search(?:ing)? for|find|get|reserve|show)(?:\s+me)?`

var intentTableDefs = []struct {
	intent Intent
	rules  []intentRuleSpec
}{
	{IntentFlight, []intentRuleSpec{
		{`\b` + bookVerbs + `\s+(?:an?\s+)?(?:cheap\s+)?(?:flights?|air\s?tickets?|plane tickets?|airplane)\b`, 0.95},
		{`\b(?:flights?|fly|flying)\s+(?:from|to|on|for|between|out of)\b`, 0.90},
		{`\b(?:airport|airfare|layover|boarding pass)\b`, 0.85},
		{`\b(?:flights?|airlines?|aircraft|fly|flying)\b`, 0.80},
	}},
	{IntentHotel, []intentRuleSpec{
		{`\b` + bookVerbs + `\s+(?:an?\s+)?(?:hotels?|stay|accommodation|rooms?|place to stay)\b`, 0.95},
		{`\b(?:hotels?|stay|accommodation|rooms?)\s+(?:in|at|for|from|near)\b`, 0.90},
		{`\b(?:check[- ]?in|check[- ]?out|checking (?:in|out)|suite|deluxe room)\b`, 0.85},
		{`\b(?:hotels?|lodging|resort|guest ?house|homestay|hostel)\b`, 0.80},
	}},
	{IntentTrain, []intentRuleSpec{
		{`\b` + bookVerbs + `\s+(?:an?\s+)?(?:trains?|train tickets?|railway tickets?|rail)\b`, 0.95},
		{`\b(?:trains?|railway|rail)\s+(?:from|to|on|for|between)\b`, 0.90},
		{`\b(?:pnr|tatkal|berth|sleeper|3ac|2ac|1ac|rajdhani|shatabdi|platform|station)\b`, 0.85},
		{`\b(?:trains?|railways?|irctc)\b`, 0.80},
	}},
	{IntentHoliday, []intentRuleSpec{
		{`\b(?:` + bookVerbs + `|plan|planning)\s+(?:an?\s+|my\s+)?(?:holidays?|vacations?|holiday packages?|tour packages?|tours?|getaway)\b`, 0.95},
		{`\b(?:holidays?|vacations?|packages?|tours?|getaway)\s+(?:to|in|for|at)\b`, 0.90},
		{`\b(?:honeymoon|itinerary|sightseeing)\b`, 0.85},
		{`\b(?:holidays?|vacations?|tour packages?|holiday packages?)\b`, 0.80},
	}},
}

// DefaultIntentRules compiles the built-in intent tables in scan order.
func DefaultIntentRules() ([]IntentTable, error) {
	tables := make([]IntentTable, 0, len(intentTableDefs))
	for _, def := range intentTableDefs {
		t, err := NewIntentTable(def.intent, def.rules...)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}
