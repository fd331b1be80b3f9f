// Package nlu turns free-text travel queries into an intent, a bag of typed
// entities and the single next slot worth asking for.
//
// Every stage is a pure function of the query text. Rule tables are ordered
// slices built once at construction and never mutated, so an Extractor,
// Classifier or Resolver can be shared by any number of goroutines.
package nlu

import "sort"

// Intent is the coarse booking category.
type Intent string

const (
	IntentNone    Intent = ""
	IntentFlight  Intent = "flight"
	IntentHotel   Intent = "hotel"
	IntentTrain   Intent = "train"
	IntentHoliday Intent = "holiday"
)

// Intents lists the supported intents in scan order.
var Intents = []Intent{IntentFlight, IntentHotel, IntentTrain, IntentHoliday}

// Slot names a field of an intent schema.
type Slot string

const (
	SlotNone   Slot = ""
	SlotIntent Slot = "intent"

	SlotFrom       Slot = "from"
	SlotTo         Slot = "to"
	SlotDate       Slot = "date"
	SlotPassengers Slot = "passengers"
	SlotReturn     Slot = "return"
	SlotClass      Slot = "class"
	SlotTime       Slot = "time"
	SlotQuota      Slot = "quota"
	SlotBerth      Slot = "berth"

	SlotCity      Slot = "city"
	SlotCheckin   Slot = "checkin"
	SlotCheckout  Slot = "checkout"
	SlotNights    Slot = "nights"
	SlotGuests    Slot = "guests"
	SlotRooms     Slot = "rooms"
	SlotRoomType  Slot = "room_type"
	SlotAmenities Slot = "amenities"
	SlotCategory  Slot = "category"

	SlotTheme  Slot = "theme"
	SlotBudget Slot = "budget"
)

// Entity categories.
const (
	CatCities          = "cities"
	CatStations        = "stations"
	CatDates           = "dates"
	CatDateRanges      = "date_ranges"
	CatTimes           = "times"
	CatTimePreferences = "time_preferences"
	CatClasses         = "classes"
	CatPrice           = "price_constraints"
	CatPassengers      = "passengers"
	CatStops           = "stops"
	CatBaggage         = "baggage"
	CatTripType        = "trip_type"
	CatActions         = "actions"
	CatQuota           = "quota"
	CatBerths          = "berths"
	CatPNR             = "pnr"
	CatTrainNames      = "train_names"
	CatAvailability    = "availability"
	CatNights          = "nights"
	CatGuests          = "guests"
	CatRooms           = "rooms"
	CatRoomTypes       = "room_types"
	CatCategories      = "categories"
	CatAmenities       = "amenities"
	CatThemes          = "themes"
	CatHolidayBudget   = "holiday_budget"
	CatDurations       = "durations"
)

// Categories is every category key an EntityBag carries.
var Categories = []string{
	CatCities, CatStations, CatDates, CatDateRanges, CatTimes, CatTimePreferences,
	CatClasses, CatPrice, CatPassengers, CatStops, CatBaggage, CatTripType, CatActions,
	CatQuota, CatBerths, CatPNR, CatTrainNames, CatAvailability,
	CatNights, CatGuests, CatRooms, CatRoomTypes, CatCategories, CatAmenities,
	CatThemes, CatHolidayBudget, CatDurations,
}

func isCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Entity is one recognised occurrence. Offsets index the lower-cased query.
type Entity struct {
	Text  string `json:"text" msgpack:"t"`
	Type  string `json:"type" msgpack:"y"`
	Raw   string `json:"raw" msgpack:"r"`
	Value string `json:"value,omitempty" msgpack:"v,omitempty"`
	Start int    `json:"start" msgpack:"s"`
	End   int    `json:"end" msgpack:"e"`
}

// EntityBag maps category to occurrences. Bags built by NewEntityBag hold
// every category, empty when nothing matched.
type EntityBag map[string][]Entity

func NewEntityBag() EntityBag {
	bag := make(EntityBag, len(Categories))
	for _, c := range Categories {
		bag[c] = []Entity{}
	}
	return bag
}

// Has reports whether category has at least one occurrence.
func (b EntityBag) Has(category string) bool {
	return len(b[category]) > 0
}

// HasType reports whether category holds an occurrence with one of tags.
func (b EntityBag) HasType(category string, tags ...string) bool {
	for _, e := range b[category] {
		for _, t := range tags {
			if e.Type == t {
				return true
			}
		}
	}
	return false
}

// Texts returns the matched texts of a category.
func (b EntityBag) Texts(category string) []string {
	out := make([]string, 0, len(b[category]))
	for _, e := range b[category] {
		out = append(out, e.Text)
	}
	return out
}

// Places returns cities and stations together, ordered by position.
func (b EntityBag) Places() []Entity {
	places := make([]Entity, 0, len(b[CatCities])+len(b[CatStations]))
	places = append(places, b[CatCities]...)
	places = append(places, b[CatStations]...)
	sortByStart(places)
	return places
}

func sortByStart(es []Entity) {
	sort.SliceStable(es, func(i, j int) bool { return es[i].Start < es[j].Start })
}

// RuleMatch is the outcome of resolving one query. NextSlot is SlotNone both
// when every slot is filled and when nothing matched; Intent tells the two
// apart.
type RuleMatch struct {
	Intent     Intent    `json:"intent" msgpack:"i"`
	Confidence float64   `json:"confidence" msgpack:"c"`
	Entities   EntityBag `json:"entities" msgpack:"e"`
	NextSlot   Slot      `json:"next_slot" msgpack:"n"`
	MatchText  string    `json:"match_text" msgpack:"m"`
}

// Terminal reports whether an intent was found and nothing is left to ask.
func (m *RuleMatch) Terminal() bool {
	return m != nil && m.Intent != IntentNone && m.NextSlot == SlotNone
}
