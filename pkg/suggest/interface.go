// Package suggest turns a resolved next slot into ranked candidate values for the search box.
package suggest

import "github.com/bastiangx/tripserve/pkg/nlu"

// Suggestion is one candidate completion. Placeholders are guidance text and never selectable.
type Suggestion struct {
	Text          string  `json:"text" msgpack:"t"`
	EntityType    string  `json:"entity_type" msgpack:"e"`
	Confidence    float64 `json:"confidence" msgpack:"c"`
	Selectable    bool    `json:"selectable" msgpack:"s"`
	IsPlaceholder bool    `json:"is_placeholder" msgpack:"p"`
}

// ISuggester defines the interface for suggestion generators
type ISuggester interface {
	// Generate returns up to max selectable suggestions for match, optionally preceded by a placeholder.
	Generate(match *nlu.RuleMatch, max int, includePlaceholder bool, rawQuery string) []Suggestion

	// Stats returns sizes of the backing lists
	Stats() map[string]int
}
