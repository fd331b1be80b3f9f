/*
Package server implements msgpack IPC for travel query suggestions.

The server reads a stream of msgpack maps from stdin and writes one msgpack map
per request to stdout. Logs never go to stdout.

# IPC

Every request carries an optional id and a kind. Missing ids are replaced by a
generated UUID so replies can always be correlated.

	{"id": "req_001", "k": "suggest", "q": "flight from mum", "l": 5, "ph": true}

The reply lists suggestions for the next slot, with the detected intent, the
slot itself, where the answer came from and the time taken in microseconds:

	{"id": "req_001", "s": [{"t": "Mumbai", "e": "from", "c": 0.9, "s": true, "p": false}],
	 "i": "flight", "n": "from", "cf": 0.9, "src": "rule_based", "c": 1, "t": 412}

Other kinds:

	{"k": "resolve", "q": "hotel in goa"}    rule match only, with entities and filled slots
	{"k": "health"}                          status plus engine and cache stats
	{"k": "clear_cache"}                     drops every cached match
	{"k": "config", "max_suggestions": 5}    adjusts limits at runtime and saves them

Failed requests get CompletionError with an HTTP-like code.
*/
package server

import (
	"github.com/bastiangx/tripserve/pkg/engine"
	"github.com/bastiangx/tripserve/pkg/nlu"
	"github.com/bastiangx/tripserve/pkg/suggest"
)

// Request kinds.
const (
	KindSuggest    = "suggest"
	KindResolve    = "resolve"
	KindHealth     = "health"
	KindClearCache = "clear_cache"
	KindConfig     = "config"
)

// Request is the one message shape the server reads. Fields unused by a kind are ignored.
type Request struct {
	ID          string `msgpack:"id"`
	Kind        string `msgpack:"k"`
	Query       string `msgpack:"q"`
	Cursor      int    `msgpack:"cp,omitempty"`
	Limit       int    `msgpack:"l,omitempty"`
	Placeholder *bool  `msgpack:"ph,omitempty"`
	NoCache     bool   `msgpack:"nc,omitempty"`

	// config kind only
	MaxSuggestions     *int  `msgpack:"max_suggestions,omitempty"`
	MaxLimit           *int  `msgpack:"max_limit,omitempty"`
	DefaultPlaceholder *bool `msgpack:"default_placeholder,omitempty"`
}

// SuggestResponse answers a suggest request.
type SuggestResponse struct {
	ID          string               `msgpack:"id"`
	Suggestions []suggest.Suggestion `msgpack:"s"`
	Intent      nlu.Intent           `msgpack:"i"`
	NextSlot    nlu.Slot             `msgpack:"n"`
	Confidence  float64              `msgpack:"cf"`
	Source      engine.Source        `msgpack:"src"`
	Count       int                  `msgpack:"c"`
	TimeTaken   int64                `msgpack:"t"`
}

// ResolveResponse answers a resolve request. Matched is false on a definitive miss.
type ResolveResponse struct {
	ID         string        `msgpack:"id"`
	Matched    bool          `msgpack:"ok"`
	Intent     nlu.Intent    `msgpack:"i"`
	NextSlot   nlu.Slot      `msgpack:"n"`
	Confidence float64       `msgpack:"cf"`
	Entities   nlu.EntityBag `msgpack:"e,omitempty"`
	Filled     []nlu.Slot    `msgpack:"f"`
	TimeTaken  int64         `msgpack:"t"`
}

// StatusResponse answers health, clear_cache and config requests, and is the ready signal.
type StatusResponse struct {
	ID      string         `msgpack:"id,omitempty"`
	Status  string         `msgpack:"status"`
	Message string         `msgpack:"message,omitempty"`
	Stats   map[string]int `msgpack:"stats,omitempty"`
}

// CompletionError holds basic error information for failed requests
type CompletionError struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
