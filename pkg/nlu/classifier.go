package nlu

import (
	"strings"

	"github.com/bastiangx/tripserve/pkg/gazetteer"
)

const (
	// Threshold is the minimum rule confidence for an accepted intent.
	Threshold = 0.75
	// StationCodeConfidence is assigned when a station code decides train.
	StationCodeConfidence = 0.82
	// PlaceCodeConfidence is assigned when two city or airport codes decide flight.
	PlaceCodeConfidence = 0.80
)

// Classification is the classifier verdict. Confidences are ordinal weights
// for picking between rules, not probabilities.
type Classification struct {
	Intent     Intent
	Confidence float64
	Matched    string
	Fallback   bool
}

// Classifier scores text against per-intent rule tables.
type Classifier struct {
	gaz    *gazetteer.Gazetteer
	tables []IntentTable
}

func NewClassifier(gaz *gazetteer.Gazetteer, tables []IntentTable) *Classifier {
	if gaz == nil {
		gaz = gazetteer.Empty()
	}
	return &Classifier{gaz: gaz, tables: tables}
}

// Classify returns the best intent for text. ok is false when no rule clears
// Threshold and neither code fallback applies.
func (c *Classifier) Classify(text string) (Classification, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Classification{}, false
	}

	var best Classification
	for _, t := range c.tables {
		for _, r := range t.Rules {
			// strictly greater: ties keep the earlier rule
			if r.Confidence <= best.Confidence {
				continue
			}
			if loc := r.Expr.FindStringIndex(lower); loc != nil {
				best = Classification{Intent: t.Intent, Confidence: r.Confidence, Matched: lower[loc[0]:loc[1]]}
			}
		}
	}
	if best.Intent != IntentNone && best.Confidence >= Threshold {
		return best, true
	}

	placeCodes := map[string]bool{}
	for _, tok := range Tokenize(lower) {
		if c.gaz.IsStationCode(tok.Text) {
			return Classification{Intent: IntentTrain, Confidence: StationCodeConfidence, Matched: tok.Text, Fallback: true}, true
		}
		if c.gaz.IsPlaceCode(tok.Text) {
			placeCodes[tok.Text] = true
		}
	}
	if len(placeCodes) >= 2 {
		return Classification{Intent: IntentFlight, Confidence: PlaceCodeConfidence, Matched: lower, Fallback: true}, true
	}
	return Classification{}, false
}
