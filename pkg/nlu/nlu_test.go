package nlu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bastiangx/tripserve/pkg/gazetteer"
)

type pipeline struct {
	gaz        *gazetteer.Gazetteer
	extractor  *Extractor
	classifier *Classifier
	resolver   *Resolver
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	gaz := gazetteer.Load("../../data/cities.csv", "../../data/aliases.toml")
	require.Greater(t, gaz.Len(), 0, "test data not found")

	entities, err := DefaultEntityRules()
	require.NoError(t, err)
	intents, err := DefaultIntentRules()
	require.NoError(t, err)
	ext, err := NewExtractor(gaz, entities)
	require.NoError(t, err)
	res, err := NewDefaultResolver()
	require.NoError(t, err)

	return &pipeline{gaz: gaz, extractor: ext, classifier: NewClassifier(gaz, intents), resolver: res}
}

// run classifies, extracts and resolves the next slot.
func (p *pipeline) run(query string) (Intent, EntityBag, Slot) {
	c, ok := p.classifier.Classify(query)
	if !ok {
		return IntentNone, p.extractor.Extract(query, IntentNone), SlotIntent
	}
	bag := p.extractor.Extract(query, c.Intent)
	return c.Intent, bag, p.resolver.Next(query, c.Intent, bag)
}
