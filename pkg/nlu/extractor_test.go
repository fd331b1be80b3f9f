package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlacesAndDates(t *testing.T) {
	p := newPipeline(t)
	bag := p.extractor.Extract("Flight from BOM to Delhi on 5th March", IntentFlight)

	require.Len(t, bag[CatCities], 2)
	// names come before aliases
	assert.Equal(t, "delhi", bag[CatCities][0].Text)
	assert.Equal(t, "Delhi", bag[CatCities][0].Raw)
	assert.Equal(t, "city", bag[CatCities][0].Type)
	assert.Equal(t, "bom", bag[CatCities][1].Text)
	assert.Equal(t, "airport", bag[CatCities][1].Type)
	assert.Equal(t, "Mumbai", bag[CatCities][1].Value)

	require.Len(t, bag[CatDates], 1)
	assert.Equal(t, "5th march", bag[CatDates][0].Text)
	assert.Equal(t, "day_month", bag[CatDates][0].Type)

	places := bag.Places()
	require.Len(t, places, 2)
	assert.Equal(t, "bom", places[0].Text)
}

func TestExtractBagHasEveryCategory(t *testing.T) {
	p := newPipeline(t)
	bag := p.extractor.Extract("", IntentNone)
	for _, c := range Categories {
		v, ok := bag[c]
		assert.True(t, ok, c)
		assert.NotNil(t, v, c)
		assert.Empty(t, v, c)
	}
}

func TestExtractStations(t *testing.T) {
	p := newPipeline(t)
	bag := p.extractor.Extract("NDLS to BCT in sleeper", IntentTrain)
	require.Len(t, bag[CatStations], 2)
	assert.Equal(t, "New Delhi", bag[CatStations][0].Value)
	assert.Equal(t, "station", bag[CatStations][0].Type)
	assert.True(t, bag.HasType(CatClasses, "sleeper"))
}

func TestExtractScopes(t *testing.T) {
	p := newPipeline(t)

	assert.True(t, p.extractor.Extract("tatkal ticket", IntentNone).Has(CatQuota))
	assert.True(t, p.extractor.Extract("tatkal ticket", IntentTrain).Has(CatQuota))
	assert.False(t, p.extractor.Extract("tatkal ticket", IntentHotel).Has(CatQuota))

	assert.False(t, p.extractor.Extract("room with pool", IntentFlight).Has(CatAmenities))
	assert.True(t, p.extractor.Extract("room with pool", IntentHotel).Has(CatAmenities))

	assert.True(t, p.extractor.Extract("beach trip", IntentHoliday).Has(CatThemes))
}

func TestExtractFirstRuleWins(t *testing.T) {
	p := newPipeline(t)
	bag := p.extractor.Extract("day after tomorrow or tomorrow", IntentNone)
	require.Len(t, bag[CatDates], 1)
	assert.Equal(t, "day_after_tomorrow", bag[CatDates][0].Type)
}

func TestNewExtractorRejectsBadTables(t *testing.T) {
	_, err := NewExtractor(nil, []RuleTable{{Category: "colours"}})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = NewExtractor(nil, []RuleTable{{Category: CatCities}})
	assert.Error(t, err)

	_, err = NewExtractor(nil, []RuleTable{{Category: CatDates, Rules: []Rule{{Tag: "x"}}}})
	assert.Error(t, err)

	ext, err := NewExtractor(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ext.Extract("mumbai", IntentNone)[CatCities])
}

func TestNewRuleTable(t *testing.T) {
	_, err := NewRuleTable(CatDates, ScopeCommon, [2]string{`(unclosed`, "bad"})
	assert.Error(t, err)

	_, err = NewRuleTable("weather", ScopeCommon)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	table, err := NewRuleTable(CatDates, ScopeCommon, [2]string{`\btoday\b`, "today"})
	require.NoError(t, err)
	assert.True(t, table.Rules[0].Expr.MatchString("TODAY"))
}
