package engine

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastiangx/tripserve/pkg/cache"
	"github.com/bastiangx/tripserve/pkg/gazetteer"
	"github.com/bastiangx/tripserve/pkg/llm"
	"github.com/bastiangx/tripserve/pkg/nlu"
)

func newTestEngine(t *testing.T, c cache.Cache) *Engine {
	t.Helper()
	gaz := gazetteer.Load("../../data/cities.csv", "../../data/aliases.toml")
	require.Greater(t, gaz.Len(), 0)
	e, err := New(Options{Gazetteer: gaz, Cache: c})
	require.NoError(t, err)
	return e
}

func TestResolveScenarios(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	tests := []struct {
		query  string
		intent nlu.Intent
		next   nlu.Slot
	}{
		{"book a flight", nlu.IntentFlight, nlu.SlotFrom},
		{"flight from mumbai", nlu.IntentFlight, nlu.SlotTo},
		{"flight from mumbai to delhi", nlu.IntentFlight, nlu.SlotDate},
		{"hotel in goa for 3 nights", nlu.IntentHotel, nlu.SlotCheckin},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m, ok := e.Resolve(ctx, tt.query, ResolveOptions{})
			require.True(t, ok)
			assert.Equal(t, tt.intent, m.Intent)
			assert.Equal(t, tt.next, m.NextSlot)
			assert.GreaterOrEqual(t, m.Confidence, nlu.Threshold)
		})
	}

	m, _ := e.Resolve(ctx, "flight from mumbai", ResolveOptions{})
	assert.Equal(t, []string{"mumbai"}, m.Entities.Texts(nlu.CatCities))

	m, _ = e.Resolve(ctx, "hotel in goa for 3 nights", ResolveOptions{})
	assert.NotEmpty(t, m.Entities[nlu.CatNights])

	m, _ = e.Resolve(ctx, "hotel in goa check-in tomorrow check-out in 3 days", ResolveOptions{})
	assert.NotEqual(t, nlu.SlotNights, m.NextSlot)
}

func TestResolveMiss(t *testing.T) {
	e := newTestEngine(t, nil)
	for _, q := range []string{"", "   ", "what is the weather"} {
		m, ok := e.Resolve(context.Background(), q, ResolveOptions{})
		assert.False(t, ok, q)
		assert.Nil(t, m, q)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	for _, q := range []string{"flight from mumbai to delhi tomorrow", "Mumbai to", "i want to book a"} {
		a, okA := e.Resolve(ctx, q, ResolveOptions{})
		b, okB := e.Resolve(ctx, q, ResolveOptions{})
		assert.Equal(t, okA, okB)
		assert.Equal(t, a, b)
	}
}

func TestAcceptedConfidenceFloor(t *testing.T) {
	e := newTestEngine(t, nil)
	queries := []string{"NDLS to BCT", "BOM to BLR", "cheap flights", "hotel near airport", "plan a holiday"}
	for _, q := range queries {
		m, ok := e.Resolve(context.Background(), q, ResolveOptions{})
		require.True(t, ok, q)
		c := m.Confidence
		assert.True(t, c >= nlu.Threshold || c == nlu.StationCodeConfidence || c == nlu.PlaceCodeConfidence, q)
	}
}

func TestPartialIntentFallback(t *testing.T) {
	e := newTestEngine(t, nil)
	tests := []struct {
		query      string
		confidence float64
	}{
		{"I want to book a", PartialIntentConfidence},
		{"book me", PartialIntentConfidence},
		{"please book", PartialIntentConfidence},
		{"i need something nice", IntentOpenerConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m, ok := e.Resolve(context.Background(), tt.query, ResolveOptions{})
			require.True(t, ok)
			assert.Equal(t, nlu.IntentNone, m.Intent)
			assert.Equal(t, nlu.SlotIntent, m.NextSlot)
			assert.InDelta(t, tt.confidence, m.Confidence, 1e-9)
		})
	}
}

func TestCityFirstFallback(t *testing.T) {
	e := newTestEngine(t, nil)
	tests := []struct {
		query      string
		next       nlu.Slot
		confidence float64
	}{
		{"Mumbai", nlu.SlotTo, BareCityConfidence},
		{"Mumbai to", nlu.SlotTo, CityRouteConfidence},
		{"from Mumbai", nlu.SlotTo, CityRouteConfidence},
		{"Mumbai to Delhi", nlu.SlotIntent, CityRouteConfidence},
		{"Delhi from Mumbai", nlu.SlotIntent, CityRouteConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m, ok := e.Resolve(context.Background(), tt.query, ResolveOptions{})
			require.True(t, ok)
			assert.Equal(t, nlu.IntentNone, m.Intent)
			assert.Equal(t, tt.next, m.NextSlot)
			assert.InDelta(t, tt.confidence, m.Confidence, 1e-9)
		})
	}

	m, _ := e.Resolve(context.Background(), "Mumbai to", ResolveOptions{})
	got := e.Suggest(m, 5, false, "Mumbai to ")
	require.NotEmpty(t, got)
	for _, s := range got {
		assert.NotEqual(t, "Mumbai", s.Text)
	}
}

func TestResolveUsesCache(t *testing.T) {
	c := cache.NewMemory(10, time.Minute)
	e := newTestEngine(t, c)
	ctx := context.Background()

	first, ok := e.Resolve(ctx, "book a flight", ResolveOptions{})
	require.True(t, ok)
	second, ok := e.Resolve(ctx, "  Book A   flight ", ResolveOptions{})
	require.True(t, ok)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Stats()["hits"])

	third, _ := e.Resolve(ctx, "book a flight", ResolveOptions{SkipCache: true})
	assert.NotSame(t, first, third)
	assert.Equal(t, first, third)

	// fallbacks are not cached
	_, _ = e.Resolve(ctx, "Mumbai to", ResolveOptions{})
	assert.Equal(t, 1, c.Stats()["entries"])

	require.NoError(t, e.ClearCache(ctx))
	assert.Equal(t, 0, e.Stats()["cache_entries"])
}

func TestCachedMatchFitsEverySpelling(t *testing.T) {
	c := cache.NewMemory(10, time.Minute)
	e := newTestEngine(t, c)
	ctx := context.Background()

	_, ok := e.Resolve(ctx, "flight                    mumbai to", ResolveOptions{})
	require.True(t, ok)

	for _, q := range []string{"flight mumbai to", "Flight  Mumbai to ", "flight mumbai to"} {
		m, ok := e.Resolve(ctx, q, ResolveOptions{})
		require.True(t, ok, q)
		assert.Equal(t, nlu.SlotTo, m.NextSlot, q)
		for _, s := range e.Suggest(m, 8, false, q) {
			assert.NotEqual(t, "Mumbai", s.Text, q)
		}
		assert.Contains(t, e.FilledSlots(q, m), nlu.SlotFrom, q)
	}
	assert.Equal(t, 1, c.Stats()["entries"])
	assert.GreaterOrEqual(t, c.Stats()["hits"], 3)
}

func TestNewRejectsBadSchemas(t *testing.T) {
	bad := nlu.DefaultSchemas()
	bad[0].Keywords = append(bad[0].Keywords, nlu.KeywordRule{Phrase: "pool", Slot: nlu.SlotAmenities})
	_, err := New(Options{Schemas: bad})
	assert.ErrorIs(t, err, nlu.ErrUnknownSlot)
}

type fakeFallback struct {
	enabled bool
	hint    llm.Hint
	err     error
	calls   int
	query   string
}

func (f *fakeFallback) IsEnabled() bool { return f.enabled }

func (f *fakeFallback) NextSlot(_ context.Context, q string) (llm.Hint, error) {
	f.calls++
	f.query = q
	return f.hint, f.err
}

func TestServiceComplete(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	fb := &fakeFallback{enabled: true, hint: llm.Hint{Slot: "date", LatencyMs: 12.345}}
	svc := NewService(e, fb)

	res := svc.Complete(ctx, Request{Query: "   ", Placeholder: true})
	assert.Equal(t, SourceEmptyQuery, res.Source)
	assert.Equal(t, nlu.SlotIntent, res.NextSlot)
	require.Len(t, res.Suggestions, 5)
	assert.True(t, res.Suggestions[0].IsPlaceholder)

	res = svc.Complete(ctx, Request{Query: "flight from mumbai to delhi", Max: 3})
	assert.Equal(t, SourceRules, res.Source)
	assert.Equal(t, nlu.IntentFlight, res.Intent)
	assert.Equal(t, nlu.SlotDate, res.NextSlot)
	assert.Len(t, res.Suggestions, 3)
	assert.GreaterOrEqual(t, res.LatencyMs, 0.0)

	// the cursor cuts the query
	res = svc.Complete(ctx, Request{Query: "flight from mumbai to delhi", CursorPosition: len("flight from mumbai")})
	assert.Equal(t, nlu.SlotTo, res.NextSlot)

	// counted in characters
	q := "✈ flight from mumbai to delhi"
	res = svc.Complete(ctx, Request{Query: q, CursorPosition: utf8.RuneCountInString("✈ flight from mumbai")})
	assert.Equal(t, nlu.SlotTo, res.NextSlot)

	res = svc.Complete(ctx, Request{Query: "What is the Weather"})
	assert.Equal(t, SourceLLM, res.Source)
	assert.Equal(t, nlu.Slot("date"), res.NextSlot)
	assert.Equal(t, "what is the weather", fb.query)
	assert.InDelta(t, 12.35, res.LatencyMs, 1e-9)
	assert.NotEmpty(t, res.Suggestions)

	// junk never reaches the remote service
	calls := fb.calls
	res = svc.Complete(ctx, Request{Query: "????"})
	assert.Equal(t, SourceNoMatch, res.Source)
	assert.Equal(t, calls, fb.calls)
}

func TestServiceFallbackErrors(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	res := NewService(e, &fakeFallback{enabled: true, err: errors.New("boom")}).Complete(ctx, Request{Query: "what is the weather"})
	assert.Equal(t, SourceNoMatch, res.Source)
	assert.Empty(t, res.Suggestions)
	assert.NotNil(t, res.Suggestions)

	res = NewService(e, &fakeFallback{}).Complete(ctx, Request{Query: "what is the weather"})
	assert.Equal(t, SourceNoMatch, res.Source)

	res = NewService(e, nil).Complete(ctx, Request{Query: "what is the weather"})
	assert.Equal(t, SourceNoMatch, res.Source)
}

func TestBeforeCursor(t *testing.T) {
	tests := []struct {
		query  string
		cursor int
		want   string
	}{
		{"flight from mumbai", 0, "flight from mumbai"},
		{"flight from mumbai", 6, "flight"},
		{"flight", 6, "flight"},
		{"flight", 99, "flight"},
		{"hotel in münchen", 15, "hotel in münche"},
		{"東京 to", 2, "東京"},
	}
	for _, tt := range tests {
		got := beforeCursor(tt.query, tt.cursor)
		assert.Equal(t, tt.want, got, "%q@%d", tt.query, tt.cursor)
		assert.True(t, utf8.ValidString(got))
	}
}
