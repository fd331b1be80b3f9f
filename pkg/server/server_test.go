package server

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bastiangx/tripserve/pkg/cache"
	"github.com/bastiangx/tripserve/pkg/config"
	"github.com/bastiangx/tripserve/pkg/engine"
	"github.com/bastiangx/tripserve/pkg/gazetteer"
	"github.com/bastiangx/tripserve/pkg/nlu"
)

func newService(t *testing.T) *engine.Service {
	t.Helper()
	gaz := gazetteer.Load("../../data/cities.csv", "../../data/aliases.toml")
	eng, err := engine.New(engine.Options{Gazetteer: gaz, Cache: cache.NewMemory(100, cache.DefaultTTL)})
	require.NoError(t, err)
	return engine.NewService(eng, nil)
}

// run feeds every message to a fresh server and returns the decoder over its output.
func run(t *testing.T, cfg *config.Config, configPath string, messages ...any) *msgpack.Decoder {
	t.Helper()
	var in, out bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	for _, m := range messages {
		require.NoError(t, enc.Encode(m))
	}
	srv := NewServerWithIO(newService(t), cfg, configPath, &in, &out)
	require.NoError(t, srv.Start(context.Background()))

	dec := msgpack.NewDecoder(&out)
	var ready StatusResponse
	require.NoError(t, dec.Decode(&ready))
	require.Equal(t, "ready", ready.Status)
	return dec
}

func TestSuggest(t *testing.T) {
	noPlaceholder := false
	dec := run(t, nil, "", Request{ID: "req_001", Kind: KindSuggest, Query: "flight from mum", Limit: 3, Placeholder: &noPlaceholder})

	var resp SuggestResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "req_001", resp.ID)
	assert.Equal(t, nlu.IntentFlight, resp.Intent)
	assert.Equal(t, nlu.SlotFrom, resp.NextSlot)
	assert.Equal(t, engine.SourceRules, resp.Source)
	require.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, "Mumbai", resp.Suggestions[0].Text)
	assert.Equal(t, len(resp.Suggestions), resp.Count)
	assert.GreaterOrEqual(t, resp.TimeTaken, int64(0))
}

func TestSuggestDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.MaxSuggestions = 2
	cfg.Engine.Placeholder = true
	// no kind means suggest, no id gets one generated
	dec := run(t, cfg, "", Request{Query: ""})

	var resp SuggestResponse
	require.NoError(t, dec.Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, engine.SourceEmptyQuery, resp.Source)
	require.Len(t, resp.Suggestions, 3)
	assert.True(t, resp.Suggestions[0].IsPlaceholder)
}

func TestSuggestLimitIsCapped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxLimit = 2
	dec := run(t, cfg, "", Request{ID: "1", Query: "flight to", Limit: 50, Placeholder: new(bool)})

	var resp SuggestResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Len(t, resp.Suggestions, 2)
}

func TestResolve(t *testing.T) {
	dec := run(t, nil, "",
		Request{ID: "r1", Kind: KindResolve, Query: "hotel in goa for 3 nights"},
		Request{ID: "r2", Kind: KindResolve, Query: "what is the weather"},
	)

	var hit ResolveResponse
	require.NoError(t, dec.Decode(&hit))
	assert.True(t, hit.Matched)
	assert.Equal(t, nlu.IntentHotel, hit.Intent)
	assert.Equal(t, nlu.SlotCheckin, hit.NextSlot)
	assert.Contains(t, hit.Filled, nlu.SlotCity)
	assert.Contains(t, hit.Filled, nlu.SlotNights)
	assert.NotEmpty(t, hit.Entities[nlu.CatNights])

	var miss ResolveResponse
	require.NoError(t, dec.Decode(&miss))
	assert.Equal(t, "r2", miss.ID)
	assert.False(t, miss.Matched)
	assert.Empty(t, miss.Filled)
}

func TestHealthAndClearCache(t *testing.T) {
	dec := run(t, nil, "",
		Request{ID: "s", Query: "book a flight"},
		Request{ID: "h1", Kind: KindHealth},
		Request{ID: "c", Kind: KindClearCache},
		Request{ID: "h2", Kind: KindHealth},
	)

	var suggestResp SuggestResponse
	require.NoError(t, dec.Decode(&suggestResp))

	var health StatusResponse
	require.NoError(t, dec.Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Stats["cache_entries"])
	assert.Positive(t, health.Stats["places"])

	var cleared StatusResponse
	require.NoError(t, dec.Decode(&cleared))
	assert.Equal(t, "cache_cleared", cleared.Status)

	require.NoError(t, dec.Decode(&health))
	assert.Equal(t, 0, health.Stats["cache_entries"])
}

func TestErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxQueryLen = 10
	dec := run(t, cfg, "",
		Request{ID: "x", Kind: "translate"},
		Request{ID: "y", Query: "a query that is far too long"},
		42,
	)

	var unknown CompletionError
	require.NoError(t, dec.Decode(&unknown))
	assert.Equal(t, "x", unknown.ID)
	assert.Equal(t, 400, unknown.Code)

	var tooLong CompletionError
	require.NoError(t, dec.Decode(&tooLong))
	assert.Equal(t, "y", tooLong.ID)
	assert.Equal(t, 400, tooLong.Code)

	var invalid CompletionError
	require.NoError(t, dec.Decode(&invalid))
	assert.NotEmpty(t, invalid.ID)
	assert.Equal(t, "Invalid msgpack request", invalid.Error)
}

func TestConfigUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	cfg := config.DefaultConfig()
	cfg.Server.WatchConfig = false
	two := 2
	dec := run(t, cfg, path,
		Request{ID: "cfg", Kind: KindConfig, MaxSuggestions: &two},
		Request{ID: "s", Query: "flight on", Placeholder: new(bool)},
	)

	var status StatusResponse
	require.NoError(t, dec.Decode(&status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 2, status.Stats["max_suggestions"])

	var resp SuggestResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Len(t, resp.Suggestions, 2)

	saved, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Engine.MaxSuggestions)
}
