package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastiangx/tripserve/pkg/cache"
	"github.com/bastiangx/tripserve/pkg/config"
	"github.com/bastiangx/tripserve/pkg/engine"
	"github.com/bastiangx/tripserve/pkg/gazetteer"
	"github.com/bastiangx/tripserve/pkg/llm"
	"github.com/bastiangx/tripserve/pkg/nlu"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, cfg *config.Config, fallback engine.Fallback) *gin.Engine {
	t.Helper()
	gaz := gazetteer.Load("../../data/cities.csv", "../../data/aliases.toml")
	eng, err := engine.New(engine.Options{Gazetteer: gaz, Cache: cache.NewMemory(100, cache.DefaultTTL)})
	require.NoError(t, err)
	return NewRouter(engine.NewService(eng, fallback), cfg)
}

func post(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) SuggestResponse {
	t.Helper()
	var resp SuggestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSuggestRuleBased(t *testing.T) {
	r := newRouter(t, nil, nil)
	w := post(t, r, "/suggest", SuggestRequest{Query: "flight from mumbai to", Max: 4, Placeholder: new(bool)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	resp := decode(t, w)
	assert.Equal(t, w.Header().Get(RequestIDHeader), resp.RequestID)
	assert.Equal(t, engine.SourceRules, resp.Source)
	assert.Equal(t, nlu.IntentFlight, resp.Intent)
	assert.Equal(t, nlu.SlotTo, resp.NextSlot)
	require.Len(t, resp.Suggestions, 4)
	for _, s := range resp.Suggestions {
		assert.NotEqual(t, "Mumbai", s.Text)
	}
}

func TestSuggestEmptyQuery(t *testing.T) {
	r := newRouter(t, nil, nil)
	w := post(t, r, "/suggest", SuggestRequest{})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, engine.SourceEmptyQuery, resp.Source)
	assert.Equal(t, nlu.SlotIntent, resp.NextSlot)
	// default config asks for the placeholder
	require.NotEmpty(t, resp.Suggestions)
	assert.True(t, resp.Suggestions[0].IsPlaceholder)
}

type stubFallback struct{}

func (stubFallback) IsEnabled() bool { return true }

func (stubFallback) NextSlot(context.Context, string) (llm.Hint, error) {
	return llm.Hint{Slot: "date", LatencyMs: 3}, nil
}

func TestSuggestFallbackAndMiss(t *testing.T) {
	w := post(t, newRouter(t, nil, stubFallback{}), "/suggest", SuggestRequest{Query: "what is the weather"})
	resp := decode(t, w)
	assert.Equal(t, engine.SourceLLM, resp.Source)
	assert.Equal(t, nlu.Slot("date"), resp.NextSlot)

	w = post(t, newRouter(t, nil, nil), "/suggest", SuggestRequest{Query: "what is the weather"})
	resp = decode(t, w)
	assert.Equal(t, engine.SourceNoMatch, resp.Source)
	assert.Empty(t, resp.Suggestions)
	assert.Contains(t, w.Body.String(), `"suggestions":[]`)
}

func TestSuggestRequestID(t *testing.T) {
	r := newRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/suggest", bytes.NewBufferString(`{"query":"hotel"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", decode(t, w).RequestID)
}

func TestSuggestBadRequests(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxQueryLen = 5
	r := newRouter(t, cfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/suggest", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, r, "/suggest", SuggestRequest{Query: "flight from mumbai"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggestMaxIsCapped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxLimit = 3
	w := post(t, newRouter(t, cfg, nil), "/suggest", SuggestRequest{Query: "flight to", Max: 40, Placeholder: new(bool)})
	assert.Len(t, decode(t, w).Suggestions, 3)
}

func TestHealthAndClearCache(t *testing.T) {
	r := newRouter(t, nil, nil)
	post(t, r, "/suggest", SuggestRequest{Query: "book a flight"})

	health := func() map[string]any {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	body := health()
	assert.Equal(t, "healthy", body["status"])
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["cache_entries"])

	w := post(t, r, "/clear-cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"cache_cleared","message":"Query cache has been cleared"}`, w.Body.String())

	stats = health()["stats"].(map[string]any)
	assert.EqualValues(t, 0, stats["cache_entries"])
}

func preflight(r http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/suggest", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(t, nil, nil)
	w := preflight(r, "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")

	req := httptest.NewRequest(http.MethodPost, "/suggest", strings.NewReader(`{"query":"flight"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:3000")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSLocalOnly(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.AllowAllOrigins = false
	r := newRouter(t, cfg, nil)

	w := preflight(r, "http://localhost:5173")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight(r, "https://evil.test")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
