package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cruise to bali", req.Question)
		_, _ = w.Write([]byte(`{"response": "date", "latency_ms": 42.5}`))
	}))
	defer srv.Close()

	hint, err := NewClient(Config{URL: srv.URL}).NextSlot(context.Background(), "cruise to bali")
	require.NoError(t, err)
	assert.Equal(t, "date", hint.Slot)
	assert.InDelta(t, 42.5, hint.LatencyMs, 1e-9)
}

func TestNextSlotRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response": "from", "latency_ms": 1}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Retries: 2, Backoff: time.Millisecond})
	hint, err := c.NextSlot(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "from", hint.Slot)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNextSlotDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(Config{URL: srv.URL, Retries: 3, Backoff: time.Millisecond}).NextSlot(context.Background(), "q")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNextSlotRejectsEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response": "  "}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{URL: srv.URL}).NextSlot(context.Background(), "q")
	assert.Error(t, err)
}

func TestDisabled(t *testing.T) {
	c := NewClient(Config{})
	assert.False(t, c.IsEnabled())
	_, err := c.NextSlot(context.Background(), "q")
	assert.ErrorIs(t, err, ErrDisabled)

	var nilClient *Client
	assert.False(t, nilClient.IsEnabled())
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.NextSlot(context.Background(), "q")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}
