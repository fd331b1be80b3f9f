// Package llm calls the remote language-model service that guesses the next
// slot for queries no rule understands.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ErrDisabled is returned when no fallback URL is configured.
var ErrDisabled = errors.New("llm fallback is not configured")

type Config struct {
	URL     string
	Timeout time.Duration
	// Retries is the number of extra attempts after a transport error or 5xx.
	Retries int
	Backoff time.Duration
}

// Hint is the service answer. Slot is passed on verbatim.
type Hint struct {
	Slot      string
	LatencyMs float64
}

type request struct {
	Question string `json:"question"`
}

type response struct {
	Response  string  `json:"response"`
	LatencyMs float64 `json:"latency_ms"`
}

// Client posts {"question": q} and reads {"response": slot, "latency_ms": n}.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 100 * time.Millisecond
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) IsEnabled() bool {
	return c != nil && strings.TrimSpace(c.cfg.URL) != ""
}

// NextSlot asks the service for the next slot of query.
func (c *Client) NextSlot(ctx context.Context, query string) (Hint, error) {
	if !c.IsEnabled() {
		return Hint{}, ErrDisabled
	}
	body, err := json.Marshal(request{Question: query})
	if err != nil {
		return Hint{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Hint{}, ctx.Err()
			case <-time.After(c.cfg.Backoff * time.Duration(attempt)):
			}
			log.Debugf("Retrying llm fallback (attempt %d): %v", attempt+1, lastErr)
		}
		hint, retry, err := c.do(ctx, body)
		if err == nil {
			return hint, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return Hint{}, lastErr
}

func (c *Client) do(ctx context.Context, body []byte) (Hint, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Hint{}, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Hint{}, true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Hint{}, true, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Hint{}, resp.StatusCode >= 500, fmt.Errorf("llm request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		return Hint{}, false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	slot := strings.TrimSpace(out.Response)
	if slot == "" {
		return Hint{}, false, errors.New("llm response has no slot")
	}
	return Hint{Slot: slot, LatencyMs: out.LatencyMs}, false, nil
}
