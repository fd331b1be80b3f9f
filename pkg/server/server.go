package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bastiangx/tripserve/pkg/config"
	"github.com/bastiangx/tripserve/pkg/engine"
)

// Server handles the IPC for travel query suggestions
type Server struct {
	service *engine.Service
	dec     *msgpack.Decoder
	out     *bufio.Writer
	enc     *msgpack.Encoder

	mu         sync.RWMutex
	cfg        *config.Config
	configPath string
}

// NewServer creates a server using stdin/stdout for IPC. configPath may be
// empty when running on built-in defaults.
func NewServer(service *engine.Service, cfg *config.Config, configPath string) *Server {
	return NewServerWithIO(service, cfg, configPath, os.Stdin, os.Stdout)
}

// NewServerWithIO is NewServer over any reader and writer.
func NewServerWithIO(service *engine.Service, cfg *config.Config, configPath string, r io.Reader, w io.Writer) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	out := bufio.NewWriter(w)
	return &Server{
		service:    service,
		dec:        msgpack.NewDecoder(bufio.NewReader(r)),
		out:        out,
		enc:        msgpack.NewEncoder(out),
		cfg:        cfg,
		configPath: configPath,
	}
}

// Start sends the ready signal and serves requests until the input ends.
// With watch_config on, edits to the config file take effect without restart.
func (s *Server) Start(ctx context.Context) error {
	log.Debug("Starting Server.")

	if s.configPath != "" && s.settings().Server.WatchConfig {
		w, err := config.Watch(s.configPath, s.ApplyConfig)
		if err != nil {
			log.Warnf("Config hot reload disabled: %v", err)
		} else {
			defer w.Stop()
		}
	}

	s.sendResponse(StatusResponse{Status: "ready"})

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		var raw msgpack.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			log.Errorf("Reading from stdin: %v", err)
			return err
		}
		s.handleRequest(ctx, raw)
	}
}

// ApplyConfig swaps in new request limits. Cache and gazetteer settings need a restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	log.Debugf("Server limits updated: max_suggestions=%d max_limit=%d", cfg.Engine.MaxSuggestions, cfg.Server.MaxLimit)
}

func (s *Server) settings() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// handleRequest decodes one raw message and dispatches it by kind
func (s *Server) handleRequest(ctx context.Context, raw []byte) {
	var req Request
	if err := msgpack.Unmarshal(raw, &req); err != nil {
		s.sendError(uuid.NewString(), "Invalid msgpack request", 400)
		log.Errorf("Unmarshaling request: %v", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	switch req.Kind {
	case "", KindSuggest:
		s.handleSuggest(ctx, req)
	case KindResolve:
		s.handleResolve(ctx, req)
	case KindHealth:
		s.sendResponse(StatusResponse{ID: req.ID, Status: "ok", Stats: s.service.Engine().Stats()})
	case KindClearCache:
		if err := s.service.Engine().ClearCache(ctx); err != nil {
			log.Errorf("Clearing cache: %v", err)
			s.sendError(req.ID, "Failed to clear cache", 500)
			return
		}
		s.sendResponse(StatusResponse{ID: req.ID, Status: "cache_cleared", Message: "Query cache has been cleared"})
	case KindConfig:
		s.handleConfig(req)
	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown kind: %s", req.Kind), 400)
	}
}

// validQuery sends the error itself and reports whether to continue.
func (s *Server) validQuery(req Request) bool {
	if maxLen := s.settings().Server.MaxQueryLen; len(req.Query) > maxLen {
		s.sendError(req.ID, fmt.Sprintf("Query exceeds maximum length of %d characters", maxLen), 400)
		log.Debug("Query is too long in request")
		return false
	}
	return true
}

func (s *Server) handleSuggest(ctx context.Context, req Request) {
	if !s.validQuery(req) {
		return
	}
	cfg := s.settings()

	limit := req.Limit
	if limit < 1 {
		limit = cfg.Engine.MaxSuggestions
	}
	if limit > cfg.Server.MaxLimit {
		limit = cfg.Server.MaxLimit
	}
	placeholder := cfg.Engine.Placeholder
	if req.Placeholder != nil {
		placeholder = *req.Placeholder
	}

	start := time.Now()
	res := s.service.Complete(ctx, engine.Request{
		Query:          req.Query,
		CursorPosition: req.Cursor,
		Max:            limit,
		Placeholder:    placeholder,
		SkipCache:      req.NoCache,
	})
	elapsed := time.Since(start)

	s.sendResponse(SuggestResponse{
		ID:          req.ID,
		Suggestions: res.Suggestions,
		Intent:      res.Intent,
		NextSlot:    res.NextSlot,
		Confidence:  res.Confidence,
		Source:      res.Source,
		Count:       len(res.Suggestions),
		TimeTaken:   elapsed.Microseconds(),
	})
}

func (s *Server) handleResolve(ctx context.Context, req Request) {
	if !s.validQuery(req) {
		return
	}
	eng := s.service.Engine()

	start := time.Now()
	m, ok := eng.Resolve(ctx, req.Query, engine.ResolveOptions{SkipCache: req.NoCache})
	resp := ResolveResponse{ID: req.ID, Matched: ok, Filled: eng.FilledSlots(req.Query, m)}
	if ok {
		resp.Intent = m.Intent
		resp.NextSlot = m.NextSlot
		resp.Confidence = m.Confidence
		resp.Entities = m.Entities
	}
	resp.TimeTaken = time.Since(start).Microseconds()
	s.sendResponse(resp)
}

func (s *Server) handleConfig(req Request) {
	s.mu.Lock()
	next := *s.cfg
	err := next.Update(s.configPath, req.MaxSuggestions, req.MaxLimit, req.DefaultPlaceholder)
	if err == nil {
		s.cfg = &next
	}
	s.mu.Unlock()

	if err != nil {
		log.Errorf("Saving config: %v", err)
		s.sendError(req.ID, "Failed to save config", 500)
		return
	}
	placeholder := 0
	if next.Engine.Placeholder {
		placeholder = 1
	}
	s.sendResponse(StatusResponse{ID: req.ID, Status: "ok", Stats: map[string]int{
		"max_suggestions": next.Engine.MaxSuggestions,
		"max_limit":       next.Server.MaxLimit,
		"placeholder":     placeholder,
	}})
}

// sendResponse encodes one reply and flushes it so the client sees it immediately.
func (s *Server) sendResponse(response any) {
	if err := s.enc.Encode(response); err != nil {
		log.Errorf("Encoding response: %v", err)
		return
	}
	if err := s.out.Flush(); err != nil {
		log.Errorf("Writing response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.sendResponse(CompletionError{ID: id, Error: message, Code: code})
}
