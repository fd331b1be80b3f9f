package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/tripserve/internal/utils"
	"github.com/bastiangx/tripserve/pkg/llm"
	"github.com/bastiangx/tripserve/pkg/nlu"
	"github.com/bastiangx/tripserve/pkg/suggest"
)

// Source tells where a Result came from.
type Source string

const (
	SourceEmptyQuery Source = "empty_query"
	SourceRules      Source = "rule_based"
	SourceLLM        Source = "llm_fallback"
	SourceNoMatch    Source = "no_match"
)

// LLMConfidence is assigned to next-slot hints from the remote fallback.
const LLMConfidence = 0.5

// Fallback guesses the next slot for queries the rules cannot place.
type Fallback interface {
	IsEnabled() bool
	NextSlot(ctx context.Context, query string) (llm.Hint, error)
}

// Request is one completion call from a transport.
type Request struct {
	Query string
	// CursorPosition truncates Query when it points inside it, counted in
	// characters. Zero means end of text.
	CursorPosition int
	Max            int
	Placeholder    bool
	SkipCache      bool
}

type Result struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
	Intent      nlu.Intent           `json:"intent,omitempty"`
	NextSlot    nlu.Slot             `json:"next_slot,omitempty"`
	Confidence  float64              `json:"confidence"`
	Source      Source               `json:"source"`
	LatencyMs   float64              `json:"latency_ms"`
}

// Service runs the full completion pipeline used by the IPC, HTTP and CLI front ends.
type Service struct {
	engine   *Engine
	fallback Fallback
}

// NewService wires an engine to an optional remote fallback.
func NewService(engine *Engine, fallback Fallback) *Service {
	return &Service{engine: engine, fallback: fallback}
}

func (s *Service) Engine() *Engine {
	return s.engine
}

// Complete never fails: remote errors degrade to an empty no_match result.
func (s *Service) Complete(ctx context.Context, req Request) Result {
	start := time.Now()
	query := beforeCursor(req.Query, req.CursorPosition)

	if utils.NormalizeQuery(query) == "" {
		m := &nlu.RuleMatch{Confidence: PartialIntentConfidence, Entities: nlu.NewEntityBag(), NextSlot: nlu.SlotIntent}
		return s.result(m, SourceEmptyQuery, s.engine.Suggest(m, req.Max, req.Placeholder, query), start)
	}

	if m, ok := s.engine.Resolve(ctx, query, ResolveOptions{SkipCache: req.SkipCache}); ok {
		return s.result(m, SourceRules, s.engine.Suggest(m, req.Max, req.Placeholder, query), start)
	}

	if s.fallback == nil || !s.fallback.IsEnabled() || !utils.IsValidQuery(query) {
		return s.result(nil, SourceNoMatch, []suggest.Suggestion{}, start)
	}
	hint, err := s.fallback.NextSlot(ctx, utils.NormalizeQuery(query))
	if err != nil {
		if !errors.Is(err, llm.ErrDisabled) {
			log.Warnf("llm fallback failed for %q: %v", query, err)
		}
		return s.result(nil, SourceNoMatch, []suggest.Suggestion{}, start)
	}

	m := &nlu.RuleMatch{
		Confidence: LLMConfidence,
		Entities:   s.engine.extractor.Extract(nlu.Canonical(query), nlu.IntentNone),
		NextSlot:   nlu.Slot(hint.Slot),
	}
	res := s.result(m, SourceLLM, s.engine.Suggest(m, req.Max, req.Placeholder, query), start)
	if hint.LatencyMs > 0 {
		res.LatencyMs = round2(hint.LatencyMs)
	}
	return res
}

func (s *Service) result(m *nlu.RuleMatch, source Source, suggestions []suggest.Suggestion, start time.Time) Result {
	res := Result{
		Suggestions: suggestions,
		Source:      source,
		LatencyMs:   round2(float64(time.Since(start).Microseconds()) / 1000),
	}
	if m != nil {
		res.Intent = m.Intent
		res.NextSlot = m.NextSlot
		res.Confidence = m.Confidence
	}
	return res
}

// beforeCursor cuts query at a cursor counted in characters, not bytes.
func beforeCursor(query string, cursor int) string {
	if cursor <= 0 {
		return query
	}
	n := 0
	for i := range query {
		if n == cursor {
			return query[:i]
		}
		n++
	}
	return query
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
