// Package cache stores resolved rule matches keyed by normalized query text.
package cache

import (
	"context"
	"time"

	"github.com/bastiangx/tripserve/internal/utils"
	"github.com/bastiangx/tripserve/pkg/nlu"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 10000
)

// Cache is a get/set store with TTL. Concurrent writers race; the last one wins.
type Cache interface {
	Get(ctx context.Context, query string) (*nlu.RuleMatch, bool)
	Set(ctx context.Context, query string, match *nlu.RuleMatch)
	Clear(ctx context.Context) error
	Stats() map[string]int
}

// NormalizeKey case-folds query and collapses runs of whitespace.
func NormalizeKey(query string) string {
	return utils.NormalizeQuery(query)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (*nlu.RuleMatch, bool) { return nil, false }
func (Nop) Set(context.Context, string, *nlu.RuleMatch)        {}
func (Nop) Clear(context.Context) error                        { return nil }
func (Nop) Stats() map[string]int                              { return map[string]int{"entries": 0} }
