package cache

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/tripserve/pkg/nlu"
)

type memoryEntry struct {
	match   *nlu.RuleMatch
	expires time.Time
}

// Memory is an in-process cache with TTL expiry and least-recently-used
// eviction once maxEntries is reached.
type Memory struct {
	entries     map[string]memoryEntry
	accessTime  map[string]int64
	accessCount int64
	hits        int
	misses      int
	maxEntries  int
	ttl         time.Duration
	now         func() time.Time
	mu          sync.Mutex
}

func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries:    make(map[string]memoryEntry),
		accessTime: make(map[string]int64),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, query string) (*nlu.RuleMatch, bool) {
	key := NormalizeKey(query)
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false
	}
	if !m.now().Before(e.expires) {
		m.remove(key)
		m.misses++
		return nil, false
	}
	m.hits++
	m.markAccessed(key)
	return e.match, true
}

func (m *Memory) Set(_ context.Context, query string, match *nlu.RuleMatch) {
	if match == nil {
		return
	}
	key := NormalizeKey(query)
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictLRU()
	}
	m.entries[key] = memoryEntry{match: match, expires: m.now().Add(m.ttl)}
	m.markAccessed(key)
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]memoryEntry)
	m.accessTime = make(map[string]int64)
	log.Debugf("Cleared %d cached matches", n)
	return nil
}

func (m *Memory) Stats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]int{
		"entries":    len(m.entries),
		"maxEntries": m.maxEntries,
		"hits":       m.hits,
		"misses":     m.misses,
		"ttlSeconds": int(m.ttl / time.Second),
	}
}

func (m *Memory) markAccessed(key string) {
	m.accessCount++
	m.accessTime[key] = m.accessCount
}

func (m *Memory) remove(key string) {
	delete(m.entries, key)
	delete(m.accessTime, key)
}

// evictLRU drops expired entries first, then the least recently used one.
func (m *Memory) evictLRU() {
	now := m.now()
	for key, e := range m.entries {
		if !now.Before(e.expires) {
			m.remove(key)
		}
	}
	if len(m.entries) < m.maxEntries {
		return
	}

	var oldestKey string
	var oldestTime int64 = math.MaxInt64
	for key, t := range m.accessTime {
		if t < oldestTime {
			oldestTime = t
			oldestKey = key
		}
	}
	if oldestKey != "" {
		m.remove(oldestKey)
		log.Debugf("Evicted '%s' from match cache", oldestKey)
	}
}
