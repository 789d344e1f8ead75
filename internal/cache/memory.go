// File: internal/cache/memory.go
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
)

// Memory is an in-process LRU decision cache bounded by entry count, with a
// per-entry time-to-live. Safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
	logger     *zap.Logger

	// now is swappable for TTL tests.
	now func() time.Time
}

type memoryItem struct {
	key      string
	entry    *schemas.DecisionEntry
	storedAt time.Time
}

var _ schemas.DecisionCache = (*Memory)(nil)

// NewMemory creates a memory cache. Non-positive maxEntries and ttl fall back
// to the defaults (100 entries, 24 hours).
func NewMemory(maxEntries int, ttl time.Duration, logger *zap.Logger) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		logger:     logger.Named("cache.memory"),
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*schemas.DecisionEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	item := el.Value.(*memoryItem)
	if m.now().Sub(item.storedAt) > m.ttl {
		m.order.Remove(el)
		delete(m.entries, key)
		return nil, false
	}
	m.order.MoveToFront(el)
	return item.entry, true
}

func (m *Memory) Set(_ context.Context, key string, entry *schemas.DecisionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		el.Value.(*memoryItem).entry = entry
		el.Value.(*memoryItem).storedAt = m.now()
		m.order.MoveToFront(el)
		return nil
	}

	m.entries[key] = m.order.PushFront(&memoryItem{key: key, entry: entry, storedAt: m.now()})
	for m.order.Len() > m.maxEntries {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryItem).key)
	}
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.order.Remove(el)
		delete(m.entries, key)
	}
	return nil
}

// Len returns the current entry count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
