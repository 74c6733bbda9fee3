package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cpandares/random-places/internal/domain"
)

type memoryEntry struct {
	places    []domain.Place
	expiresAt time.Time
}

// MemoryStore is an in-process CacheStore. A zero ttl never expires.
type MemoryStore struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{clock: clock, entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]domain.Place, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.clock.Now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.places, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, places []domain.Place, ttl time.Duration) error {
	e := memoryEntry{places: places}
	if ttl > 0 {
		e.expiresAt = m.clock.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}
