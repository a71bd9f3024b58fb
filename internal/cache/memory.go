package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmoreira/weathertool/internal/models"
)

// MemoryStore implements Store with a mutex-guarded map. Safe for concurrent
// use; no operation holds the lock for longer than a map read or write.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
	}
}

// Get returns the entry for key if present, stale or not.
func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

// Put overwrites the entry for key.
func (s *MemoryStore) Put(ctx context.Context, key string, record models.Record, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Record: record, FetchedAt: fetchedAt}
	return nil
}

// Clear removes the entry for key if present.
func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// ClearAll removes every entry.
func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
	return nil
}

// Snapshot returns sorted, freshness-annotated metadata for all entries.
func (s *MemoryStore) Snapshot(ctx context.Context, ttl time.Duration) ([]Info, error) {
	now := time.Now()
	s.mu.RLock()
	infos := make([]Info, 0, len(s.entries))
	for key, entry := range s.entries {
		infos = append(infos, infoFor(key, entry.FetchedAt, ttl, now))
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
