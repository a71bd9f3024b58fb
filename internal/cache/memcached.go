package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/dmoreira/weathertool/internal/models"
)

const memcachedKeyPrefix = "weather:"

// Entries carry their fetch timestamp in the payload, so the backend expiry
// only bounds abandoned keys; staleness is always computed by the caller.
const memcachedMaxAge = 24 * 60 * 60 // seconds

// MemcachedStore implements Store on memcached. Memcached cannot enumerate
// keys, so the store keeps a local index of keys written by this process;
// Snapshot and ClearAll cover indexed keys only.
type MemcachedStore struct {
	client *memcache.Client

	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns use package defaults when zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{
		client: client,
		keys:   make(map[string]struct{}),
	}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (s *MemcachedStore) key(k string) string {
	return memcachedKeyPrefix + k
}

// Get returns the entry for key. Returns false, nil on miss; false, err on
// backend failure.
func (s *MemcachedStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if ctx.Err() != nil {
		return Entry{}, false, ctx.Err()
	}
	item, err := s.client.Get(s.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			s.forget(key)
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var payload entryPayload
	if err := json.Unmarshal(item.Value, &payload); err != nil {
		return Entry{}, false, err
	}
	return Entry{Record: payload.Record, FetchedAt: payload.FetchedAt}, true, nil
}

// Put overwrites the entry for key and records it in the local index.
func (s *MemcachedStore) Put(ctx context.Context, key string, record models.Record, fetchedAt time.Time) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(entryPayload{Record: record, FetchedAt: fetchedAt})
	if err != nil {
		return err
	}
	if err := s.client.Set(&memcache.Item{
		Key:        s.key(key),
		Value:      raw,
		Expiration: memcachedMaxAge,
	}); err != nil {
		return err
	}
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Clear removes the entry for key; a backend miss is not an error.
func (s *MemcachedStore) Clear(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := s.client.Delete(s.key(key))
	if err != nil && err != memcache.ErrCacheMiss {
		return err
	}
	s.forget(key)
	return nil
}

// ClearAll removes every indexed entry.
func (s *MemcachedStore) ClearAll(ctx context.Context) error {
	for _, key := range s.indexedKeys() {
		if err := s.Clear(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot fetches every indexed key and returns freshness-annotated
// metadata. Keys evicted by the backend are dropped from the index.
func (s *MemcachedStore) Snapshot(ctx context.Context, ttl time.Duration) ([]Info, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	keys := s.indexedKeys()
	now := time.Now()
	infos := make([]Info, 0, len(keys))
	for _, key := range keys {
		entry, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		infos = append(infos, infoFor(key, entry.FetchedAt, ttl, now))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Ping checks that memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}

func (s *MemcachedStore) indexedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	return keys
}

func (s *MemcachedStore) forget(key string) {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
}
