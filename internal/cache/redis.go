package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmoreira/weathertool/internal/models"
)

const redisKeyPrefix = "weather:"

// Same bound as memcached: the backend expiry only reaps abandoned keys.
const redisMaxAge = 24 * time.Hour

// RedisStore implements Store on redis. Unlike memcached, redis can enumerate
// keys, so Snapshot and ClearAll scan the key prefix instead of keeping a
// local index.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore connected to addr (e.g. "localhost:6379").
func NewRedisStore(addr, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: client}
}

func (s *RedisStore) key(k string) string {
	return redisKeyPrefix + k
}

// Get returns the entry for key. Returns false, nil on miss.
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var payload entryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Entry{}, false, err
	}
	return Entry{Record: payload.Record, FetchedAt: payload.FetchedAt}, true, nil
}

// Put overwrites the entry for key.
func (s *RedisStore) Put(ctx context.Context, key string, record models.Record, fetchedAt time.Time) error {
	raw, err := json.Marshal(entryPayload{Record: record, FetchedAt: fetchedAt})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), raw, redisMaxAge).Err()
}

// Clear removes the entry for key; absent keys are a no-op.
func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// ClearAll removes every entry under the key prefix.
func (s *RedisStore) ClearAll(ctx context.Context) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Snapshot scans the key prefix and returns freshness-annotated metadata.
func (s *RedisStore) Snapshot(ctx context.Context, ttl time.Duration) ([]Info, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	infos := make([]Info, 0, len(keys))
	for _, fullKey := range keys {
		raw, err := s.client.Get(ctx, fullKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var payload entryPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		infos = append(infos, infoFor(fullKey[len(redisKeyPrefix):], payload.FetchedAt, ttl, now))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Ping checks that redis is reachable. Used for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client. Call during shutdown.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
