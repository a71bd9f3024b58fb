// Package service orchestrates cache-or-fetch for weather queries.
package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dmoreira/weathertool/internal/cache"
	"github.com/dmoreira/weathertool/internal/client"
	"github.com/dmoreira/weathertool/internal/models"
	"github.com/dmoreira/weathertool/internal/observability"
	"github.com/dmoreira/weathertool/internal/validation"
)

// DefaultTTL is the cache freshness window when no override is configured.
const DefaultTTL = 10 * time.Minute

// WeatherService is the single entry point for weather queries. It owns the
// cache store exclusively: callers reach cached entries only through the
// operations below. One GetWeather call fully resolves before returning; a
// failed fetch never touches cache state.
type WeatherService struct {
	transport client.Transport
	store     cache.Store
	ttl       time.Duration
	cacheType string
}

// NewWeatherService creates a WeatherService. ttl <= 0 falls back to
// DefaultTTL. cacheType labels cache metrics (e.g. "in_memory", "redis").
func NewWeatherService(transport client.Transport, store cache.Store, ttl time.Duration, cacheType string) *WeatherService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cacheType == "" {
		cacheType = "in_memory"
	}
	return &WeatherService{
		transport: transport,
		store:     store,
		ttl:       ttl,
		cacheType: cacheType,
	}
}

// TTL returns the configured freshness window.
func (s *WeatherService) TTL() time.Duration {
	return s.ttl
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetWeather returns the current weather for location using the cache-aside
// pattern: a fresh cache entry short-circuits the network entirely; otherwise
// the transport is called, the response validated into a record, and the
// cache repopulated. Stale entries are overwritten only on a successful
// fetch, so the last-known-good record survives upstream failures.
func (s *WeatherService) GetWeather(ctx context.Context, location string) (models.Record, error) {
	trimmed := strings.TrimSpace(location)
	if trimmed == "" {
		return models.Record{}, validation.ErrLocationEmpty
	}
	key := normalizeLocation(trimmed)
	start := time.Now()
	logger := loggerFromContext(ctx)
	observability.RecordWeatherQuery(key)

	entry, ok, err := s.store.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		if logger != nil {
			logger.Warn("cache get failed", zap.String("location", key), zap.Error(err))
		}
	} else if ok && entry.Fresh(s.ttl) {
		observability.CacheHitsTotal.WithLabelValues(s.cacheType).Inc()
		if logger != nil {
			logger.Debug("cache hit", zap.String("location", key), zap.Duration("age", entry.Age()))
			logger.Debug("weather served", zap.String("location", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		}
		return entry.Record, nil
	}

	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("location", key))
	}

	// The transport gets the trimmed original so the upstream sees the
	// caller's casing; only the cache key is folded.
	obs, err := s.transport.FetchCurrent(ctx, trimmed)
	if err != nil {
		if logger != nil {
			logger.Warn("upstream fetch failed", zap.String("location", key), zap.Error(err))
		}
		return models.Record{}, err
	}

	fetchedAt := time.Now()
	record, err := models.NewRecord(obs, fetchedAt)
	if err != nil {
		if logger != nil {
			logger.Error("upstream payload failed validation", zap.String("location", key), zap.Error(err))
		}
		return models.Record{}, err
	}

	if putErr := s.store.Put(ctx, key, record, fetchedAt); putErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("put", categorizeCacheError(putErr)).Inc()
		if logger != nil {
			logger.Warn("cache put failed", zap.String("location", key), zap.Error(putErr))
		}
	}
	if logger != nil {
		logger.Debug("weather served", zap.String("location", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	}
	return record, nil
}

// GetWeatherForAgent returns the agent projection of the record for location.
// Same error conditions as GetWeather.
func (s *WeatherService) GetWeatherForAgent(ctx context.Context, location string) (map[string]any, error) {
	record, err := s.GetWeather(ctx, location)
	if err != nil {
		return nil, err
	}
	return record.AgentFormat(), nil
}

// DisplayWeather returns the human-readable projection of the record for
// location. Same error conditions as GetWeather.
func (s *WeatherService) DisplayWeather(ctx context.Context, location string) (string, error) {
	record, err := s.GetWeather(ctx, location)
	if err != nil {
		return "", err
	}
	return record.DisplayFormat(), nil
}

// CacheInfo summarizes the cache store at a point in time.
type CacheInfo struct {
	TotalEntries int      `json:"total_entries"`
	FreshEntries int      `json:"fresh_entries"`
	StaleEntries int      `json:"stale_entries"`
	TTLMinutes   float64  `json:"ttl_minutes"`
	CachedCities []string `json:"cached_cities"`
}

// CacheInfo reports entry counts and cached city keys. Always succeeds for
// the in-memory backend; remote backend failures surface as errors.
func (s *WeatherService) CacheInfo(ctx context.Context) (CacheInfo, error) {
	infos, err := s.store.Snapshot(ctx, s.ttl)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("snapshot", categorizeCacheError(err)).Inc()
		return CacheInfo{}, err
	}
	info := CacheInfo{
		TotalEntries: len(infos),
		TTLMinutes:   s.ttl.Minutes(),
		CachedCities: make([]string, 0, len(infos)),
	}
	for _, e := range infos {
		if e.Fresh {
			info.FreshEntries++
		} else {
			info.StaleEntries++
		}
		info.CachedCities = append(info.CachedCities, e.Key)
	}
	sort.Strings(info.CachedCities)
	return info, nil
}

// ClearCache removes every cached entry.
func (s *WeatherService) ClearCache(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("clear", categorizeCacheError(err)).Inc()
		return err
	}
	if logger := loggerFromContext(ctx); logger != nil {
		logger.Info("cache cleared")
	}
	return nil
}

// ClearCity removes the cached entry for one location; no-op when absent.
func (s *WeatherService) ClearCity(ctx context.Context, location string) error {
	key := normalizeLocation(location)
	if err := s.store.Clear(ctx, key); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("clear", categorizeCacheError(err)).Inc()
		return err
	}
	if logger := loggerFromContext(ctx); logger != nil {
		logger.Info("cache entry cleared", zap.String("location", key))
	}
	return nil
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}

// normalizeLocation folds a location into its cache key: trimmed, lowercased.
// The display casing is preserved on the record, not the key.
func normalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
