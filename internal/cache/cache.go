// Package cache provides the weather record cache store and its backends.
//
// The store keeps at most one entry per normalized location key. Freshness is
// never enforced by the store itself: Get returns stale entries and the
// caller decides using Entry.Fresh and the configured TTL. Nothing evicts in
// the background; an entry disappears only when overwritten or explicitly
// cleared.
package cache

import (
	"context"
	"time"

	"github.com/dmoreira/weathertool/internal/models"
)

// Entry is a cached weather record together with the time it was fetched.
type Entry struct {
	Record    models.Record
	FetchedAt time.Time
}

// Fresh reports whether the entry's age is below ttl.
func (e Entry) Fresh(ttl time.Duration) bool {
	return time.Since(e.FetchedAt) < ttl
}

// Age returns how long ago the entry was fetched.
func (e Entry) Age() time.Duration {
	return time.Since(e.FetchedAt)
}

// Info is a value-only view of one entry, used for introspection. It carries
// no reference into the store's internal state.
type Info struct {
	Key       string        `json:"key"`
	FetchedAt time.Time     `json:"fetched_at"`
	Age       time.Duration `json:"age"`
	Fresh     bool          `json:"fresh"`
}

// Store is the interface cache backends implement.
type Store interface {
	// Get returns the entry for key regardless of freshness. Absence is a
	// normal (false) result, not an error.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Put unconditionally overwrites any existing entry for key.
	Put(ctx context.Context, key string, record models.Record, fetchedAt time.Time) error

	// Clear removes the entry for key; no-op when absent.
	Clear(ctx context.Context, key string) error

	// ClearAll removes every entry.
	ClearAll(ctx context.Context) error

	// Snapshot returns freshness-annotated metadata for every entry,
	// evaluated against ttl at call time. Keys are sorted.
	Snapshot(ctx context.Context, ttl time.Duration) ([]Info, error)
}

// entryPayload is the JSON wire shape remote backends store per key.
type entryPayload struct {
	Record    models.Record `json:"record"`
	FetchedAt time.Time     `json:"fetched_at"`
}

func infoFor(key string, fetchedAt time.Time, ttl time.Duration, now time.Time) Info {
	age := now.Sub(fetchedAt)
	return Info{
		Key:       key,
		FetchedAt: fetchedAt,
		Age:       age,
		Fresh:     age < ttl,
	}
}
