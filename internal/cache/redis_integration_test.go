//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"
)

// TestRedisStore_PutGet_Integration verifies entries survive the wire format
// round trip when a redis server is available.
func TestRedisStore_PutGet_Integration(t *testing.T) {
	s := NewRedisStore("localhost:6379", "", 0)
	defer s.Close()

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = s.ClearAll(ctx) })

	fetchedAt := time.Now().Truncate(time.Millisecond)
	rec := testRecord(t, "Seattle", 12.5)
	if err := s.Put(ctx, "seattle", rec, fetchedAt); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	entry, ok, err := s.Get(ctx, "seattle")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if entry.Record.City() != "Seattle" || entry.Record.Temperature() != 12.5 {
		t.Errorf("Get() record = %q/%v, want Seattle/12.5", entry.Record.City(), entry.Record.Temperature())
	}
}

// TestRedisStore_SnapshotClear_Integration verifies key scanning backs
// snapshot and clear-all.
func TestRedisStore_SnapshotClear_Integration(t *testing.T) {
	s := NewRedisStore("localhost:6379", "", 0)
	defer s.Close()

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = s.ClearAll(ctx) })

	_ = s.Put(ctx, "seattle", testRecord(t, "Seattle", 12.5), time.Now())
	_ = s.Put(ctx, "london", testRecord(t, "London", 8.0), time.Now())

	infos, err := s.Snapshot(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("Snapshot() has %d entries, want 2", len(infos))
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "london"); ok {
		t.Error("entry still present after ClearAll")
	}
}
