//go:build cgo

package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/aps/store"
)

func newTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "cache.db"), 4)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st)
}

func TestSQLiteCacheSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	c.Set(ctx, "hello", "xin chào", "en", "vi")

	got, ok := c.Get(ctx, "hello", "en", "vi")
	if !ok || got != "xin chào" {
		t.Fatalf("expected hit, got %q ok=%v", got, ok)
	}
}

func TestSQLiteCacheADN(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	c.SetADN(ctx, "hash1", `["Alice"]`)

	v, ok := c.GetADN(ctx, "hash1")
	if !ok || v != `["Alice"]` {
		t.Fatalf("expected ADN round trip, got %q ok=%v", v, ok)
	}
}

func TestSQLiteCacheStatsAndClear(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	c.Set(ctx, "a", "b", "en", "vi")
	c.Get(ctx, "a", "en", "vi")

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntries != 1 || stats.TotalHits != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := c.ClearAll(ctx); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	if _, ok := c.Get(ctx, "a", "en", "vi"); ok {
		t.Fatal("expected empty cache after clear")
	}
}
