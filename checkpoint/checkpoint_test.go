//go:build cgo

package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/aps/batch"
	"github.com/brunobiangulo/aps/store"
)

func newTestCheckpoint(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "checkpoint.db"), 4)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	c := newTestCheckpoint(t)
	ctx := context.Background()
	r := batch.ChunkResult{ChunkID: "c0", Original: "hi", Translated: "chào", QualityScore: 0.95, DurationMS: 42}
	if err := c.Save(ctx, "job-1", r); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := c.Load(ctx, "job-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := loaded["c0"]
	if !ok || got.Translated != "chào" {
		t.Fatalf("expected loaded checkpoint, got %+v ok=%v", got, ok)
	}
}

func TestSaveFuncSwallowsNoError(t *testing.T) {
	c := newTestCheckpoint(t)
	ctx := context.Background()
	var captured error
	fn := c.SaveFunc(ctx, "job-2", func(err error) { captured = err })
	fn("c0", batch.ChunkResult{ChunkID: "c0", Original: "x", Translated: "y"})
	if captured != nil {
		t.Fatalf("expected no error, got %v", captured)
	}
}

func TestClearRemovesJobCheckpoints(t *testing.T) {
	c := newTestCheckpoint(t)
	ctx := context.Background()
	c.Save(ctx, "job-3", batch.ChunkResult{ChunkID: "c0", Original: "x", Translated: "y"})
	if err := c.Clear(ctx, "job-3"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	loaded, _ := c.Load(ctx, "job-3")
	if len(loaded) != 0 {
		t.Fatalf("expected empty after clear, got %d", len(loaded))
	}
}
