//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

// ---------------------------------------------------------------------------
// Glossary
// ---------------------------------------------------------------------------

func TestUpsertAndLoadGlossary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertGlossaryTerm(ctx, GlossaryTerm{SourceTerm: "manifold", TargetTerm: "đa tạp", SrcLang: "en", TgtLang: "vi"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertGlossaryTerm(ctx, GlossaryTerm{SourceTerm: "manifold", TargetTerm: "đa-tạp", SrcLang: "en", TgtLang: "vi"}); err != nil {
		t.Fatalf("upsert overwrite: %v", err)
	}

	g, err := s.LoadGlossary(ctx, "en", "vi")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if g["manifold"] != "đa-tạp" {
		t.Fatalf("expected overwritten term, got %q", g["manifold"])
	}
}

func TestLoadGlossaryScopedByLanguagePair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.UpsertGlossaryTerm(ctx, GlossaryTerm{SourceTerm: "kernel", TargetTerm: "hạt nhân", SrcLang: "en", TgtLang: "vi"})
	s.UpsertGlossaryTerm(ctx, GlossaryTerm{SourceTerm: "kernel", TargetTerm: "noyau", SrcLang: "en", TgtLang: "fr"})

	vi, _ := s.LoadGlossary(ctx, "en", "vi")
	fr, _ := s.LoadGlossary(ctx, "en", "fr")
	if vi["kernel"] != "hạt nhân" || fr["kernel"] != "noyau" {
		t.Fatalf("expected language-pair scoped lookups, got vi=%v fr=%v", vi, fr)
	}
}

// ---------------------------------------------------------------------------
// Translation cache
// ---------------------------------------------------------------------------

func TestCacheGetMiss(t *testing.T) {
	s := newTestStore(t)
	if _, ok := s.Get(context.Background(), "hello", "en", "vi"); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestCacheSetThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Set(ctx, "hello world", "xin chào thế giới", "en", "vi")

	got, ok := s.Get(ctx, "hello world", "en", "vi")
	if !ok || got != "xin chào thế giới" {
		t.Fatalf("expected cache hit, got %q ok=%v", got, ok)
	}
}

func TestCacheGetIncrementsHitCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Set(ctx, "term", "thuật ngữ", "en", "vi")
	s.Get(ctx, "term", "en", "vi")
	s.Get(ctx, "term", "en", "vi")

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalHits != 2 {
		t.Fatalf("expected 2 hits, got %d", stats.TotalHits)
	}
}

func TestCacheClearAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Set(ctx, "a", "b", "en", "vi")
	s.SetADN(ctx, "dochash1", `["Alice","Bob"]`)

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	if _, ok := s.Get(ctx, "a", "en", "vi"); ok {
		t.Fatal("expected empty cache after clear")
	}
	if _, ok := s.GetADN(ctx, "dochash1"); ok {
		t.Fatal("expected empty ADN cache after clear")
	}
}

func TestCacheCleanupExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := cacheKey("stale", "en", "vi")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO translation_cache (cache_key, source, translated, src_lang, tgt_lang, expires_at)
		VALUES (?, 'stale', 'cũ', 'en', 'vi', ?)
	`, key, time.Now().Add(-time.Hour).UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("seeding expired row: %v", err)
	}

	n, err := s.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row cleaned up, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Content-ADN cache
// ---------------------------------------------------------------------------

func TestADNCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SetADN(ctx, "dochash1", `{"entities":["Alice","Bob"]}`)

	v, ok := s.GetADN(ctx, "dochash1")
	if !ok || v != `{"entities":["Alice","Bob"]}` {
		t.Fatalf("expected ADN round trip, got %q ok=%v", v, ok)
	}
}

func TestADNCacheMiss(t *testing.T) {
	s := newTestStore(t)
	if _, ok := s.GetADN(context.Background(), "unknown"); ok {
		t.Fatal("expected miss for unknown doc hash")
	}
}

// ---------------------------------------------------------------------------
// Checkpoints
// ---------------------------------------------------------------------------

func TestCheckpointSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := Checkpoint{JobID: "job-1", ChunkID: "chunk-0", Original: "hi", Translated: "chào", QualityScore: 0.9, DurationMS: 120}
	if err := s.SaveCheckpoint(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.LoadCheckpoints(ctx, "job-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := loaded["chunk-0"]
	if !ok || got.Translated != "chào" {
		t.Fatalf("expected loaded checkpoint, got %+v ok=%v", got, ok)
	}
}

func TestCheckpointIsolatedByJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SaveCheckpoint(ctx, Checkpoint{JobID: "job-a", ChunkID: "c0", Original: "x", Translated: "y"})
	s.SaveCheckpoint(ctx, Checkpoint{JobID: "job-b", ChunkID: "c0", Original: "x", Translated: "z"})

	a, _ := s.LoadCheckpoints(ctx, "job-a")
	if a["c0"].Translated != "y" {
		t.Fatalf("expected job-a isolation, got %+v", a)
	}
}

func TestCheckpointClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SaveCheckpoint(ctx, Checkpoint{JobID: "job-1", ChunkID: "c0", Original: "x", Translated: "y"})
	if err := s.ClearCheckpoints(ctx, "job-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	loaded, _ := s.LoadCheckpoints(ctx, "job-1")
	if len(loaded) != 0 {
		t.Fatalf("expected empty checkpoints after clear, got %d", len(loaded))
	}
}

// ---------------------------------------------------------------------------
// Terminology vectors
// ---------------------------------------------------------------------------

func TestTermVectorSearchReturnsNearest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.InsertTermVector(ctx, 1, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertTermVector(ctx, 2, []float32{0, 1, 0, 0}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	ids, err := s.SearchSimilarTerms(ctx, []float32{1, 0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected nearest term 1, got %v", ids)
	}
}
