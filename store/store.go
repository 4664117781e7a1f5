// Package store adapts the teacher's sqlite3-backed persistence layer
// (originally a RAG document/chunk/entity store) into the glossary,
// translation-cache, and checkpoint backing named as external collaborators
// in §6: a glossary term table consulted during Preprocessing, a
// translation-cache table satisfying the get/set/get_adn/set_adn trait, and
// a checkpoint table keyed by (job_id, chunk_id) for resume. The
// connection-pool tuning, WAL pragma, and sqlite-vec wiring all follow the
// teacher's conventions; only the schema and query surface changed.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// GlossaryTerm represents a row in the glossary_terms table.
type GlossaryTerm struct {
	ID         int64  `json:"id"`
	SourceTerm string `json:"source_term"`
	TargetTerm string `json:"target_term"`
	SrcLang    string `json:"src_lang"`
	TgtLang    string `json:"tgt_lang"`
}

// CacheEntry represents a row in the translation_cache table.
type CacheEntry struct {
	CacheKey   string `json:"cache_key"`
	Source     string `json:"source"`
	Translated string `json:"translated"`
	SrcLang    string `json:"src_lang"`
	TgtLang    string `json:"tgt_lang"`
	HitCount   int64  `json:"hit_count"`
}

// CacheStats summarizes the translation_cache table, mirroring the
// `stats()` operational method named in §6.
type CacheStats struct {
	TotalEntries  int64 `json:"total_entries"`
	TotalHits     int64 `json:"total_hits"`
	ExpiredCount  int64 `json:"expired_count"`
}

// Checkpoint represents a row in the checkpoints table, one per chunk
// processed within a job, letting ProcessWithCheckpointResume skip
// already-completed chunks on retry.
type Checkpoint struct {
	JobID        string  `json:"job_id"`
	ChunkID      string  `json:"chunk_id"`
	Original     string  `json:"original"`
	Translated   string  `json:"translated"`
	QualityScore float64 `json:"quality_score"`
	DurationMS   int64   `json:"duration_ms"`
	FromCache    bool    `json:"from_cache"`
	Error        string  `json:"error,omitempty"`
}

// Store wraps the SQLite database for glossary, cache, and checkpoint
// persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the optional sqlite-vec terminology
// table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Glossary operations ---

// UpsertGlossaryTerm inserts or replaces a (source_term, src_lang, tgt_lang)
// mapping.
func (s *Store) UpsertGlossaryTerm(ctx context.Context, t GlossaryTerm) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO glossary_terms (source_term, target_term, src_lang, tgt_lang)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_term, src_lang, tgt_lang) DO UPDATE SET
			target_term = excluded.target_term
	`, t.SourceTerm, t.TargetTerm, t.SrcLang, t.TgtLang)
	return err
}

// LoadGlossary returns the full source->target mapping for a language pair,
// consumed by Preprocessing before a document is chunked.
func (s *Store) LoadGlossary(ctx context.Context, srcLang, tgtLang string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_term, target_term FROM glossary_terms
		WHERE src_lang = ? AND tgt_lang = ?
	`, srcLang, tgtLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var src, tgt string
		if err := rows.Scan(&src, &tgt); err != nil {
			return nil, err
		}
		out[src] = tgt
	}
	return out, rows.Err()
}

// --- Translation cache operations (§6 Cache trait) ---

func cacheKey(source, srcLang, tgtLang string) string {
	sum := sha256.Sum256([]byte(srcLang + "\x00" + tgtLang + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

// Get implements the `get(source, src_lang, tgt_lang)` trait method.
func (s *Store) Get(ctx context.Context, source, srcLang, tgtLang string) (string, bool) {
	key := cacheKey(source, srcLang, tgtLang)
	var translated string
	var expiresAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT translated, expires_at FROM translation_cache WHERE cache_key = ?
	`, key).Scan(&translated, &expiresAt)
	if err != nil {
		return "", false
	}
	if expiresAt.Valid {
		if t, err := time.Parse(time.RFC3339, expiresAt.String); err == nil && time.Now().After(t) {
			return "", false
		}
	}
	_, _ = s.db.ExecContext(ctx, `UPDATE translation_cache SET hit_count = hit_count + 1 WHERE cache_key = ?`, key)
	return translated, true
}

// Set implements the `set(source, translated, src_lang, tgt_lang)` trait
// method; writes are best-effort and never surface errors to the caller.
func (s *Store) Set(ctx context.Context, source, translated, srcLang, tgtLang string) {
	key := cacheKey(source, srcLang, tgtLang)
	expires := time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339)
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO translation_cache (cache_key, source, translated, src_lang, tgt_lang, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			translated = excluded.translated,
			expires_at = excluded.expires_at
	`, key, source, translated, srcLang, tgtLang, expires)
}

// GetADN returns the cached Content-ADN value for a document hash.
func (s *Store) GetADN(ctx context.Context, docHash string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM adn_cache WHERE doc_hash = ?`, docHash).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// SetADN stores a Content-ADN value (JSON-encoded entity list) for a
// document hash, best-effort.
func (s *Store) SetADN(ctx context.Context, docHash, value string) {
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO adn_cache (doc_hash, value) VALUES (?, ?)
		ON CONFLICT(doc_hash) DO UPDATE SET value = excluded.value
	`, docHash, value)
}

// ClearAll truncates both the translation cache and the ADN cache.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM translation_cache`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM adn_cache`)
		return err
	})
}

// CleanupExpired removes translation_cache rows past their expiry and
// returns the number of rows deleted.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM translation_cache
		WHERE expires_at IS NOT NULL AND expires_at < ?
	`, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats implements the `stats()` operational method named in §6.
func (s *Store) Stats(ctx context.Context) (CacheStats, error) {
	var st CacheStats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM translation_cache
	`)
	if err := row.Scan(&st.TotalEntries, &st.TotalHits); err != nil {
		return st, err
	}
	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM translation_cache
		WHERE expires_at IS NOT NULL AND expires_at < ?
	`, time.Now().UTC().Format(time.RFC3339))
	if err := row.Scan(&st.ExpiredCount); err != nil {
		return st, err
	}
	return st, nil
}

// --- Checkpoint operations (process_with_checkpoint_resume) ---

// SaveCheckpoint persists a single chunk result so a later resume of the
// same job_id can skip it.
func (s *Store) SaveCheckpoint(ctx context.Context, c Checkpoint) error {
	fromCache := 0
	if c.FromCache {
		fromCache = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (job_id, chunk_id, original, translated, quality_score, duration_ms, from_cache, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, chunk_id) DO UPDATE SET
			original = excluded.original,
			translated = excluded.translated,
			quality_score = excluded.quality_score,
			duration_ms = excluded.duration_ms,
			from_cache = excluded.from_cache,
			error = excluded.error
	`, c.JobID, c.ChunkID, c.Original, c.Translated, c.QualityScore, c.DurationMS, fromCache, nullIfEmpty(c.Error))
	return err
}

// LoadCheckpoints returns every completed chunk result for a job, keyed by
// chunk_id, so the chunk processor can skip already-done work on resume.
func (s *Store) LoadCheckpoints(ctx context.Context, jobID string) (map[string]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, chunk_id, original, translated, quality_score, duration_ms, from_cache, error
		FROM checkpoints WHERE job_id = ?
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Checkpoint)
	for rows.Next() {
		var c Checkpoint
		var fromCache int
		var errVal sql.NullString
		if err := rows.Scan(&c.JobID, &c.ChunkID, &c.Original, &c.Translated,
			&c.QualityScore, &c.DurationMS, &fromCache, &errVal); err != nil {
			return nil, err
		}
		c.FromCache = fromCache != 0
		c.Error = errVal.String
		out[c.ChunkID] = c
	}
	return out, rows.Err()
}

// ClearCheckpoints deletes every checkpoint row for a finished job.
func (s *Store) ClearCheckpoints(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE job_id = ?`, jobID)
	return err
}

// --- Terminology vector operations (cache.VectorBackend enrichment) ---

// InsertTermVector stores the embedding for a glossary term, enabling
// approximate terminology-consistency lookups across a document.
func (s *Store) InsertTermVector(ctx context.Context, termID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_terms (term_id, embedding) VALUES (?, ?)",
		termID, serializeFloat32(embedding))
	return err
}

// SearchSimilarTerms returns the k glossary term IDs nearest the query
// embedding, ordered by distance.
func (s *Store) SearchSimilarTerms(ctx context.Context, queryEmbedding []float32, k int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT term_id FROM vec_terms
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
