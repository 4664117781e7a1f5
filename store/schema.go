package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension used by the optional terminology vector
// lookup (cache.VectorBackend).
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Glossary terms: source/target term pairs scoped to a language pair,
-- applied during Preprocessing when a glossary path is configured.
CREATE TABLE IF NOT EXISTS glossary_terms (
    id INTEGER PRIMARY KEY,
    source_term TEXT NOT NULL,
    target_term TEXT NOT NULL,
    src_lang TEXT NOT NULL,
    tgt_lang TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source_term, src_lang, tgt_lang)
);

-- Translation cache: the narrow get/set trait from the Cache interface,
-- keyed by source text and language pair with an expiry window.
CREATE TABLE IF NOT EXISTS translation_cache (
    id INTEGER PRIMARY KEY,
    cache_key TEXT NOT NULL UNIQUE,
    source TEXT NOT NULL,
    translated TEXT NOT NULL,
    src_lang TEXT NOT NULL,
    tgt_lang TEXT NOT NULL,
    hit_count INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    expires_at DATETIME
);

-- Content-ADN cache: extracted entities (proper nouns, characters, terms,
-- patterns) keyed by document hash, reused across a document's chunks for
-- terminology consistency.
CREATE TABLE IF NOT EXISTS adn_cache (
    doc_hash TEXT PRIMARY KEY,
    value JSON NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Job checkpoints: per-chunk translation results keyed by job and chunk,
-- letting process_with_checkpoint_resume skip already-completed chunks.
CREATE TABLE IF NOT EXISTS checkpoints (
    job_id TEXT NOT NULL,
    chunk_id TEXT NOT NULL,
    original TEXT NOT NULL,
    translated TEXT NOT NULL,
    quality_score REAL NOT NULL,
    duration_ms INTEGER NOT NULL,
    from_cache INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (job_id, chunk_id)
);

-- Optional similarity-assisted terminology lookup via sqlite-vec,
-- complementing the exact-match glossary table above.
CREATE VIRTUAL TABLE IF NOT EXISTS vec_terms USING vec0(
    term_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

CREATE INDEX IF NOT EXISTS idx_glossary_lang ON glossary_terms(src_lang, tgt_lang);
CREATE INDEX IF NOT EXISTS idx_cache_lang ON translation_cache(src_lang, tgt_lang);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON translation_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_checkpoints_job ON checkpoints(job_id);
`, embeddingDim)
}
