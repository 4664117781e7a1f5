// Package cache adapts the store package's SQLite tables into the optional
// Cache trait named in §6: get/set plus the Content-ADN cache and the three
// operational methods (clear_all, cleanup_expired, stats). SQLiteCache
// satisfies translate.Cache directly; VectorBackend layers an approximate,
// embedding-based terminology lookup on top using the teacher's sqlite-vec
// wiring, for documents where exact glossary matches miss due to
// inflection or phrasing.
package cache

import (
	"context"

	"github.com/brunobiangulo/aps/llm"
	"github.com/brunobiangulo/aps/store"
)

// SQLiteCache implements translate.Cache plus the ADN and operational
// methods named in §6, backed by a *store.Store.
type SQLiteCache struct {
	st *store.Store
}

// New wraps an already-opened store for cache use.
func New(st *store.Store) *SQLiteCache {
	return &SQLiteCache{st: st}
}

// Get implements translate.Cache.
func (c *SQLiteCache) Get(ctx context.Context, source, srcLang, tgtLang string) (string, bool) {
	return c.st.Get(ctx, source, srcLang, tgtLang)
}

// Set implements translate.Cache.
func (c *SQLiteCache) Set(ctx context.Context, source, translated, srcLang, tgtLang string) {
	c.st.Set(ctx, source, translated, srcLang, tgtLang)
}

// GetADN returns the cached Content-ADN payload for a document hash.
func (c *SQLiteCache) GetADN(ctx context.Context, docHash string) (string, bool) {
	return c.st.GetADN(ctx, docHash)
}

// SetADN stores a Content-ADN payload for a document hash.
func (c *SQLiteCache) SetADN(ctx context.Context, docHash, value string) {
	c.st.SetADN(ctx, docHash, value)
}

// ClearAll empties both the translation cache and the ADN cache.
func (c *SQLiteCache) ClearAll(ctx context.Context) error {
	return c.st.ClearAll(ctx)
}

// CleanupExpired removes expired translation-cache rows, returning the
// number of rows removed.
func (c *SQLiteCache) CleanupExpired(ctx context.Context) (int64, error) {
	return c.st.CleanupExpired(ctx)
}

// Stats reports cache size and hit counters.
func (c *SQLiteCache) Stats(ctx context.Context) (store.CacheStats, error) {
	return c.st.Stats(ctx)
}

// VectorBackend enriches SQLiteCache with a similarity-assisted
// terminology lookup: glossary terms are embedded once via an llm.Provider
// and indexed in sqlite-vec, so near-miss phrasing in a chunk can still
// resolve to the intended glossary entry.
type VectorBackend struct {
	st       *store.Store
	provider llm.Provider
	terms    map[int64]store.GlossaryTerm
}

// NewVectorBackend builds a VectorBackend over an already-populated
// glossary; callers index terms with IndexTerm before querying.
func NewVectorBackend(st *store.Store, provider llm.Provider) *VectorBackend {
	return &VectorBackend{st: st, provider: provider, terms: make(map[int64]store.GlossaryTerm)}
}

// IndexTerm embeds a glossary term's source text and stores the vector,
// keeping a local id->term map for lookup resolution.
func (v *VectorBackend) IndexTerm(ctx context.Context, id int64, term store.GlossaryTerm) error {
	vecs, err := v.provider.Embed(ctx, []string{term.SourceTerm})
	if err != nil {
		return err
	}
	if len(vecs) == 0 {
		return nil
	}
	v.terms[id] = term
	return v.st.InsertTermVector(ctx, id, vecs[0])
}

// Lookup embeds the query phrase and returns the nearest indexed glossary
// term's target text, or false if nothing was indexed yet.
func (v *VectorBackend) Lookup(ctx context.Context, phrase string) (string, bool, error) {
	vecs, err := v.provider.Embed(ctx, []string{phrase})
	if err != nil {
		return "", false, err
	}
	if len(vecs) == 0 {
		return "", false, nil
	}
	ids, err := v.st.SearchSimilarTerms(ctx, vecs[0], 1)
	if err != nil {
		return "", false, err
	}
	if len(ids) == 0 {
		return "", false, nil
	}
	term, ok := v.terms[ids[0]]
	if !ok {
		return "", false, nil
	}
	return term.TargetTerm, true, nil
}
