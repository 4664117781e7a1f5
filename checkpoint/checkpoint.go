// Package checkpoint adapts store's per-job checkpoint table into the
// map[chunk_id]batch.ChunkResult shape consumed by
// batch.ChunkProcessor.ProcessWithCheckpointResume, so a job interrupted
// mid-run (process crash, cancelled context) can resume without
// re-translating already-completed chunks.
package checkpoint

import (
	"context"

	"github.com/brunobiangulo/aps/batch"
	"github.com/brunobiangulo/aps/store"
)

// SQLiteStore persists chunk results keyed by job_id so a later run with
// the same job ID can resume from where the previous one stopped.
type SQLiteStore struct {
	st *store.Store
}

// New wraps an already-opened store for checkpoint use.
func New(st *store.Store) *SQLiteStore {
	return &SQLiteStore{st: st}
}

// Save persists a single chunk result under jobID, callable directly as a
// batch.CheckpointFunc via SaveFunc.
func (s *SQLiteStore) Save(ctx context.Context, jobID string, r batch.ChunkResult) error {
	return s.st.SaveCheckpoint(ctx, store.Checkpoint{
		JobID:        jobID,
		ChunkID:      r.ChunkID,
		Original:     r.Original,
		Translated:   r.Translated,
		QualityScore: r.QualityScore,
		DurationMS:   int64(r.DurationMS),
		FromCache:    r.FromCache,
		Error:        r.Error,
	})
}

// SaveFunc returns a batch.CheckpointFunc bound to jobID; errors are
// logged by the caller rather than surfaced, matching the processor's
// best-effort checkpoint contract.
func (s *SQLiteStore) SaveFunc(ctx context.Context, jobID string, onErr func(error)) batch.CheckpointFunc {
	return func(chunkID string, result batch.ChunkResult) {
		if err := s.Save(ctx, jobID, result); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Load returns every completed chunk result for jobID, ready to pass as
// ProcessWithCheckpointResume's completedResults argument.
func (s *SQLiteStore) Load(ctx context.Context, jobID string) (map[string]batch.ChunkResult, error) {
	rows, err := s.st.LoadCheckpoints(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]batch.ChunkResult, len(rows))
	for id, c := range rows {
		out[id] = batch.ChunkResult{
			ChunkID:      c.ChunkID,
			Original:     c.Original,
			Translated:   c.Translated,
			QualityScore: c.QualityScore,
			DurationMS:   float64(c.DurationMS),
			FromCache:    c.FromCache,
			Error:        c.Error,
		}
	}
	return out, nil
}

// Clear removes all checkpoint rows for a job once it completes
// successfully, so a later re-run with the same job ID starts fresh.
func (s *SQLiteStore) Clear(ctx context.Context, jobID string) error {
	return s.st.ClearCheckpoints(ctx, jobID)
}
