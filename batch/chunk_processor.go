// Package batch implements the Chunk Processor (C3) and Result Aggregator
// (C4): bounded-concurrency translation over chunks, and deterministic
// merge of their results. The concurrency model is grounded on the
// teacher's graph.Builder.Build (semaphore + WaitGroup + mutex-guarded
// counters, per-item timeout, partial-failure tolerance).
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brunobiangulo/aps/chunker"
	"github.com/brunobiangulo/aps/translate"
)

// ChunkResult is the outcome of translating a single chunk (§3).
type ChunkResult struct {
	ChunkID      string
	Original     string
	Translated   string
	QualityScore float64
	DurationMS   float64
	FromCache    bool
	Error        string
}

// Success reports error == "".
func (r ChunkResult) Success() bool { return r.Error == "" }

// ProcessingStats summarizes a process_all run.
type ProcessingStats struct {
	TotalChunks  int
	Successful   int
	Failed       int
	FromCache    int
	TotalDurMS   float64
	AvgQuality   float64
}

// ProgressFunc receives (completed, total, avgQuality) after each chunk.
type ProgressFunc func(completed, total int, avgQuality float64)

// CheckpointFunc receives (chunkID, result) every checkpointInterval completions.
type CheckpointFunc func(chunkID string, result ChunkResult)

// ChunkProcessor runs a translate.Func over a chunk set under a
// concurrency gate with per-chunk timeout and an outer retry budget.
type ChunkProcessor struct {
	translateFn    translate.Func
	maxConcurrency int
	maxRetries     int
	timeout        time.Duration

	mu        sync.Mutex
	cancelled bool
}

// New builds a ChunkProcessor; mirrors graph.Builder's concurrency/timeout
// construction in the teacher.
func New(fn translate.Func, maxConcurrency, maxRetries int, timeout time.Duration) *ChunkProcessor {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ChunkProcessor{
		translateFn:    fn,
		maxConcurrency: maxConcurrency,
		maxRetries:     maxRetries,
		timeout:        timeout,
	}
}

// Cancel requests cooperative cancellation; queued-but-not-started chunks
// yield a Cancelled result, in-flight chunks run to completion or timeout.
func (p *ChunkProcessor) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
}

func (p *ChunkProcessor) isCancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

// ProcessAll processes every chunk concurrently, bounded by a counting
// semaphore, and returns results in input order regardless of completion
// order (P1).
func (p *ChunkProcessor) ProcessAll(
	ctx context.Context,
	chunks []chunker.Chunk,
	progress ProgressFunc,
	checkpoint CheckpointFunc,
	checkpointInterval int,
) ([]ChunkResult, ProcessingStats) {
	if len(chunks) == 0 {
		return nil, ProcessingStats{}
	}

	p.mu.Lock()
	p.cancelled = false
	p.mu.Unlock()

	results := make([]ChunkResult, len(chunks))

	var (
		mu             sync.Mutex
		wg             sync.WaitGroup
		sem            = make(chan struct{}, p.maxConcurrency)
		completedCount int
		totalQuality   float64
		start          = time.Now()
	)

	if checkpointInterval <= 0 {
		checkpointInterval = 5
	}

	slog.Info("batch: processing chunks", "total", len(chunks), "concurrency", p.maxConcurrency)

	for i, ch := range chunks {
		wg.Add(1)
		go func(idx int, c chunker.Chunk) {
			defer wg.Done()

			if p.isCancelled() {
				results[idx] = ChunkResult{ChunkID: c.ID, Original: c.Text, Error: "Cancelled"}
				p.recordCompletion(&mu, &completedCount, &totalQuality, results[idx], progress, checkpoint, checkpointInterval, len(chunks))
				return
			}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
				if p.isCancelled() {
					results[idx] = ChunkResult{ChunkID: c.ID, Original: c.Text, Error: "Cancelled"}
					p.recordCompletion(&mu, &completedCount, &totalQuality, results[idx], progress, checkpoint, checkpointInterval, len(chunks))
					return
				}
			case <-ctx.Done():
				results[idx] = ChunkResult{ChunkID: c.ID, Original: c.Text, Error: ctx.Err().Error()}
				p.recordCompletion(&mu, &completedCount, &totalQuality, results[idx], progress, checkpoint, checkpointInterval, len(chunks))
				return
			}

			chunkStart := time.Now()
			res := p.runWithRetries(ctx, c)
			res.DurationMS = float64(time.Since(chunkStart).Microseconds()) / 1000.0
			results[idx] = res

			p.recordCompletion(&mu, &completedCount, &totalQuality, res, progress, checkpoint, checkpointInterval, len(chunks))
		}(i, ch)
	}

	wg.Wait()

	stats := calculateStats(results)
	slog.Info("batch: chunk processing complete",
		"successful", stats.Successful, "failed", stats.Failed, "total", stats.TotalChunks,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return results, stats
}

// recordCompletion updates shared counters under a single mutex and fires
// the progress/checkpoint callbacks, matching §4.3's "shared counters
// guarded by mutex held only for updates" policy.
func (p *ChunkProcessor) recordCompletion(
	mu *sync.Mutex,
	completedCount *int,
	totalQuality *float64,
	res ChunkResult,
	progress ProgressFunc,
	checkpoint CheckpointFunc,
	checkpointInterval int,
	total int,
) {
	mu.Lock()
	*completedCount++
	if res.Success() {
		*totalQuality += res.QualityScore
	}
	n := *completedCount
	avg := 0.0
	if n > 0 {
		avg = *totalQuality / float64(n)
	}
	fireCheckpoint := n%checkpointInterval == 0
	mu.Unlock()

	if fireCheckpoint && checkpoint != nil {
		checkpoint(res.ChunkID, res)
	}
	if progress != nil {
		progress(n, total, avg)
	}
}

// runWithRetries invokes the translation callable with a per-chunk timeout,
// retrying transient failures (including timeouts) for at most maxRetries
// attempts in total (at least one attempt is always made).
func (p *ChunkProcessor) runWithRetries(ctx context.Context, c chunker.Chunk) ChunkResult {
	var lastErr error
	attempts := p.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		chunkCtx, cancel := context.WithTimeout(ctx, p.timeout)
		result, err := p.translateFn(chunkCtx, c.ID, c.Text)
		cancel()

		if err == nil {
			return ChunkResult{
				ChunkID:      c.ID,
				Original:     c.Text,
				Translated:   result.Translated,
				QualityScore: result.QualityScore,
				FromCache:    result.FromCache,
			}
		}

		lastErr = err
		if chunkCtx.Err() == context.DeadlineExceeded {
			slog.Warn("batch: chunk timeout", "chunk_id", c.ID, "attempt", attempt+1)
			lastErr = fmt.Errorf("timeout after %s", p.timeout)
			continue
		}
		if !translate.IsTransient(err) {
			slog.Warn("batch: chunk translation failed, not retrying", "chunk_id", c.ID, "attempt", attempt+1, "error", err)
			break
		}
		slog.Warn("batch: chunk translation failed", "chunk_id", c.ID, "attempt", attempt+1, "error", err)
	}

	return ChunkResult{ChunkID: c.ID, Original: c.Text, Translated: "[ERROR]", Error: lastErr.Error()}
}

func calculateStats(results []ChunkResult) ProcessingStats {
	var stats ProcessingStats
	stats.TotalChunks = len(results)
	var qualitySum float64
	for _, r := range results {
		stats.TotalDurMS += r.DurationMS
		if r.Success() {
			stats.Successful++
			qualitySum += r.QualityScore
		} else {
			stats.Failed++
		}
		if r.FromCache {
			stats.FromCache++
		}
	}
	if stats.Successful > 0 {
		stats.AvgQuality = qualitySum / float64(stats.Successful)
	}
	return stats
}

// ProcessWithCheckpointResume skips chunks already present in
// completedResults, processes the rest, and merges back in original order
// (supplements the Python original's checkpoint-resume contract).
func (p *ChunkProcessor) ProcessWithCheckpointResume(
	ctx context.Context,
	allChunks []chunker.Chunk,
	completedResults map[string]ChunkResult,
	progress ProgressFunc,
	checkpoint CheckpointFunc,
) ([]ChunkResult, ProcessingStats) {
	var pending []chunker.Chunk
	for _, c := range allChunks {
		if _, ok := completedResults[c.ID]; !ok {
			pending = append(pending, c)
		}
	}

	if len(pending) == 0 {
		slog.Info("batch: all chunks already completed from checkpoint")
		final := make([]ChunkResult, len(allChunks))
		for i, c := range allChunks {
			r := completedResults[c.ID]
			r.FromCache = true
			final[i] = r
		}
		return final, calculateStats(final)
	}

	slog.Info("batch: resuming from checkpoint", "done", len(completedResults), "remaining", len(pending))

	newResults, stats := p.ProcessAll(ctx, pending, progress, checkpoint, 5)
	newByID := make(map[string]ChunkResult, len(newResults))
	for _, r := range newResults {
		newByID[r.ChunkID] = r
	}

	final := make([]ChunkResult, len(allChunks))
	for i, c := range allChunks {
		if r, ok := completedResults[c.ID]; ok {
			r.FromCache = true
			final[i] = r
		} else if r, ok := newByID[c.ID]; ok {
			final[i] = r
		} else {
			slog.Warn("batch: missing result for chunk", "chunk_id", c.ID)
			final[i] = ChunkResult{ChunkID: c.ID, Translated: "[MISSING]", Error: "no result available"}
		}
	}

	return final, stats
}
