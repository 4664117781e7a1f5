package batch

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/brunobiangulo/aps/stem"
)

// AggregatedResult is the final merged translation output (§3).
type AggregatedResult struct {
	Text             string
	ChunkCount       int
	TotalChars       int
	SuccessfulChunks int
	FailedChunks     int
	AvgQuality       float64
	TotalDurationMS  float64
	Metadata         map[string]any
}

// SuccessRate is successful/chunk_count, 0 when empty.
func (r AggregatedResult) SuccessRate() float64 {
	if r.ChunkCount == 0 {
		return 0
	}
	return float64(r.SuccessfulChunks) / float64(r.ChunkCount)
}

// ResultAggregator merges chunk results in chunk order, optionally
// restoring STEM placeholders and computing aggregate stats (C4).
type ResultAggregator struct {
	Separator string
}

// NewResultAggregator returns an aggregator with the default "\n\n" separator.
func NewResultAggregator(separator string) *ResultAggregator {
	if separator == "" {
		separator = "\n\n"
	}
	return &ResultAggregator{Separator: separator}
}

// Aggregate joins results in order. When includeFailed is true, failed
// chunks contribute the literal marker "[Translation failed: <error>]".
func (a *ResultAggregator) Aggregate(results []ChunkResult, includeFailed bool) AggregatedResult {
	if len(results) == 0 {
		return AggregatedResult{}
	}

	var texts []string
	var successful, failed int
	var totalDuration, qualitySum float64
	var failedIDs []string
	cacheHits := 0

	for _, r := range results {
		totalDuration += r.DurationMS
		if r.FromCache {
			cacheHits++
		}
		if r.Success() {
			texts = append(texts, r.Translated)
			successful++
			qualitySum += r.QualityScore
		} else {
			failed++
			failedIDs = append(failedIDs, r.ChunkID)
			if includeFailed {
				texts = append(texts, fmt.Sprintf("[Translation failed: %s]", r.Error))
			}
		}
	}

	combined := strings.Join(texts, a.Separator)
	avgQuality := 0.0
	if successful > 0 {
		avgQuality = qualitySum / float64(successful)
	}

	result := AggregatedResult{
		Text:             combined,
		ChunkCount:       len(results),
		TotalChars:       len(combined),
		SuccessfulChunks: successful,
		FailedChunks:     failed,
		AvgQuality:       avgQuality,
		TotalDurationMS:  totalDuration,
		Metadata: map[string]any{
			"failed_chunk_ids": failedIDs,
			"cache_hits":       cacheHits,
		},
	}

	if failed > 0 {
		slog.Warn("batch: aggregation had failures", "failed", failed, "total", len(results))
	}
	slog.Info("batch: aggregated chunks", "count", len(results), "chars", len(combined), "avg_quality", avgQuality)

	return result
}

// AggregateWithStemRestore aggregates normally, then restores placeholders
// via stem.Restore and attaches the verification record to
// metadata.stem_verification.
func (a *ResultAggregator) AggregateWithStemRestore(
	results []ChunkResult,
	matches []stem.Match,
) (AggregatedResult, stem.Verification) {
	aggregated := a.Aggregate(results, true)

	restored := stem.Restore(aggregated.Text, matchesToMap(matches))
	verification := stem.Verify(matches, restored)

	slog.Info("batch: stem preservation", "rate", verification.PreservationRate)
	if verification.FormulasLost > 0 {
		slog.Warn("batch: lost formulas", "count", verification.FormulasLost)
	}
	if verification.CodeLost > 0 {
		slog.Warn("batch: lost code blocks", "count", verification.CodeLost)
	}

	aggregated.Text = restored
	aggregated.TotalChars = len(restored)
	if aggregated.Metadata == nil {
		aggregated.Metadata = map[string]any{}
	}
	aggregated.Metadata["stem_verification"] = verification

	return aggregated, verification
}

func matchesToMap(matches []stem.Match) stem.Map {
	m := make(stem.Map, len(matches))
	for _, match := range matches {
		m[match.Token] = match.Original
	}
	return m
}

// MergeWithExisting combines newly-processed results with results carried
// over from a checkpoint, preserving allChunkIDs order (L1: commutes with
// the new/existing partition).
func (a *ResultAggregator) MergeWithExisting(
	newResults []ChunkResult,
	existing map[string]ChunkResult,
	allChunkIDs []string,
) []ChunkResult {
	newByID := make(map[string]ChunkResult, len(newResults))
	for _, r := range newResults {
		newByID[r.ChunkID] = r
	}

	combined := make([]ChunkResult, 0, len(allChunkIDs))
	for _, id := range allChunkIDs {
		switch {
		case contains(newByID, id):
			combined = append(combined, newByID[id])
		case contains(existing, id):
			r := existing[id]
			r.FromCache = true
			combined = append(combined, r)
		default:
			slog.Warn("batch: missing result for chunk", "chunk_id", id)
			combined = append(combined, ChunkResult{ChunkID: id, Translated: "[MISSING]", Error: "no result available"})
		}
	}
	return combined
}

func contains(m map[string]ChunkResult, key string) bool {
	_, ok := m[key]
	return ok
}
