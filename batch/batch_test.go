package batch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/aps/chunker"
	"github.com/brunobiangulo/aps/llm"
	"github.com/brunobiangulo/aps/translate"
)

func mockUppercaseTranslator() translate.Func {
	return func(ctx context.Context, chunkID, text string) (translate.Result, error) {
		return translate.Result{ChunkID: chunkID, Source: text, Translated: strings.ToUpper(text), QualityScore: 1.0}, nil
	}
}

func TestProcessAllOrderPreservation(t *testing.T) {
	chunks := []chunker.Chunk{
		{ID: "chunk_0", Text: "a"},
		{ID: "chunk_1", Text: "b"},
		{ID: "chunk_2", Text: "c"},
	}
	p := New(mockUppercaseTranslator(), 2, 1, time.Second)
	results, stats := p.ProcessAll(context.Background(), chunks, nil, nil, 5)

	require.Len(t, results, 3)
	assert.Equal(t, "chunk_0", results[0].ChunkID)
	assert.Equal(t, "chunk_1", results[1].ChunkID)
	assert.Equal(t, "chunk_2", results[2].ChunkID)
	assert.Equal(t, 3, stats.Successful)
}

func TestProcessAllPartialFailure(t *testing.T) {
	fn := func(ctx context.Context, chunkID, text string) (translate.Result, error) {
		if chunkID == "chunk_1" {
			return translate.Result{}, assertErr("boom")
		}
		return translate.Result{ChunkID: chunkID, Translated: text, QualityScore: 0.9}, nil
	}
	chunks := make([]chunker.Chunk, 5)
	for i := range chunks {
		chunks[i] = chunker.Chunk{ID: "chunk_" + string(rune('0'+i)), Text: "x"}
	}
	p := New(fn, 5, 1, time.Second)
	results, stats := p.ProcessAll(context.Background(), chunks, nil, nil, 5)

	require.Len(t, results, 5)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 4, stats.Successful)
}

func TestAggregateEmptyYieldsZeroStats(t *testing.T) {
	agg := NewResultAggregator("")
	result := agg.Aggregate(nil, true)
	assert.Equal(t, 0, result.ChunkCount)
	assert.Equal(t, 0.0, result.SuccessRate())
}

func TestAggregateAllFailedZeroQuality(t *testing.T) {
	results := []ChunkResult{
		{ChunkID: "chunk_0", Error: "boom"},
		{ChunkID: "chunk_1", Error: "boom"},
	}
	agg := NewResultAggregator("")
	out := agg.Aggregate(results, true)
	assert.Equal(t, 0.0, out.AvgQuality)
	assert.Equal(t, 0.0, out.SuccessRate())
	assert.Contains(t, out.Text, "[Translation failed: boom]")
}

func TestAggregateSingleChunkNoSeparator(t *testing.T) {
	results := []ChunkResult{{ChunkID: "chunk_0", Translated: "hello", QualityScore: 1.0}}
	agg := NewResultAggregator("\n\n")
	out := agg.Aggregate(results, true)
	assert.Equal(t, "hello", out.Text)
	assert.NotContains(t, out.Text, "\n\n")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestRunWithRetriesStopsOnNonTransientError(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, chunkID, text string) (translate.Result, error) {
		calls++
		return translate.Result{}, assertErr("bad request")
	}
	p := New(fn, 1, 4, time.Second)
	result := p.runWithRetries(context.Background(), chunker.Chunk{ID: "chunk_0", Text: "x"})

	assert.Equal(t, 1, calls)
	assert.False(t, result.Success())
}

func TestRunWithRetriesRetriesTransientError(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, chunkID, text string) (translate.Result, error) {
		calls++
		if calls < 3 {
			return translate.Result{}, llm.NewTransientError(assertErr("rate limited"))
		}
		return translate.Result{ChunkID: chunkID, Translated: text, QualityScore: 1.0}, nil
	}
	p := New(fn, 1, 4, time.Second)
	result := p.runWithRetries(context.Background(), chunker.Chunk{ID: "chunk_0", Text: "x"})

	assert.Equal(t, 3, calls)
	assert.True(t, result.Success())
}
