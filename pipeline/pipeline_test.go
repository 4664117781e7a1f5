package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/aps"
	"github.com/brunobiangulo/aps/batch"
	"github.com/brunobiangulo/aps/contracts"
	"github.com/brunobiangulo/aps/llm"
)

// echoProvider is a deterministic stand-in for a real LLM backend: it
// returns the input text prefixed by the target language, letting tests
// assert on translation shape without a network call.
type echoProvider struct {
	calls int
	mu    sync.Mutex
}

func (p *echoProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	last := req.Messages[len(req.Messages)-1].Content
	idx := strings.LastIndex(last, "\n\n")
	body := last
	if idx >= 0 {
		body = last[idx+2:]
	}
	return &llm.ChatResponse{Content: "[vi] " + body, FinishReason: "stop"}, nil
}

func (p *echoProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 0, 0, 0}
	}
	return out, nil
}

type memCheckpointer struct {
	mu    sync.Mutex
	store map[string]map[string]batch.ChunkResult
}

func newMemCheckpointer() *memCheckpointer {
	return &memCheckpointer{store: make(map[string]map[string]batch.ChunkResult)}
}

func (m *memCheckpointer) Save(ctx context.Context, jobID string, r batch.ChunkResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store[jobID] == nil {
		m.store[jobID] = make(map[string]batch.ChunkResult)
	}
	m.store[jobID][r.ChunkID] = r
	return nil
}

func (m *memCheckpointer) Load(ctx context.Context, jobID string) (map[string]batch.ChunkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]batch.ChunkResult, len(m.store[jobID]))
	for k, v := range m.store[jobID] {
		out[k] = v
	}
	return out, nil
}

func (m *memCheckpointer) Clear(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, jobID)
	return nil
}

func testConfig(t *testing.T) aps.Config {
	cfg := aps.DefaultConfig()
	cfg.ChunkSize = 64
	cfg.MaxConcurrency = 2
	cfg.TemplateDir = t.TempDir()
	return cfg
}

func writeInput(t *testing.T, text string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunProducesCompletedJobAndPDF(t *testing.T) {
	provider := &echoProvider{}
	cfg := testConfig(t)
	p := New(cfg, provider, nil, nil, nil, nil)

	inputPath := writeInput(t, "Chapter One\n\nThe cat sat on the mat. It was warm there.\n\nChapter Two\n\nIt rained all day long.")
	outPath := filepath.Join(t.TempDir(), "out.pdf")

	res := p.Run(context.Background(), Request{
		JobID:      "job-1",
		InputPath:  inputPath,
		OutputPath: outPath,
		Format:     FormatPDF,
	}, nil)

	if !res.Job.Success {
		t.Fatalf("expected success, got error: %s", res.Job.Error)
	}
	if len(res.Manuscript.Segments) == 0 {
		t.Fatal("expected at least one translated segment")
	}
	for _, s := range res.Manuscript.Segments {
		if !strings.HasPrefix(s.TranslatedText, "[vi] ") {
			t.Fatalf("expected translated segment, got %q", s.TranslatedText)
		}
	}
	if res.Manuscript.Metadata.Checksum == "" {
		t.Fatal("expected manuscript checksum to be stamped")
	}
	if res.Layout.Metadata.Checksum == "" {
		t.Fatal("expected layout checksum to be stamped")
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}
}

func TestRunPreservesFormulaSpans(t *testing.T) {
	provider := &echoProvider{}
	cfg := testConfig(t)
	p := New(cfg, provider, nil, nil, nil, nil)

	inputPath := writeInput(t, "The energy relation $E = mc^2$ is foundational to relativity theory.")
	outPath := filepath.Join(t.TempDir(), "out.pdf")

	res := p.Run(context.Background(), Request{
		JobID:      "job-formula",
		InputPath:  inputPath,
		OutputPath: outPath,
		Format:     FormatPDF,
	}, nil)

	if !res.Job.Success {
		t.Fatalf("expected success, got error: %s", res.Job.Error)
	}
	if res.Verification.FormulasLost != 0 {
		t.Fatalf("expected no formulas lost, got %d", res.Verification.FormulasLost)
	}
	full := res.Manuscript.GetFullText()
	if !strings.Contains(full, "E = mc^2") {
		t.Fatalf("expected formula preserved verbatim in output, got %q", full)
	}
}

func TestRunFailsOnMissingInput(t *testing.T) {
	provider := &echoProvider{}
	cfg := testConfig(t)
	p := New(cfg, provider, nil, nil, nil, nil)

	res := p.Run(context.Background(), Request{
		JobID:      "job-missing",
		InputPath:  "/nonexistent/path.txt",
		OutputPath: filepath.Join(t.TempDir(), "out.pdf"),
		Format:     FormatPDF,
	}, nil)

	if res.Job.Success {
		t.Fatal("expected failure for missing input")
	}
	if res.Job.Error == "" {
		t.Fatal("expected a populated error message")
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	provider := &echoProvider{}
	cfg := testConfig(t)
	checkpoints := newMemCheckpointer()
	p := New(cfg, provider, nil, nil, checkpoints, nil)

	inputPath := writeInput(t, "Paragraph one has some content here.\n\nParagraph two has different content here.")

	// Seed a checkpoint for a chunk ID that will exist after chunking by
	// running once, capturing the chunk IDs saved, and confirming a second
	// run with the same job ID and Resume=true does not increase the
	// provider call count for that chunk.
	outPath1 := filepath.Join(t.TempDir(), "out1.pdf")
	first := p.Run(context.Background(), Request{
		JobID:      "job-resume",
		InputPath:  inputPath,
		OutputPath: outPath1,
		Format:     FormatPDF,
		Resume:     true,
	}, nil)
	if !first.Job.Success {
		t.Fatalf("expected first run to succeed, got %s", first.Job.Error)
	}
	callsAfterFirst := provider.calls

	// The pipeline clears checkpoints on success, so re-seed manually to
	// exercise the resume path in isolation.
	for _, seg := range first.Manuscript.Segments {
		checkpoints.Save(context.Background(), "job-resume-2", batch.ChunkResult{
			ChunkID:    seg.ID,
			Original:   seg.OriginalText,
			Translated: seg.TranslatedText,
		})
	}

	outPath2 := filepath.Join(t.TempDir(), "out2.pdf")
	second := p.Run(context.Background(), Request{
		JobID:      "job-resume-2",
		InputPath:  inputPath,
		OutputPath: outPath2,
		Format:     FormatPDF,
		Resume:     true,
	}, nil)
	if !second.Job.Success {
		t.Fatalf("expected second run to succeed, got %s", second.Job.Error)
	}
	if provider.calls != callsAfterFirst {
		t.Fatalf("expected resumed chunks to skip translation, calls went from %d to %d", callsAfterFirst, provider.calls)
	}
}

func TestCountChaptersCountsLevelOneHeadings(t *testing.T) {
	segments := []contracts.Segment{
		{TranslatedText: "Chapter One"},
		{TranslatedText: "Some body text here."},
		{TranslatedText: "1.1 A subsection"},
		{TranslatedText: "Chapter Two"},
		{TranslatedText: "More body text."},
	}
	assert.Equal(t, 2, countChapters(segments))
}

func TestBuildSectionsMarksLevelOneAsChapter(t *testing.T) {
	blocks := []contracts.Block{
		{ID: "block_0", Kind: contracts.BlockHeading, Text: "Chapter One", Level: 1},
		{ID: "block_1", Kind: contracts.BlockParagraph, Text: "body"},
		{ID: "block_2", Kind: contracts.BlockHeading, Text: "1.1 Subsection", Level: 2},
		{ID: "block_3", Kind: contracts.BlockParagraph, Text: "more body"},
	}
	sections := buildSections(blocks)

	require.Len(t, sections, 2)
	assert.True(t, sections[0].IsChapter)
	assert.Equal(t, "block_0", sections[0].StartBlockID)
	assert.Equal(t, "block_1", sections[0].EndBlockID)
	assert.False(t, sections[1].IsChapter)
	assert.Equal(t, "block_2", sections[1].StartBlockID)
	assert.Equal(t, "block_3", sections[1].EndBlockID)
}

func TestBuildSectionsNoHeadingsYieldsNoSections(t *testing.T) {
	blocks := []contracts.Block{{ID: "block_0", Kind: contracts.BlockParagraph, Text: "body"}}
	assert.Empty(t, buildSections(blocks))
}
