// Package chunker implements the bounded-size, paragraph-respecting text
// splitter (C2). It is deliberately simpler than a token-budget RAG
// chunker: the translation pipeline needs byte-bounded units that never
// split a paragraph, not overlapping context windows.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Chunk is a bounded-size translatable unit. Its id defines merge order
// and ByteStart/ByteEnd record its offsets in the preprocessed source.
type Chunk struct {
	ID        string
	Text      string
	ByteStart int
	ByteEnd   int
	Hash      string
}

// Config controls chunk sizing.
type Config struct {
	ChunkSize int // max bytes per chunk buffer before a paragraph forces a flush
}

// Chunker splits preprocessed text into Chunks respecting paragraph
// boundaries, following the teacher's Config-with-defaults convention
// (chunker.New in the original retrieval chunker).
type Chunker struct {
	cfg Config
}

// New returns a Chunker; a zero ChunkSize defaults to 4000 bytes.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4000
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits text by blank-line paragraph boundaries and greedily
// accumulates paragraphs into buffers bounded by ChunkSize bytes. A single
// paragraph larger than ChunkSize becomes its own chunk (never split
// mid-paragraph). Empty input yields one chunk containing the original
// (possibly empty) text.
func (c *Chunker) Chunk(text string) []Chunk {
	paragraphs, offsets := splitParagraphsWithOffsets(text)
	if len(paragraphs) == 0 {
		return []Chunk{newChunk(0, text, 0, len(text))}
	}

	var chunks []Chunk
	var buf strings.Builder
	bufStart := offsets[0].start

	flush := func(end int) {
		if buf.Len() == 0 {
			return
		}
		idx := len(chunks)
		chunks = append(chunks, newChunk(idx, buf.String(), bufStart, end))
		buf.Reset()
	}

	for i, para := range paragraphs {
		start, end := offsets[i].start, offsets[i].end

		if len(para) > c.cfg.ChunkSize {
			// Flush whatever is pending, then emit this paragraph alone.
			flush(start)
			idx := len(chunks)
			chunks = append(chunks, newChunk(idx, para, start, end))
			bufStart = end
			continue
		}

		wouldExceed := buf.Len() > 0 && buf.Len()+len("\n\n")+len(para) > c.cfg.ChunkSize
		if wouldExceed {
			flush(start)
			bufStart = start
		}

		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush(len(text))

	if len(chunks) == 0 {
		return []Chunk{newChunk(0, text, 0, len(text))}
	}
	return chunks
}

func newChunk(index int, text string, start, end int) Chunk {
	return Chunk{
		ID:        fmt.Sprintf("chunk_%d", index),
		Text:      text,
		ByteStart: start,
		ByteEnd:   end,
		Hash:      contentHash(text),
	}
}

type offset struct{ start, end int }

// splitParagraphsWithOffsets splits on blank lines while tracking each
// paragraph's byte offsets in the original text; surrounding whitespace is
// trimmed from the paragraph text, and the recorded range covers exactly
// the trimmed text.
func splitParagraphsWithOffsets(text string) ([]string, []offset) {
	var paragraphs []string
	var offsets []offset

	raw := strings.Split(text, "\n\n")
	cursor := 0
	for _, part := range raw {
		partStart := cursor
		cursor += len(part) + 2 // account for the "\n\n" separator consumed by Split
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		// Recompute the trimmed span's offsets within part.
		leading := strings.Index(part, trimmed)
		start := partStart + leading
		end := start + len(trimmed)
		paragraphs = append(paragraphs, trimmed)
		offsets = append(offsets, offset{start, end})
	}
	return paragraphs, offsets
}

func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
