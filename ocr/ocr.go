// Package ocr implements the supplemented OCRProcessing phase: scanned or
// image-only PDFs that input.ReadPDF cannot extract text from are routed
// through a vision-capable LLM instead, producing the same plain-text
// shape the rest of the pipeline expects. Grounded on the teacher's
// parser.PDFVisionParser, adapted from the RAG ingestion path into a
// page-to-markdown extractor feeding Preprocessing directly.
package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/brunobiangulo/aps/llm"
)

const extractionPrompt = `Extract all text content from this PDF page. Preserve the structure:
- For tables, format as markdown tables
- For headings, prefix with appropriate markdown heading levels
- For lists, use markdown list format
- For diagrams, describe the content in [Diagram: ...] blocks
- Preserve section numbering`

// Extractor pulls plain text out of image-based documents via a vision
// LLM, used when input.Read's native PDF text layer is empty or
// suspiciously thin.
type Extractor struct {
	provider llm.VisionProvider
}

// New builds an Extractor bound to a vision-capable provider.
func New(provider llm.VisionProvider) *Extractor {
	return &Extractor{provider: provider}
}

// NeedsOCR reports whether extracted native text is too sparse to trust,
// the heuristic the orchestrator uses to decide whether to enter
// StateOCRProcessing at all (§3 "OCRProcessing is entered only when
// LoadingInput's native text extraction looks unreliable").
func NeedsOCR(nativeText string, fileSizeBytes int64) bool {
	if fileSizeBytes == 0 {
		return false
	}
	// A real page of prose runs well over a few hundred characters per
	// page; a scanned PDF with no text layer extracts to near nothing
	// regardless of file size.
	return len(strings.TrimSpace(nativeText)) < 200
}

// Extract reads the PDF at path as a single vision payload and returns
// markdown-structured text for the whole document.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ocr: reading pdf: %w", err)
	}

	b64 := base64.StdEncoding.EncodeToString(data)
	resp, err := e.provider.ChatWithImages(ctx, llm.VisionChatRequest{
		Messages: []llm.VisionMessage{
			{
				Role: "user",
				Content: []llm.ContentPart{
					{Type: "text", Text: extractionPrompt},
					{Type: "image_url", ImageURL: &llm.ImageURL{URL: "data:application/pdf;base64," + b64}},
				},
			},
		},
		MaxTokens: 4096,
	})
	if err != nil {
		return "", fmt.Errorf("ocr: vision extraction failed: %w", err)
	}
	return resp.Content, nil
}
