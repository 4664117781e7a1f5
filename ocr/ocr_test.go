package ocr

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/aps/llm"
)

type fakeVisionProvider struct {
	content string
}

func (f *fakeVisionProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: f.content}, nil
}

func (f *fakeVisionProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeVisionProvider) ChatWithImages(ctx context.Context, req llm.VisionChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: f.content}, nil
}

func TestNeedsOCRTrueForEmptyNativeText(t *testing.T) {
	if !NeedsOCR("", 50_000) {
		t.Fatal("expected empty native text to need OCR")
	}
}

func TestNeedsOCRFalseForSubstantialText(t *testing.T) {
	text := ""
	for i := 0; i < 50; i++ {
		text += "This is a line of real extracted prose text. "
	}
	if NeedsOCR(text, 50_000) {
		t.Fatal("expected substantial native text to skip OCR")
	}
}

func TestNeedsOCRFalseForZeroSizeFile(t *testing.T) {
	if NeedsOCR("", 0) {
		t.Fatal("expected zero-size file to skip OCR")
	}
}

func TestExtractReturnsVisionContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanned.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0644); err != nil {
		t.Fatal(err)
	}

	e := New(&fakeVisionProvider{content: "# Heading\n\nExtracted body text."})
	out, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out != "# Heading\n\nExtracted body text." {
		t.Fatalf("unexpected extraction output: %q", out)
	}
}
