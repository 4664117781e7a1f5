// Package input implements the file-format readers consumed by the
// orchestrator per §6: read_pdf, read_docx, and UTF-8 text for everything
// else. These are external collaborators in spec terms, but the corpus
// supplies their concrete implementations, so they are kept in-tree
// rather than mocked.
package input

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Read resolves path by extension and returns its plain-text content.
// Unknown extensions fall back to UTF-8 text, per §6.
func Read(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return ReadPDF(path)
	case ".docx":
		return ReadDOCX(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("input: reading %s: %w", path, err)
		}
		return string(data), nil
	}
}
