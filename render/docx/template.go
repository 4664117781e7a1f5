// Package docx implements the DOCX renderer (C10): it projects a
// DocumentAST onto a cached, pre-styled OOXML template, grounded on
// core/render/docx_renderer.py. As with the input package, the teacher
// never imports a third-party docx library, so the writer manipulates
// the OOXML package directly with archive/zip and encoding/xml.
package docx

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/brunobiangulo/aps"
)

// Required named styles, carried unchanged from any base template.
const (
	StyleTitle     = "APS_Title"
	StyleSubtitle  = "APS_Subtitle"
	StyleChapter   = "APS_Chapter"
	StyleSection   = "APS_Section"
	StyleHeading1  = "APS_Heading1"
	StyleHeading2  = "APS_Heading2"
	StyleHeading3  = "APS_Heading3"
	StyleParagraph = "APS_Paragraph"
	StyleQuote     = "APS_Quote"
	StyleCode      = "APS_Code"
	StyleList      = "APS_List"
	StyleFootnote  = "APS_Footnote"
	StyleTOC1      = "APS_TOC1"
	StyleTOC2      = "APS_TOC2"
)

// ContentStartMarker is the placeholder paragraph text removed before
// content is inserted.
const ContentStartMarker = "{{APS_CONTENT_START}}"

// TemplateCache reads each named template once and serves clones from
// memory thereafter, per §4.10 ("no disk re-read").
type TemplateCache struct {
	dir string

	mu   sync.RWMutex
	data map[string][]byte
}

// NewTemplateCache returns a cache rooted at dir, where templates live
// as base_<name>.docx.
func NewTemplateCache(dir string) *TemplateCache {
	return &TemplateCache{dir: dir, data: make(map[string][]byte)}
}

// Get returns the cached bytes for name, reading and caching it from
// disk on first use. "default" is used when name is empty, and also, with
// a warning logged, when the named template cannot be read; an error
// wrapping aps.ErrTemplateMissing is returned only when the default
// template cannot be read either.
func (c *TemplateCache) Get(name string) ([]byte, error) {
	if name == "" {
		name = "default"
	}

	c.mu.RLock()
	if b, ok := c.data[name]; ok {
		c.mu.RUnlock()
		return b, nil
	}
	c.mu.RUnlock()

	path := filepath.Join(c.dir, fmt.Sprintf("base_%s.docx", name))
	b, err := os.ReadFile(path)
	if err != nil {
		if name != "default" {
			slog.Warn("docx: template missing, falling back to default", "template", name, "error", err)
			return c.Get("default")
		}
		return nil, fmt.Errorf("docx: loading template %q: %w: %w", name, aps.ErrTemplateMissing, err)
	}

	c.mu.Lock()
	c.data[name] = b
	c.mu.Unlock()
	return b, nil
}
