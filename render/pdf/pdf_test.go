package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/aps/render/ast"
)

func TestWrapTextSplitsOnWidth(t *testing.T) {
	lines := wrapText("one two three four five six seven eight nine ten eleven twelve", 20)
	require.Greater(t, len(lines), 1)
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 20+len("twelve"))
	}
}

func TestWrapTextEmptyYieldsSingleBlankLine(t *testing.T) {
	assert.Equal(t, []string{""}, wrapText("", 80))
}

func TestEscapePDFStringEscapesParensAndBackslash(t *testing.T) {
	assert.Equal(t, `\(a\\b\)`, escapePDFString(`(a\b)`))
}

func TestPaginateHonorsPageBreakBefore(t *testing.T) {
	doc := ast.DocumentAST{Blocks: []ast.Block{
		{Type: ast.BlockParagraph, Text: "first"},
		{Type: ast.BlockHeading, Text: "second", PageBreakBefore: true},
	}}
	pages := paginate(doc)
	require.Len(t, pages, 2)
}

func TestRenderProducesValidPDFHeader(t *testing.T) {
	doc := ast.DocumentAST{Blocks: []ast.Block{{Type: ast.BlockParagraph, Text: "hello"}}}
	out, err := Render(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out[:8]), "%PDF-1.4")
	assert.Contains(t, string(out), "%%EOF")
}
