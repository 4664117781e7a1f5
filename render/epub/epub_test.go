package epub

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/aps/render/ast"
)

func TestGroupChaptersSplitsOnH1(t *testing.T) {
	doc := ast.DocumentAST{Blocks: []ast.Block{
		{Type: ast.BlockHeading, Level: 1, Text: "Chapter One"},
		{Type: ast.BlockParagraph, Text: "Body one."},
		{Type: ast.BlockHeading, Level: 1, Text: "Chapter Two"},
		{Type: ast.BlockParagraph, Text: "Body two."},
	}}
	chapters := groupChapters(doc)
	require.Len(t, chapters, 2)
	assert.Equal(t, "Chapter One", chapters[0].title)
	assert.Contains(t, chapters[0].body.String(), "Body one.")
	assert.Equal(t, "Chapter Two", chapters[1].title)
}

func TestRenderProducesMimetypeFirstUncompressed(t *testing.T) {
	doc := ast.DocumentAST{Blocks: []ast.Block{
		{Type: ast.BlockHeading, Level: 1, Text: "Only Chapter"},
		{Type: ast.BlockParagraph, Text: "Hello."},
	}}
	out, err := Render(doc, "Test Book")
	require.NoError(t, err)

	r, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.NotEmpty(t, r.File)
	assert.Equal(t, "mimetype", r.File[0].Name)
	assert.Equal(t, zip.Store, r.File[0].Method)
}

func TestSlugLowercasesAndReplacesSpaces(t *testing.T) {
	assert.Equal(t, "my-book-title", slug("My Book Title"))
}
