package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/aps/semantic"
)

func TestBuildHeadingLevelClamped(t *testing.T) {
	nodes := []semantic.DocNode{{Type: semantic.NodeHeading, Title: "Deep", Level: 9}}
	doc := Build(nodes, nil, false)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, 3, doc.Blocks[0].Level)
}

func TestBuildFirstParagraphAfterHeading(t *testing.T) {
	nodes := []semantic.DocNode{
		{Type: semantic.NodeHeading, Title: "Chapter 1", Level: 1},
		{Type: semantic.NodeParagraph, Text: "It was a dark night.", Metadata: map[string]string{}},
		{Type: semantic.NodeParagraph, Text: "Then it got darker.", Metadata: map[string]string{}},
	}
	doc := Build(nodes, nil, false)
	require.Len(t, doc.Blocks, 3)
	assert.Equal(t, RoleFirstParagraph, doc.Blocks[1].Role)
	assert.Equal(t, RoleNone, doc.Blocks[2].Role)
}

func TestBuildDialogueHintOverridesFirstParagraph(t *testing.T) {
	nodes := []semantic.DocNode{
		{Type: semantic.NodeHeading, Title: "Chapter 1", Level: 1},
		{Type: semantic.NodeParagraph, Text: `"Hello," she said.`, Metadata: map[string]string{"role": "dialogue"}},
	}
	doc := Build(nodes, nil, false)
	assert.Equal(t, RoleDialogue, doc.Blocks[1].Role)
}

func TestBuildEquationStripsDisplayDelimiters(t *testing.T) {
	nodes := []semantic.DocNode{{Type: semantic.NodeEquation, Text: "$$ x = y $$", Metadata: map[string]string{}}}
	doc := Build(nodes, nil, false)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "x = y", doc.Blocks[0].LaTeX)
	assert.Equal(t, "display", doc.Blocks[0].Mode)
}

func TestBuildEquationOMMLOnlyWhenPreserved(t *testing.T) {
	nodes := []semantic.DocNode{{Type: semantic.NodeEquation, Text: "$x$", Metadata: map[string]string{"omml_xml": "<m:oMath/>"}}}

	doc := Build(nodes, nil, false)
	assert.Empty(t, doc.Blocks[0].OMMLXML)

	doc = Build(nodes, nil, true)
	assert.Equal(t, "<m:oMath/>", doc.Blocks[0].OMMLXML)
}

func TestBuildTheoremAndProof(t *testing.T) {
	nodes := []semantic.DocNode{
		{Type: semantic.NodeTheorem, Title: "Theorem", Label: "Theorem 1.1", Text: "x = x", Metadata: map[string]string{"number": "1.1"}},
		{Type: semantic.NodeProof, Text: "trivial", Metadata: map[string]string{}},
	}
	doc := Build(nodes, nil, false)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "Theorem 1.1", doc.Blocks[0].Title)
	assert.Equal(t, "1.1", doc.Blocks[0].Number)
	assert.Equal(t, "□", doc.Blocks[1].QEDSymbol)
}

func TestBuildSceneBreakDefaultsSymbolWhenEmpty(t *testing.T) {
	nodes := []semantic.DocNode{{Type: semantic.NodeParagraph, Text: "", Metadata: map[string]string{"block_type": "scene_break"}}}
	doc := Build(nodes, nil, false)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "* * *", doc.Blocks[0].Text)
}
