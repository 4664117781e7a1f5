// Package ast implements the AST Builder (C9): it turns the semantic
// extractor's DocNode list into a DocumentAST of typed rendering blocks,
// grounded on core/render/ast_builder.py.
package ast

import (
	"strings"

	"github.com/brunobiangulo/aps/semantic"
)

// Role refines how a paragraph-like block should be typeset.
type Role string

const (
	RoleNone          Role = ""
	RoleFirstParagraph Role = "first_paragraph"
	RoleDialogue       Role = "dialogue"
)

// BlockType discriminates the Block sum type.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockEquation  BlockType = "equation"
	BlockTheorem   BlockType = "theorem_box"
	BlockProof     BlockType = "proof_box"
	BlockQuote     BlockType = "blockquote"
	BlockEpigraph  BlockType = "epigraph"
	BlockScene     BlockType = "scene_break"
	BlockReference BlockType = "reference_entry"
)

// Block is one typeset unit of the rendering plan.
type Block struct {
	Type            BlockType
	Text            string
	Level           int
	Role            Role
	PageBreakBefore bool

	// Theorem/proof fields.
	TheoremType string
	Title       string
	Number      string
	QEDSymbol   string

	// Equation fields.
	LaTeX   string
	Mode    string // "inline" or "display"
	OMMLXML string
}

// DocumentAST is the output of Build: an ordered block list plus the
// metadata carried through from the orchestrator.
type DocumentAST struct {
	Blocks   []Block
	Metadata map[string]string
}

// Build converts semantic nodes into a DocumentAST, per the mapping
// rules in §4.9. metadata is attached verbatim to the result; preserveOMML
// controls whether OMML XML hints on equation nodes survive into the AST.
func Build(nodes []semantic.DocNode, metadata map[string]string, preserveOMML bool) DocumentAST {
	doc := DocumentAST{Metadata: metadata}

	breaksFlow := false
	for _, n := range nodes {
		block := convert(n, preserveOMML)

		if breaksFlow && block.Type == BlockParagraph {
			if hint := n.Metadata["role"]; hint == "dialogue" {
				block.Role = RoleDialogue
			} else {
				block.Role = RoleFirstParagraph
			}
		}

		doc.Blocks = append(doc.Blocks, block)
		breaksFlow = blockBreaksFlow(block.Type)
	}

	return doc
}

func blockBreaksFlow(t BlockType) bool {
	return t == BlockHeading || t == BlockScene
}

func convert(n semantic.DocNode, preserveOMML bool) Block {
	switch n.Type {
	case semantic.NodeHeading:
		return Block{Type: BlockHeading, Text: n.Title, Level: headingLevel(n.Level)}
	case semantic.NodeTheorem:
		title := n.Label
		if title == "" {
			title = n.Title
		}
		if title == "" {
			title = string(n.Type)
		}
		return Block{
			Type:        BlockTheorem,
			TheoremType: n.Title,
			Title:       title,
			Text:        n.Text,
			Number:      n.Metadata["number"],
		}
	case semantic.NodeProof:
		symbol := n.Metadata["qed_symbol"]
		if symbol == "" {
			symbol = "□"
		}
		return Block{Type: BlockProof, Text: n.Text, QEDSymbol: symbol}
	case semantic.NodeEquation:
		return convertEquation(n, preserveOMML)
	case semantic.NodeReference:
		return Block{Type: BlockReference, Text: n.Text}
	default:
		if bt, ok := blockTypeHint(n.Metadata["block_type"]); ok {
			text := n.Text
			if bt == BlockScene && text == "" {
				text = "* * *"
			}
			return Block{Type: bt, Text: text}
		}
		return Block{Type: BlockParagraph, Text: n.Text}
	}
}

func blockTypeHint(hint string) (BlockType, bool) {
	switch hint {
	case "blockquote":
		return BlockQuote, true
	case "epigraph":
		return BlockEpigraph, true
	case "scene_break":
		return BlockScene, true
	default:
		return "", false
	}
}

// headingLevel clamps the semantic extractor's heading level into the
// AST's H1..H3 range used by the renderer's style table.
func headingLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 3 {
		return 3
	}
	return level
}

func convertEquation(n semantic.DocNode, preserveOMML bool) Block {
	latex := n.Text
	mode := "inline"

	switch {
	case strings.HasPrefix(latex, "$$") && strings.HasSuffix(latex, "$$"):
		latex = strings.TrimSuffix(strings.TrimPrefix(latex, "$$"), "$$")
		mode = "display"
	case strings.HasPrefix(latex, `\[`) && strings.HasSuffix(latex, `\]`):
		latex = strings.TrimSuffix(strings.TrimPrefix(latex, `\[`), `\]`)
		mode = "display"
	case strings.HasPrefix(latex, "$") && strings.HasSuffix(latex, "$"):
		latex = strings.TrimSuffix(strings.TrimPrefix(latex, "$"), "$")
	}
	latex = strings.TrimSpace(latex)

	block := Block{Type: BlockEquation, LaTeX: latex, Mode: mode, Text: n.Text}
	if preserveOMML {
		block.OMMLXML = n.Metadata["omml_xml"]
	}
	return block
}
