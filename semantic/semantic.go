// Package semantic implements the Semantic Extractor (C8): it classifies
// an ordered list of paragraphs into a tree of typed document nodes,
// grounded on core/semantic/semantic_extractor.py.
package semantic

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// NodeType enumerates the kinds of DocNode the extractor can produce.
type NodeType string

const (
	NodeHeading    NodeType = "heading"
	NodeParagraph  NodeType = "paragraph"
	NodeTheorem    NodeType = "theorem"
	NodeProof      NodeType = "proof"
	NodeEquation   NodeType = "equation"
	NodeReferences NodeType = "references_section"
	NodeReference  NodeType = "reference_entry"
)

// DocNode is one classified unit of the document.
type DocNode struct {
	Type     NodeType
	Text     string
	Title    string
	Level    int
	Label    string
	Metadata map[string]string
}

func newNode(t NodeType, text string) DocNode {
	return DocNode{Type: t, Text: text, Metadata: map[string]string{}}
}

var (
	chapterKeywordRe = regexp.MustCompile(`(?i)^\s*(chapter|chương|第[一二三四五六七八九十百]+章)\b`)
	numberedHeadingRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)[.\s]+(.+)$`)
	allCapsRe         = regexp.MustCompile(`^[A-Z0-9 ,'"\-:]{3,80}$`)

	referencesMarkerRe = regexp.MustCompile(`(?i)^\s*(references|bibliography|tài liệu tham khảo)\s*$`)

	theoremOpenerRe = regexp.MustCompile(`(?i)^\s*(theorem|lemma|proposition|corollary|definition|định lý|bổ đề)\s*([0-9]+(?:\.[0-9]+)*)?\s*[.:]?`)
	proofOpenerRe   = regexp.MustCompile(`(?i)^\s*(proof|chứng minh)\b\s*(of\s+(.+?)[.:](?:\s|$))?\s*[.:]?`)

	qedSuffixRe = regexp.MustCompile(`(?i)(∎|□|■|◻|▪|q\.?e\.?d\.?|completes the proof|concludes the proof|hết chứng minh|ta có điều phải chứng minh)\s*$`)

	mathSymbolRe = regexp.MustCompile(`[+\-*/=<>≤≥≠±∑∏∫√∞∈∉⊂⊆∪∩∀∃∇∂αβγδεζηθλμνξπρστφχψωΓΔΘΛΞΠΣΦΨΩ{}()\[\]^_\\]`)
)

// openBlock tracks the in-progress theorem/proof block while scanning.
type openBlock struct {
	node *DocNode
}

// Extract classifies paragraphs into document nodes, following the
// eight-step detection priority from §4.8.
func Extract(paragraphs []string) []DocNode {
	var nodes []DocNode
	var lastTheorem *DocNode
	var open *openBlock
	inReferences := false

	flush := func() {
		if open != nil {
			nodes = append(nodes, *open.node)
			open = nil
		}
	}

	for i, raw := range paragraphs {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}

		if heading, ok := classifyHeading(p); ok {
			flush()
			inReferences = false
			nodes = append(nodes, heading)
			continue
		}

		if referencesMarkerRe.MatchString(p) {
			flush()
			inReferences = true
			nodes = append(nodes, newNode(NodeReferences, p))
			continue
		}

		if m := theoremOpenerRe.FindStringSubmatch(p); m != nil {
			flush()
			inReferences = false
			n := newNode(NodeTheorem, p)
			n.Title = titleCaser.String(strings.ToLower(m[1]))
			n.Label = strings.TrimSpace(m[1] + " " + m[2])
			if number := strings.TrimSpace(m[2]); number != "" {
				n.Metadata["number"] = number
			}
			nodes = append(nodes, n)
			lastTheorem = &nodes[len(nodes)-1]
			continue
		}

		if m := proofOpenerRe.FindStringSubmatch(p); m != nil {
			flush()
			inReferences = false
			n := newNode(NodeProof, p)
			if explicit := strings.TrimSpace(m[3]); explicit != "" {
				n.Metadata["explicit_label"] = explicit
			} else if lastTheorem != nil {
				n.Metadata["related_to_type"] = string(lastTheorem.Type)
				n.Metadata["related_to_label"] = lastTheorem.Label
			}
			open = &openBlock{node: &n}
			if qedSuffixRe.MatchString(p) {
				flush()
			}
			continue
		}

		if isEquationBlock(p) {
			flush()
			nodes = append(nodes, newNode(NodeEquation, p))
			continue
		}

		if open != nil {
			next := ""
			if i+1 < len(paragraphs) {
				next = strings.TrimSpace(paragraphs[i+1])
			}
			if open.node.Type == NodeProof {
				open.node.Text += "\n" + p
				if qedSuffixRe.MatchString(p) || startsNewBlock(next) {
					flush()
				}
				continue
			}
			// Theorem-type blocks never get here because they are flushed
			// immediately above; only proofs span multiple paragraphs.
		}

		if inReferences {
			nodes = append(nodes, newNode(NodeReference, p))
			continue
		}

		nodes = append(nodes, newNode(NodeParagraph, p))
	}
	flush()

	return nodes
}

func startsNewBlock(next string) bool {
	if next == "" {
		return true
	}
	if _, ok := classifyHeading(next); ok {
		return true
	}
	if theoremOpenerRe.MatchString(next) || referencesMarkerRe.MatchString(next) {
		return true
	}
	return false
}

func classifyHeading(p string) (DocNode, bool) {
	if chapterKeywordRe.MatchString(p) {
		n := newNode(NodeHeading, p)
		n.Title = p
		n.Level = 1
		return n, true
	}
	if m := numberedHeadingRe.FindStringSubmatch(p); m != nil {
		depth := strings.Count(m[1], ".") + 1
		level := depth + 1 // "X." -> H2, "X.Y" -> H3
		n := newNode(NodeHeading, p)
		n.Title = strings.TrimSpace(m[2])
		n.Level = level
		return n, true
	}
	if allCapsRe.MatchString(p) && !theoremOpenerRe.MatchString(p) && !proofOpenerRe.MatchString(p) {
		n := newNode(NodeHeading, p)
		n.Title = p
		n.Level = 2
		return n, true
	}
	return DocNode{}, false
}

func isEquationBlock(p string) bool {
	if strings.HasPrefix(p, "$$") || strings.HasPrefix(p, `\[`) {
		return true
	}
	if len(p) > 200 {
		return false
	}
	if len(p) == 0 {
		return false
	}
	symbolCount := len(mathSymbolRe.FindAllString(p, -1))
	return float64(symbolCount)/float64(len([]rune(p))) > 0.20
}
