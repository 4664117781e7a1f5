package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/brunobiangulo/aps/render/ast"
)

// Write clones the named template, drops the content-start marker
// paragraph, appends one OOXML paragraph per AST block styled by
// block type, and writes the result to outPath.
func Write(doc ast.DocumentAST, templateName string, cache *TemplateCache, outPath string) error {
	base, err := cache.Get(templateName)
	if err != nil {
		return err
	}

	reader, err := zip.NewReader(bytes.NewReader(base), int64(len(base)))
	if err != nil {
		return fmt.Errorf("docx: reading template archive: %w", err)
	}

	bookLayout := templateName == "book"

	var out bytes.Buffer
	w := zip.NewWriter(&out)

	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("docx: opening %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("docx: reading %s: %w", f.Name, err)
		}

		if f.Name == "word/document.xml" {
			data, err = injectBody(data, doc, bookLayout)
			if err != nil {
				return err
			}
		}

		dst, err := w.Create(f.Name)
		if err != nil {
			return fmt.Errorf("docx: writing %s: %w", f.Name, err)
		}
		if _, err := dst.Write(data); err != nil {
			return fmt.Errorf("docx: writing %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("docx: finalizing archive: %w", err)
	}

	return writeFile(outPath, out.Bytes())
}

// injectBody removes the content-start marker paragraph and inserts the
// rendered blocks immediately after its former position, leaving every
// other paragraph (front matter, TOC skeleton) untouched.
func injectBody(documentXML []byte, doc ast.DocumentAST, bookLayout bool) ([]byte, error) {
	xmlStr := string(documentXML)

	marker := ContentStartMarker
	idx := strings.Index(xmlStr, marker)
	if idx == -1 {
		// No marker: append before </w:body>.
		bodyClose := strings.LastIndex(xmlStr, "</w:body>")
		if bodyClose == -1 {
			return nil, fmt.Errorf("docx: template has no <w:body> element")
		}
		return []byte(xmlStr[:bodyClose] + renderBlocks(doc, bookLayout) + xmlStr[bodyClose:]), nil
	}

	paraStart := strings.LastIndex(xmlStr[:idx], "<w:p>")
	paraEnd := strings.Index(xmlStr[idx:], "</w:p>")
	if paraStart == -1 || paraEnd == -1 {
		return nil, fmt.Errorf("docx: malformed content-start marker paragraph")
	}
	paraEnd = idx + paraEnd + len("</w:p>")

	return []byte(xmlStr[:paraStart] + renderBlocks(doc, bookLayout) + xmlStr[paraEnd:]), nil
}

func renderBlocks(doc ast.DocumentAST, bookLayout bool) string {
	var b strings.Builder
	for _, blk := range doc.Blocks {
		b.WriteString(renderBlock(blk, bookLayout))
	}
	return b.String()
}

func renderBlock(blk ast.Block, bookLayout bool) string {
	pageBreak := blk.PageBreakBefore || (bookLayout && blk.Type == ast.BlockHeading && blk.Level == 1)

	switch blk.Type {
	case ast.BlockHeading:
		return paragraph(headingStyle(blk.Level), escape(blk.Text), pageBreak)
	case ast.BlockTheorem:
		title := blk.Title
		if blk.Number != "" {
			title = title + " " + blk.Number
		}
		return paragraph(StyleSection, escape(title), false) + paragraph(StyleParagraph, escape(blk.Text), false)
	case ast.BlockProof:
		symbol := blk.QEDSymbol
		if symbol == "" {
			symbol = "□"
		}
		return paragraph(StyleParagraph, escape(blk.Text)+" "+symbol, false)
	case ast.BlockEquation:
		return equationParagraph(blk)
	case ast.BlockQuote:
		return paragraph(StyleQuote, escape(blk.Text), false)
	case ast.BlockEpigraph:
		return paragraph(StyleQuote, escape(blk.Text), false)
	case ast.BlockScene:
		return paragraph(StyleParagraph, escape(blk.Text), false)
	case ast.BlockReference:
		return paragraph(StyleFootnote, escape(blk.Text), false)
	default:
		return paragraph(StyleParagraph, escape(blk.Text), pageBreak)
	}
}

func headingStyle(level int) string {
	switch level {
	case 1:
		return StyleChapter
	case 2:
		return StyleHeading2
	default:
		return StyleHeading3
	}
}

// equationParagraph injects OMML when present, otherwise falls back to
// a centered monospaced paragraph carrying the raw LaTeX, per §4.10.
func equationParagraph(blk ast.Block) string {
	if blk.OMMLXML != "" {
		return fmt.Sprintf(
			`<w:p><w:pPr><w:jc w:val="center"/></w:pPr><m:oMathPara>%s</m:oMathPara></w:p>`,
			blk.OMMLXML,
		)
	}
	return fmt.Sprintf(
		`<w:p><w:pPr><w:jc w:val="center"/><w:rPr><w:rFonts w:ascii="Consolas"/></w:rPr></w:pPr><w:r><w:rPr><w:rFonts w:ascii="Consolas"/></w:rPr><w:t xml:space="preserve">%s</w:t></w:r></w:p>`,
		escape(blk.LaTeX),
	)
}

func paragraph(style, text string, pageBreakBefore bool) string {
	pageBreak := ""
	if pageBreakBefore {
		pageBreak = `<w:pageBreakBefore/>`
	}
	return fmt.Sprintf(
		`<w:p><w:pPr><w:pStyle w:val="%s"/>%s</w:pPr><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`,
		style, pageBreak, text,
	)
}

func escape(s string) string {
	return html.EscapeString(s)
}
