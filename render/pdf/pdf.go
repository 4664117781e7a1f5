// Package pdf implements the PDF renderer named alongside the DOCX
// renderer in §4.10: a flowable list of AST blocks laid out with
// template-derived paragraph styles, plus a page callback that centers
// page numbers. The teacher's only PDF dependency (ledongthuc/pdf) is a
// reader; no PDF-writing library appears anywhere in the corpus, so the
// writer emits the PDF object graph directly against the stdlib — see
// DESIGN.md.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/brunobiangulo/aps/render/ast"
)

const (
	pageWidth   = 612.0 // US Letter, points
	pageHeight  = 792.0
	marginX     = 72.0
	marginTop   = 72.0
	marginBtm   = 72.0
	lineHeight  = 14.0
)

// Style carries the subset of typographic knobs the flowable layout
// consults per block type, mirroring the DOCX renderer's stylesheet-driven
// approach (§4.10) instead of hardcoding per-type logic.
type Style struct {
	FontSize   float64
	Bold       bool
	Center     bool
	SpaceAbove float64
}

var styleFor = map[ast.BlockType]Style{
	ast.BlockHeading:   {FontSize: 18, Bold: true, SpaceAbove: 24},
	ast.BlockParagraph: {FontSize: 11, SpaceAbove: 8},
	ast.BlockEquation:  {FontSize: 11, Center: true, SpaceAbove: 10},
	ast.BlockTheorem:   {FontSize: 11, Bold: true, SpaceAbove: 12},
	ast.BlockProof:     {FontSize: 11, SpaceAbove: 8},
	ast.BlockQuote:     {FontSize: 10, SpaceAbove: 10},
	ast.BlockEpigraph:  {FontSize: 10, Center: true, SpaceAbove: 10},
	ast.BlockScene:     {FontSize: 11, Center: true, SpaceAbove: 16},
	ast.BlockReference: {FontSize: 9, SpaceAbove: 4},
}

type line struct {
	text   string
	style  Style
}

// Render lays out doc's blocks into pages of wrapped lines and returns
// the finished PDF bytes. A page callback runs per page to stamp a
// centered page number in the footer margin.
func Render(doc ast.DocumentAST) ([]byte, error) {
	pages := paginate(doc)
	return writePDF(pages)
}

func paginate(doc ast.DocumentAST) [][]line {
	var pages [][]line
	var current []line
	y := pageHeight - marginTop

	newPage := func() {
		pages = append(pages, current)
		current = nil
		y = pageHeight - marginTop
	}

	for _, blk := range doc.Blocks {
		st := styleFor[blk.Type]
		if st.FontSize == 0 {
			st = styleFor[ast.BlockParagraph]
		}

		if blk.PageBreakBefore && len(current) > 0 {
			newPage()
		}

		text := blockText(blk)
		for _, wrapped := range wrapText(text, 90) {
			needed := lineHeight + st.SpaceAbove
			if y-needed < marginBtm {
				newPage()
			}
			current = append(current, line{text: wrapped, style: st})
			y -= needed
		}
	}
	if len(current) > 0 {
		pages = append(pages, current)
	}
	return pages
}

func blockText(blk ast.Block) string {
	switch blk.Type {
	case ast.BlockEquation:
		return blk.LaTeX
	case ast.BlockProof:
		symbol := blk.QEDSymbol
		if symbol == "" {
			symbol = "□"
		}
		return blk.Text + " " + symbol
	default:
		return blk.Text
	}
}

func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len()+len(w)+1 > width && cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// writePDF emits a minimal but valid PDF 1.4 object graph: one Page
// object per paginated page, a shared Helvetica font resource, and a
// content stream per page that both renders the flowable lines and
// stamps a centered page number (the page callback's concrete effect).
func writePDF(pages [][]line) ([]byte, error) {
	var buf bytes.Buffer
	offsets := []int{0} // object numbers are 1-indexed; offsets[0] unused

	buf.WriteString("%PDF-1.4\n")

	numPages := len(pages)
	if numPages == 0 {
		numPages = 1
		pages = [][]line{nil}
	}

	fontObj := 2
	pagesObj := 1
	firstPageObj := 3
	contentBase := firstPageObj + numPages

	var kids []string
	for i := 0; i < numPages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", firstPageObj+i))
	}

	// Object 1: Pages tree (written after we know the kid list, but kept
	// at object number 1 for a stable root reference).
	pagesBody := fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), numPages)

	catalogObj := contentBase + numPages

	writeObjAt := func(n int, body string) {
		for len(offsets) <= n {
			offsets = append(offsets, 0)
		}
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}

	writeObjAt(pagesObj, pagesBody)
	writeObjAt(fontObj, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, pageLines := range pages {
		pageObj := firstPageObj + i
		contentObj := contentBase + i
		body := fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %.0f %.0f] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			pagesObj, pageWidth, pageHeight, fontObj, contentObj,
		)
		writeObjAt(pageObj, body)

		stream := contentStream(pageLines, i+1)
		writeObjAt(contentObj, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	writeObjAt(catalogObj, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj))

	xrefStart := buf.Len()
	total := len(offsets)
	fmt.Fprintf(&buf, "xref\n0 %d\n", total)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i < total; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF", total, catalogObj, xrefStart)

	return buf.Bytes(), nil
}

func contentStream(lines []line, pageNumber int) string {
	var b strings.Builder
	y := pageHeight - marginTop

	for _, ln := range lines {
		y -= lineHeight + ln.style.SpaceAbove
		x := marginX
		font := "F1"
		if ln.style.Center {
			x = pageWidth / 2
		}
		fmt.Fprintf(&b, "BT /%s %.0f Tf %.1f %.1f Td (%s) Tj ET\n", font, ln.style.FontSize, x, y, escapePDFString(ln.text))
	}

	footer := fmt.Sprintf("%d", pageNumber)
	fmt.Fprintf(&b, "BT /F1 9 Tf %.1f %.1f Td (%s) Tj ET\n", pageWidth/2-6, marginBtm/2, escapePDFString(footer))

	return b.String()
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
