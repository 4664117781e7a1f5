// Package epub implements the EPUB renderer named alongside DOCX and PDF
// in §4.10: it groups AST blocks into chapter files split on Chapter
// headings, attaches a single stylesheet, and writes the OPF/NCX/NAV
// skeleton required by the EPUB3 package format. No EPUB-writing library
// appears in the corpus; like the PDF renderer, this one emits the zip
// package directly against the stdlib — see DESIGN.md.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/brunobiangulo/aps/render/ast"
)

const stylesheet = `
body { font-family: serif; line-height: 1.5; margin: 1em; }
h1 { text-align: center; page-break-before: always; }
h2, h3 { margin-top: 1.5em; }
.equation { text-align: center; font-family: monospace; }
.theorem, .proof { margin: 1em 0; }
.quote, .epigraph { margin-left: 2em; font-style: italic; }
.scene-break { text-align: center; margin: 2em 0; }
`

type chapter struct {
	title string
	body  strings.Builder
}

// Render groups doc's blocks into chapters (split at H1/Chapter
// boundaries) and returns the finished EPUB container bytes.
func Render(doc ast.DocumentAST, title string) ([]byte, error) {
	chapters := groupChapters(doc)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	// mimetype must be the first entry, stored uncompressed per the
	// EPUB OCF spec.
	mw, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, fmt.Errorf("epub: writing mimetype: %w", err)
	}
	if _, err := mw.Write([]byte("application/epub+zip")); err != nil {
		return nil, err
	}

	if err := writeEntry(w, "META-INF/container.xml", containerXML); err != nil {
		return nil, err
	}
	if err := writeEntry(w, "OEBPS/styles.css", stylesheet); err != nil {
		return nil, err
	}

	var manifestItems, spineItems, navItems []string
	for i, ch := range chapters {
		id := fmt.Sprintf("chap%d", i+1)
		name := fmt.Sprintf("%s.xhtml", id)
		if err := writeEntry(w, "OEBPS/"+name, chapterXHTML(ch)); err != nil {
			return nil, err
		}
		manifestItems = append(manifestItems, fmt.Sprintf(`<item id="%s" href="%s" media-type="application/xhtml+xml"/>`, id, name))
		spineItems = append(spineItems, fmt.Sprintf(`<itemref idref="%s"/>`, id))
		navItems = append(navItems, fmt.Sprintf(`<li><a href="%s">%s</a></li>`, name, html.EscapeString(ch.title)))
	}

	if err := writeEntry(w, "OEBPS/nav.xhtml", navXHTML(navItems)); err != nil {
		return nil, err
	}
	if err := writeEntry(w, "OEBPS/content.opf", contentOPF(title, manifestItems, spineItems)); err != nil {
		return nil, err
	}
	if err := writeEntry(w, "OEBPS/toc.ncx", tocNCX(title, chapters)); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("epub: finalizing archive: %w", err)
	}
	return buf.Bytes(), nil
}

func groupChapters(doc ast.DocumentAST) []chapter {
	var chapters []chapter
	cur := chapter{title: "Untitled"}
	started := false

	flush := func() {
		if started {
			chapters = append(chapters, cur)
		}
	}

	for _, blk := range doc.Blocks {
		if blk.Type == ast.BlockHeading && blk.Level == 1 {
			flush()
			cur = chapter{title: blk.Text}
			started = true
			continue
		}
		if !started {
			started = true
		}
		cur.body.WriteString(blockHTML(blk))
	}
	flush()

	if len(chapters) == 0 {
		chapters = append(chapters, cur)
	}
	return chapters
}

func blockHTML(blk ast.Block) string {
	text := html.EscapeString(blk.Text)
	switch blk.Type {
	case ast.BlockHeading:
		tag := fmt.Sprintf("h%d", blk.Level)
		if tag == "h1" {
			tag = "h2" // h1 is reserved for the chapter boundary title
		}
		return fmt.Sprintf("<%s>%s</%s>\n", tag, text, tag)
	case ast.BlockEquation:
		return fmt.Sprintf(`<p class="equation">%s</p>`+"\n", html.EscapeString(blk.LaTeX))
	case ast.BlockTheorem:
		title := blk.Title
		if blk.Number != "" {
			title = title + " " + blk.Number
		}
		return fmt.Sprintf(`<div class="theorem"><strong>%s.</strong> %s</div>`+"\n", html.EscapeString(title), text)
	case ast.BlockProof:
		symbol := blk.QEDSymbol
		if symbol == "" {
			symbol = "□"
		}
		return fmt.Sprintf(`<div class="proof">%s %s</div>`+"\n", text, symbol)
	case ast.BlockQuote, ast.BlockEpigraph:
		return fmt.Sprintf(`<p class="quote">%s</p>`+"\n", text)
	case ast.BlockScene:
		symbol := blk.Text
		if symbol == "" {
			symbol = "* * *"
		}
		return fmt.Sprintf(`<p class="scene-break">%s</p>`+"\n", html.EscapeString(symbol))
	default:
		return fmt.Sprintf("<p>%s</p>\n", text)
	}
}

func writeEntry(w *zip.Writer, name, content string) error {
	f, err := w.Create(name)
	if err != nil {
		return fmt.Errorf("epub: creating %s: %w", name, err)
	}
	_, err = f.Write([]byte(content))
	return err
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

func chapterXHTML(ch chapter) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>%s</title><link rel="stylesheet" type="text/css" href="styles.css"/></head>
<body>
<h1>%s</h1>
%s
</body>
</html>`, html.EscapeString(ch.title), html.EscapeString(ch.title), ch.body.String())
}

func navXHTML(items []string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Table of Contents</title></head>
<body>
<nav epub:type="toc"><ol>
%s
</ol></nav>
</body>
</html>`, strings.Join(items, "\n"))
}

func contentOPF(title string, manifestItems, spineItems []string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="bookid">urn:uuid:aps-%s</dc:identifier>
    <dc:title>%s</dc:title>
    <dc:language>und</dc:language>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="css" href="styles.css" media-type="text/css"/>
    %s
  </manifest>
  <spine>
    %s
  </spine>
</package>`, slug(title), html.EscapeString(title), strings.Join(manifestItems, "\n    "), strings.Join(spineItems, "\n    "))
}

func tocNCX(title string, chapters []chapter) string {
	var points strings.Builder
	for i, ch := range chapters {
		fmt.Fprintf(&points, `<navPoint id="navpoint-%d" playOrder="%d"><navLabel><text>%s</text></navLabel><content src="chap%d.xhtml"/></navPoint>`+"\n",
			i+1, i+1, html.EscapeString(ch.title), i+1)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head><meta name="dtb:uid" content="urn:uuid:aps-%s"/></head>
  <docTitle><text>%s</text></docTitle>
  <navMap>
%s
  </navMap>
</ncx>`, slug(title), html.EscapeString(title), points.String())
}

func slug(title string) string {
	replacer := strings.NewReplacer(" ", "-", "/", "-")
	return strings.ToLower(replacer.Replace(title))
}
