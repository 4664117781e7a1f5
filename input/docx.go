package input

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// ReadDOCX extracts plain text from a DOCX file's word/document.xml,
// one paragraph per line, per the read_docx(path) -> string external
// interface (§6). The teacher never imports a third-party docx library,
// reading the OOXML package directly with archive/zip and encoding/xml;
// this reader keeps that approach rather than introducing a new
// dependency the corpus does not use.
func ReadDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("input: opening docx: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("input: word/document.xml not found in %s", path)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("input: opening document.xml: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("input: reading document.xml: %w", err)
	}

	paragraphs, err := extractDocxParagraphs(data)
	if err != nil {
		return "", fmt.Errorf("input: parsing document.xml: %w", err)
	}
	if len(paragraphs) == 0 {
		return "", fmt.Errorf("input: no extractable text in %s", path)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

type docxBody struct {
	XMLName xml.Name   `xml:"body"`
	Paras   []docxPara `xml:"p"`
}

type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxPara struct {
	XMLName xml.Name  `xml:"p"`
	Runs    []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

func extractDocxParagraphs(data []byte) ([]string, error) {
	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	paragraphs := make([]string, 0, len(doc.Body.Paras))
	for _, p := range doc.Body.Paras {
		text := extractParaText(p)
		if strings.TrimSpace(text) != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return paragraphs, nil
}

func extractParaText(para docxPara) string {
	var b strings.Builder
	for _, run := range para.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}
