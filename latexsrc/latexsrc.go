// Package latexsrc implements LaTeX Ingest & Equation Splitter (C13):
// archive extraction with main-file scoring, and a confidence-scored
// classifier the orchestrator falls back from when a span isn't cleanly
// isolable.
package latexsrc

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// mainFileStems are the conventional entry-point basenames scored by
// Ingest's candidate selection.
var mainFileStems = map[string]bool{"main": true, "paper": true, "manuscript": true, "article": true}

// Ingest extracts a .tex file or an archive (.zip, .tar.gz, .tgz, .tar)
// into a fresh temp directory and returns the path to the highest-scoring
// main file.
func Ingest(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".tex" {
		return path, nil
	}

	dir, err := os.MkdirTemp("", "aps-latex-*")
	if err != nil {
		return "", fmt.Errorf("latexsrc: creating temp dir: %w", err)
	}

	switch {
	case ext == ".zip":
		if err := extractZip(path, dir); err != nil {
			return "", err
		}
	case strings.HasSuffix(path, ".tar.gz") || ext == ".tgz":
		if err := extractTarGz(path, dir); err != nil {
			return "", err
		}
	case ext == ".tar":
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("latexsrc: opening archive: %w", err)
		}
		defer f.Close()
		if err := extractTarReader(f, dir); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("latexsrc: unsupported archive extension %q", ext)
	}

	return selectMainFile(dir)
}

func extractZip(path, dest string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("latexsrc: opening zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractZipEntry(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, dest string) error {
	target, err := safeJoin(dest, f.Name)
	if err != nil {
		return err
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func extractTarGz(path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("latexsrc: opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("latexsrc: reading gzip: %w", err)
	}
	defer gz.Close()

	return extractTarReader(gz, dest)
}

func extractTarReader(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("latexsrc: reading tar entry: %w", err)
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

// safeJoin rejects archive entries that would escape dest via path
// traversal (e.g. "../../etc/passwd").
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) && target != filepath.Clean(dest) {
		return "", fmt.Errorf("latexsrc: illegal archive path %q", name)
	}
	return target, nil
}

var (
	documentClassRe = regexp.MustCompile(`\\documentclass`)
	beginDocumentRe = regexp.MustCompile(`\\begin\{document\}`)
)

// selectMainFile scores every .tex file under dir per §4.13 and returns
// the highest scorer.
func selectMainFile(dir string) (string, error) {
	var best string
	bestScore := -1

	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || strings.ToLower(filepath.Ext(p)) != ".tex" {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		score := scoreMainFileCandidate(p, data)
		if score > bestScore {
			bestScore = score
			best = p
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("latexsrc: walking extracted archive: %w", err)
	}
	if best == "" {
		return "", fmt.Errorf("latexsrc: no .tex file found in archive")
	}
	return best, nil
}

func scoreMainFileCandidate(path string, content []byte) int {
	score := 0
	text := string(content)
	if documentClassRe.Match(content) {
		score += 100
	}
	if beginDocumentRe.Match(content) {
		score += 50
	}
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if mainFileStems[stem] {
		score += 20
	}
	// Up to +10 scaled by size, capped at a generous ceiling so a single
	// huge bibliography file can't dominate the documentclass signal.
	const sizeCeiling = 50_000
	n := len(text)
	if n > sizeCeiling {
		n = sizeCeiling
	}
	score += (n * 10) / sizeCeiling
	return score
}

// Confidence reports whether a Split classification can be trusted as a
// single isolable segment, per §4.13's four cases.
type Confidence int

const (
	NotConfident Confidence = iota
	Confident
)

// SplitResult is the outcome of classifying a LaTeX string. Reason is
// only populated when Confidence is NotConfident, diagnosing why the
// span couldn't be isolated cleanly.
type SplitResult struct {
	Confidence Confidence
	Segments   []string
	Reason     string
}

var (
	environmentRe = regexp.MustCompile(`(?s)^\s*\\begin\{(equation\*?|align\*?|gather\*?|multline\*?|eqnarray\*?)\}.*\\end\{[a-zA-Z*]+\}\s*$`)
	displayMathRe = regexp.MustCompile(`(?s)^\s*(?:\$\$(.*)\$\$|\\\[(.*)\\\])\s*$`)
	cleanEquation = regexp.MustCompile(`^[^$]*[=+\-*/^_\\].*$`)
	anyMathDelim  = regexp.MustCompile(`\$|\\\[|\\\(|\\begin\{`)
)

// Split classifies text into the four cases named in §4.13: a clean
// equation with no delimiters and no prose (confident, 1 segment), a
// single environment block (confident, full \begin...\end kept), a single
// display-math span (confident, delimiters stripped), or anything mixed
// (not confident, caller falls back).
func Split(text string) SplitResult {
	trimmed := strings.TrimSpace(text)

	if m := environmentRe.FindString(trimmed); m != "" {
		return SplitResult{Confidence: Confident, Segments: []string{trimmed}}
	}

	if loc := displayMathRe.FindStringSubmatch(trimmed); loc != nil {
		inner := loc[1]
		if inner == "" {
			inner = loc[2]
		}
		return SplitResult{Confidence: Confident, Segments: []string{strings.TrimSpace(inner)}}
	}

	if !anyMathDelim.MatchString(trimmed) && cleanEquation.MatchString(trimmed) && !looksLikeProse(trimmed) {
		return SplitResult{Confidence: Confident, Segments: []string{trimmed}}
	}

	return SplitResult{Confidence: NotConfident, Reason: notConfidentReason(trimmed)}
}

// notConfidentReason explains why Split fell back to NotConfident.
func notConfidentReason(trimmed string) string {
	hasMath := anyMathDelim.MatchString(trimmed)
	hasProse := looksLikeProse(trimmed)
	switch {
	case hasMath && hasProse:
		return "mixed prose and inline math"
	case hasMath:
		return "delimited math span could not be isolated"
	case hasProse:
		return "looks like prose, not an equation"
	default:
		return "ambiguous span"
	}
}

// looksLikeProse is a coarse heuristic: three or more whitespace-separated
// alphabetic words in a row reads as prose rather than a bare equation.
func looksLikeProse(s string) bool {
	words := strings.Fields(s)
	run := 0
	for _, w := range words {
		if isAlphabeticWord(w) {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func isAlphabeticWord(w string) bool {
	if len(w) < 2 {
		return false
	}
	for _, r := range w {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}
