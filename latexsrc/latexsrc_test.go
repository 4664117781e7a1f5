package latexsrc

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScoreMainFileCandidatePrefersDocumentclass(t *testing.T) {
	withClass := scoreMainFileCandidate("main.tex", []byte(`\documentclass{article}\begin{document}hi\end{document}`))
	withoutClass := scoreMainFileCandidate("chapter1.tex", []byte(`some included chapter text`))
	if withClass <= withoutClass {
		t.Fatalf("expected documentclass file to score higher: %d vs %d", withClass, withoutClass)
	}
}

func TestScoreMainFileCandidateRewardsConventionalStem(t *testing.T) {
	main := scoreMainFileCandidate("main.tex", []byte(`\begin{document}\end{document}`))
	other := scoreMainFileCandidate("appendix.tex", []byte(`\begin{document}\end{document}`))
	if main <= other {
		t.Fatalf("expected conventional stem to score higher: %d vs %d", main, other)
	}
}

func TestIngestPassesThroughBareTexFile(t *testing.T) {
	dir := t.TempDir()
	texPath := filepath.Join(dir, "paper.tex")
	os.WriteFile(texPath, []byte(`\documentclass{article}`), 0644)

	got, err := Ingest(texPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got != texPath {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestIngestExtractsZipAndSelectsMainFile(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "bundle.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)

	w1, _ := zw.Create("chapter1.tex")
	w1.Write([]byte(`some included text without a class declaration`))
	w2, _ := zw.Create("main.tex")
	w2.Write([]byte(`\documentclass{article}\begin{document}\input{chapter1}\end{document}`))

	zw.Close()
	f.Close()

	got, err := Ingest(zipPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if filepath.Base(got) != "main.tex" {
		t.Fatalf("expected main.tex to win, got %q", got)
	}
}

func TestSplitEnvironmentBlockIsConfident(t *testing.T) {
	res := Split(`\begin{equation}E = mc^2\end{equation}`)
	if res.Confidence != Confident || len(res.Segments) != 1 {
		t.Fatalf("expected confident single segment, got %+v", res)
	}
}

func TestSplitDisplayMathStripsDelimiters(t *testing.T) {
	res := Split(`$$E = mc^2$$`)
	if res.Confidence != Confident {
		t.Fatalf("expected confident, got %+v", res)
	}
	if res.Segments[0] != "E = mc^2" {
		t.Fatalf("expected delimiters stripped, got %q", res.Segments[0])
	}
}

func TestSplitMixedProseAndMathIsNotConfident(t *testing.T) {
	res := Split(`The relation $E = mc^2$ follows from special relativity and related assumptions about spacetime.`)
	if res.Confidence != NotConfident {
		t.Fatalf("expected not confident for mixed prose, got %+v", res)
	}
	if !strings.Contains(res.Reason, "inline math") {
		t.Fatalf("expected reason to mention inline math, got %q", res.Reason)
	}
}

func TestSplitCleanEquationNoDelimitersIsConfident(t *testing.T) {
	res := Split(`E = mc^2`)
	if res.Confidence != Confident {
		t.Fatalf("expected confident for clean equation, got %+v", res)
	}
}
