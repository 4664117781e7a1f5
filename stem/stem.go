// Package stem implements the content-addressed placeholder protocol (C1):
// math and code spans are swapped for opaque tokens before translation and
// restored afterward, with a preservation-rate verification pass.
package stem

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind discriminates the two placeholder families.
type Kind string

const (
	KindFormula Kind = "FORMULA"
	KindCode    Kind = "CODE"
)

// Match records one detected span before substitution.
type Match struct {
	Kind     Kind
	Token    string
	Original string
	Start    int
	End      int
}

// Map is the bijective token -> original-span mapping produced by Preprocess.
type Map map[string]string

// PreprocessResult is the output of Preprocess.
type PreprocessResult struct {
	Text    string
	Mapping Map
	Matches []Match
}

// Verification is the output of Verify.
type Verification struct {
	PreservationRate float64            `json:"preservation_rate"`
	FormulasLost     int                `json:"formulas_lost"`
	CodeLost         int                `json:"code_lost"`
	ByKind           map[Kind]kindStats `json:"-"`
}

type kindStats struct {
	Original int
	Restored int
}

// tokenPattern matches any placeholder token, used by restore and by the
// leak check (P4).
var tokenPattern = regexp.MustCompile(`⟪APS_(FORMULA|CODE)_(\d+)⟫`)

// detectors run in priority order; order matters because spans are
// longest-match-first and must not overlap (§4.1).
type detector struct {
	kind Kind
	re   *regexp.Regexp
	// strip removes delimiters the detector doesn't want stored verbatim.
	// nil means store the full match.
	strip func(string) string
}

var detectors = []detector{
	{KindFormula, regexp.MustCompile(`(?s)\\begin\{[a-zA-Z*]+\}.*?\\end\{[a-zA-Z*]+\}`), nil},
	{KindFormula, regexp.MustCompile(`(?s)\$\$.*?\$\$`), nil},
	{KindFormula, regexp.MustCompile(`(?s)\\\[.*?\\\]`), nil},
	{KindFormula, regexp.MustCompile(`(?s)\\\(.*?\\\)`), nil},
	// Inline dollars: single $...$ not preceded by a backslash (escaped $).
	{KindFormula, regexp.MustCompile(`(?:^|[^\\])(\$[^$\n]+\$)`), nil},
	{KindCode, regexp.MustCompile("(?s)```.*?```"), nil},
}

// Preprocess replaces math/code spans with opaque tokens, in detection
// order, never overlapping an already-claimed span.
func Preprocess(text string) PreprocessResult {
	type span struct {
		start, end int
		kind       Kind
		text       string
	}

	var spans []span
	claimed := make([]bool, len(text)+1)

	markClaimed := func(s, e int) {
		for i := s; i < e && i < len(claimed); i++ {
			claimed[i] = true
		}
	}
	isFree := func(s, e int) bool {
		for i := s; i < e && i < len(claimed); i++ {
			if claimed[i] {
				return false
			}
		}
		return true
	}

	for _, d := range detectors {
		for _, loc := range d.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			matched := text[start:end]
			// The inline-dollar detector captures a leading non-backslash char in
			// group 0 to avoid matching escaped \$; narrow to the $...$
			// capture group when present.
			if len(loc) >= 4 && loc[2] >= 0 {
				start, end = loc[2], loc[3]
				matched = text[start:end]
			}
			if !isFree(start, end) {
				continue
			}
			markClaimed(start, end)
			spans = append(spans, span{start, end, d.kind, matched})
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	mapping := make(Map)
	var matches []Match
	counters := map[Kind]int{}

	var b strings.Builder
	cursor := 0
	for _, sp := range spans {
		b.WriteString(text[cursor:sp.start])
		idx := counters[sp.kind]
		counters[sp.kind] = idx + 1
		token := fmt.Sprintf("⟪APS_%s_%d⟫", sp.kind, idx)
		mapping[token] = sp.text
		matches = append(matches, Match{Kind: sp.kind, Token: token, Original: sp.text, Start: sp.start, End: sp.end})
		b.WriteString(token)
		cursor = sp.end
	}
	b.WriteString(text[cursor:])

	return PreprocessResult{Text: b.String(), Mapping: mapping, Matches: matches}
}

// Restore replaces every placeholder token in text with its mapped
// original in a single pass. Tokens absent from the map are left in
// place and counted as lost by the caller via Verify.
func Restore(text string, mapping Map) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		if orig, ok := mapping[tok]; ok {
			return orig
		}
		return tok
	})
}

// Verify computes preservation rate per kind and overall lost counts.
// Never raises; if there were no originals of a kind, its rate is 1.0.
func Verify(matches []Match, restored string) Verification {
	byKind := map[Kind]kindStats{}
	for _, m := range matches {
		st := byKind[m.Kind]
		st.Original++
		byKind[m.Kind] = st
	}

	// A match is "restored" iff its token no longer appears in the
	// restored text (i.e. it was substituted back, successfully or not —
	// we only check for leaks of the exact token here).
	remaining := map[string]int{}
	for _, loc := range tokenPattern.FindAllString(restored, -1) {
		remaining[loc]++
	}
	for _, m := range matches {
		if remaining[m.Token] == 0 {
			st := byKind[m.Kind]
			st.Restored++
			byKind[m.Kind] = st
		}
	}

	totalOriginal, totalRestored := 0, 0
	formulasLost, codeLost := 0, 0
	for kind, st := range byKind {
		totalOriginal += st.Original
		totalRestored += st.Restored
		lost := st.Original - st.Restored
		switch kind {
		case KindFormula:
			formulasLost = lost
		case KindCode:
			codeLost = lost
		}
	}

	rate := 1.0
	if totalOriginal > 0 {
		rate = float64(totalRestored) / float64(totalOriginal)
	}

	return Verification{
		PreservationRate: rate,
		FormulasLost:     formulasLost,
		CodeLost:         codeLost,
		ByKind:           byKind,
	}
}

// ContainsToken reports whether s still carries a placeholder token (P4,
// used by the orchestrator to assert no placeholder leaks to callers).
func ContainsToken(s string) bool {
	return tokenPattern.MatchString(s)
}
