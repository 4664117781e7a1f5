// Package polish implements the Polisher (C12): a placeholder-safe
// rewriter that normalizes loanword and terminology variants after
// translation, reusing stem's math/code detection to keep formula and code
// spans untouched and refusing any pass that changes the formula count.
package polish

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/brunobiangulo/aps/stem"
)

// Rule is a single variant -> preferred normalization, applied with
// word-boundary matching, longest match first.
type Rule struct {
	Variant   string
	Preferred string
}

// Polisher holds a normalization table and a protected-name allowlist.
type Polisher struct {
	rules     []Rule
	protected []string
}

// New builds a Polisher from normalization rules and a configurable
// protected-name allowlist (proper nouns the rewriter must never touch).
func New(rules []Rule, protectedNames []string) *Polisher {
	sorted := append([]Rule(nil), rules...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i].Variant) > len(sorted[j].Variant) })
	return &Polisher{rules: sorted, protected: protectedNames}
}

// ErrFormulaCountChanged is returned when a rewrite alters the number of
// protected math/code spans, per §4.12's rejection rule.
type ErrFormulaCountChanged struct {
	Before, After int
}

func (e ErrFormulaCountChanged) Error() string {
	return fmt.Sprintf("polish: formula count changed from %d to %d, rejecting pass", e.Before, e.After)
}

// Polish applies the normalization table to text, protecting math/code
// spans (via stem's detectors) and protected names with internal
// sentinels, then restoring them after the rewrite. The pass is rejected
// if the restored formula count differs from the original.
func (p *Polisher) Polish(text string) (string, error) {
	pre := stem.Preprocess(text)
	before := len(pre.Matches)

	protectedText, nameMap := p.protectNames(pre.Text)

	rewritten := protectedText
	for _, r := range p.rules {
		rewritten = applyWordBoundaryRule(rewritten, r)
	}

	rewritten = restoreNames(rewritten, nameMap)
	result := stem.Restore(rewritten, pre.Mapping)

	after := len(stem.Preprocess(result).Matches)
	if after != before {
		return text, ErrFormulaCountChanged{Before: before, After: after}
	}

	return result, nil
}

// Idempotent reports whether polishing an already-polished text is a
// no-op, the invariant named alongside the formula-count rejection rule.
func (p *Polisher) Idempotent(text string) (bool, error) {
	once, err := p.Polish(text)
	if err != nil {
		return false, err
	}
	twice, err := p.Polish(once)
	if err != nil {
		return false, err
	}
	return once == twice, nil
}

func (p *Polisher) protectNames(text string) (string, map[string]string) {
	sorted := append([]string(nil), p.protected...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	nameMap := make(map[string]string)
	result := text
	for i, name := range sorted {
		if name == "" {
			continue
		}
		token := fmt.Sprintf("⟪APS_NAME_%d⟫", i)
		nameMap[token] = name
		result = wordBoundaryRegexp(name).ReplaceAllString(result, token)
	}
	return result, nameMap
}

func restoreNames(text string, nameMap map[string]string) string {
	for token, name := range nameMap {
		text = strings.ReplaceAll(text, token, name)
	}
	return text
}

func applyWordBoundaryRule(text string, r Rule) string {
	if r.Variant == "" {
		return text
	}
	return wordBoundaryRegexp(r.Variant).ReplaceAllLiteralString(text, r.Preferred)
}

func wordBoundaryRegexp(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
}
