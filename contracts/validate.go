package contracts

import "fmt"

// Result is the outcome of validating a single contract (C11),
// grounded on core/contracts/validation.py's ValidationResult.
type Result struct {
	Valid  bool
	Errors []string
}

// Validator runs structural and checksum validation over contracts as
// they cross stage boundaries.
type Validator struct{}

// NewValidator returns a ready-to-use Validator; it holds no state.
func NewValidator() *Validator { return &Validator{} }

// Validate runs a contract's own Validate() plus checksum verification.
func (v *Validator) Validate(c Contract) Result {
	errs := c.Validate()
	if !VerifyChecksum(c) {
		errs = append(errs, "checksum does not match contract contents")
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ValidateOrRaise returns an error describing all violations, or nil.
func (v *Validator) ValidateOrRaise(c Contract) error {
	res := v.Validate(c)
	if res.Valid {
		return nil
	}
	return fmt.Errorf("contracts: validation failed: %v", res.Errors)
}

// ValidateChain validates a sequence of contracts independently and
// returns the combined result; any single failure fails the chain.
func (v *Validator) ValidateChain(cs ...Contract) Result {
	var all []string
	for _, c := range cs {
		res := v.Validate(c)
		all = append(all, res.Errors...)
	}
	return Result{Valid: len(all) == 0, Errors: all}
}

// ValidateManuscriptOutput runs ManuscriptCoreOutput.Validate plus
// checksum verification. Validate itself already treats more than half
// of segments at low confidence, or segments with source text but no
// translation, as failures rather than mere warnings.
func (v *Validator) ValidateManuscriptOutput(m ManuscriptCoreOutput) Result {
	return v.Validate(m)
}

// ValidateLayoutIntent runs LayoutIntentPackage.Validate plus checksum
// verification.
func (v *Validator) ValidateLayoutIntent(l LayoutIntentPackage) Result {
	return v.Validate(l)
}

// ValidateManuscriptToLIP performs the module-level cross-stage check
// (validate_manuscript_to_lip): it compares block/segment counts and
// total text length between a manuscript and the layout-intent package
// built from it, and, when the manuscript declares chapters, checks that
// the package has at least one chapter section. Chapter counts are not
// compared, and the manuscript's front-matter flag is not checked.
func ValidateManuscriptToLIP(m ManuscriptCoreOutput, l LayoutIntentPackage) ConsistencyReport {
	segCount := len(m.Segments)
	blockCount := len(l.Blocks)

	blockVariance := countVariance(segCount, blockCount)
	textVariance := lengthVariance(m.GetFullText(), l.GetFullText())

	chaptersMatch := true
	if m.Structure.TotalChapters > 0 {
		chaptersMatch = len(l.GetChapters()) > 0 == (m.Structure.TotalChapters > 0)
	}

	consistent := blockVariance <= 0.20 && textVariance <= 0.05 && chaptersMatch

	return ConsistencyReport{
		BlockCountVariance: blockVariance,
		TextLengthVariance: textVariance,
		Consistent:         consistent,
	}
}

func countVariance(a, b int) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	max := a
	if b > max {
		max = b
	}
	if max == 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(max)
}

func lengthVariance(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 && lb == 0 {
		return 0
	}
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 0
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(max)
}

// Summarize produces a compact diagnostic map for logging, grounded on
// create_contract_summary.
func Summarize(c Contract) map[string]any {
	res := NewValidator().Validate(c)
	return map[string]any{
		"version":    c.GetMetadata().Version,
		"checksum":   c.GetMetadata().Checksum,
		"valid":      res.Valid,
		"error_count": len(res.Errors),
	}
}
