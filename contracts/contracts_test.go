package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManuscript() ManuscriptCoreOutput {
	m := ManuscriptCoreOutput{
		Metadata:       NewMetadata("1.0.0", "aps-core", "aps-editorial"),
		SourceLanguage: "en",
		TargetLanguage: "vi",
		Segments: []Segment{
			{ID: "s1", Type: SegmentParagraph, OriginalText: "Hello", TranslatedText: "Xin chao", Confidence: 0.95},
			{ID: "s2", Type: SegmentParagraph, OriginalText: "World", TranslatedText: "The gioi", Confidence: 0.9},
		},
		Structure: DocumentStructure{HasFrontMatter: true, TotalChapters: 1},
		Quality:   QualityMetrics{OverallScore: 0.92},
	}
	Stamp(m, func(s string) { m.Metadata.Checksum = s })
	return m
}

func TestChecksumStableAcrossCalls(t *testing.T) {
	m := sampleManuscript()
	first := CalculateChecksum(m.ToDict())
	second := CalculateChecksum(m.ToDict())
	assert.Equal(t, first, second)
	assert.Len(t, first, 16)
}

func TestChecksumChangesWithContent(t *testing.T) {
	m := sampleManuscript()
	before := m.Metadata.Checksum

	m.Segments[0].TranslatedText = "Chao ban"
	after := CalculateChecksum(m.ToDict())

	assert.NotEqual(t, before, after)
}

func TestVerifyChecksumRoundTrip(t *testing.T) {
	m := sampleManuscript()
	assert.True(t, VerifyChecksum(m))
}

func TestVerifyChecksumDetectsTamper(t *testing.T) {
	m := sampleManuscript()
	m.Segments[0].TranslatedText = "tampered"
	assert.False(t, VerifyChecksum(m))
}

func TestManuscriptValidateRejectsEmptySegments(t *testing.T) {
	m := sampleManuscript()
	m.Segments = nil
	errs := m.Validate()
	assert.Contains(t, errs, "segments must not be empty")
}

func TestManuscriptValidateFlagsLowConfidenceMajority(t *testing.T) {
	m := sampleManuscript()
	m.Segments[0].Confidence = 0.1
	m.Segments[1].Confidence = 0.1
	errs := m.Validate()
	assert.Contains(t, errs, "more than 50% of segments have very low confidence")
}

func TestLayoutIntentValidateRejectsUnresolvedSection(t *testing.T) {
	l := LayoutIntentPackage{
		Metadata: NewMetadata("1.0.0", "aps-core", "aps-editorial"),
		Blocks: []Block{
			{ID: "b1", Kind: BlockParagraph, Text: "hello"},
		},
		Sections: []Section{
			{Title: "Chapter 1", Level: 1, StartBlockID: "missing", IsChapter: true},
		},
	}
	errs := l.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "does not resolve")
}

func TestValidateManuscriptToLIPConsistent(t *testing.T) {
	m := sampleManuscript()
	l := LayoutIntentPackage{
		Metadata: NewMetadata("1.0.0", "aps-core", "aps-editorial"),
		Blocks: []Block{
			{ID: "b1", Kind: BlockParagraph, Text: "Xin chao"},
			{ID: "b2", Kind: BlockParagraph, Text: "The gioi"},
		},
		Sections: []Section{
			{Title: "Chapter 1", Level: 1, StartBlockID: "b1", EndBlockID: "b2", IsChapter: true},
		},
	}
	report := ValidateManuscriptToLIP(m, l)
	assert.True(t, report.Consistent)
}

func TestValidatorValidateOrRaise(t *testing.T) {
	v := NewValidator()
	m := sampleManuscript()
	require.NoError(t, v.ValidateOrRaise(m))

	m.Segments = nil
	require.Error(t, v.ValidateOrRaise(m))
}

func TestSummarizeReportsValidity(t *testing.T) {
	summary := Summarize(sampleManuscript())
	assert.Equal(t, true, summary["valid"])
	assert.Equal(t, 0, summary["error_count"])
}
