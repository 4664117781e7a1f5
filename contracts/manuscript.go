package contracts

// SegmentType discriminates segment kinds within a ManuscriptCoreOutput,
// grounded on core/contracts/manuscript_output.py's SegmentType enum.
type SegmentType string

const (
	SegmentParagraph SegmentType = "paragraph"
	SegmentHeading   SegmentType = "heading"
	SegmentEquation  SegmentType = "equation"
	SegmentCode      SegmentType = "code"
)

// Segment is one translated unit of the manuscript.
type Segment struct {
	ID             string      `json:"id"`
	Type           SegmentType `json:"type"`
	OriginalText   string      `json:"original_text"`
	TranslatedText string      `json:"translated_text"`
	Confidence     float64     `json:"confidence"`
}

// DocumentStructure records coarse structural facts used by cross-stage
// checks in §4.11.
type DocumentStructure struct {
	HasFrontMatter bool `json:"has_front_matter"`
	TotalChapters  int  `json:"total_chapters"`
}

// QualityMetrics carries the aggregate quality score for the manuscript.
type QualityMetrics struct {
	OverallScore float64 `json:"overall_score"`
}

// ManuscriptCoreOutput is the translation stage's output contract (§3, §6).
type ManuscriptCoreOutput struct {
	Metadata       Metadata          `json:"metadata"`
	SourceLanguage string            `json:"source_language"`
	TargetLanguage string            `json:"target_language"`
	Segments       []Segment         `json:"segments"`
	Structure      DocumentStructure `json:"structure"`
	Quality        QualityMetrics    `json:"quality"`
	ADN            map[string]any    `json:"adn,omitempty"`
	STEM           map[string]any    `json:"stem,omitempty"`
}

// GetFullText concatenates translated text across segments in order.
func (m ManuscriptCoreOutput) GetFullText() string {
	var out []byte
	for i, s := range m.Segments {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, s.TranslatedText...)
	}
	return string(out)
}

func (m ManuscriptCoreOutput) ToDict() map[string]any {
	segments := make([]any, len(m.Segments))
	for i, s := range m.Segments {
		segments[i] = map[string]any{
			"id":              s.ID,
			"type":            string(s.Type),
			"original_text":   s.OriginalText,
			"translated_text": s.TranslatedText,
			"confidence":      s.Confidence,
		}
	}

	return map[string]any{
		"metadata": map[string]any{
			"version":      m.Metadata.Version,
			"created_at":   m.Metadata.CreatedAt,
			"source_agent": m.Metadata.SourceAgent,
			"target_agent": m.Metadata.TargetAgent,
			"checksum":     m.Metadata.Checksum,
		},
		"source_language": m.SourceLanguage,
		"target_language": m.TargetLanguage,
		"segments":        segments,
		"structure": map[string]any{
			"has_front_matter": m.Structure.HasFrontMatter,
			"total_chapters":   m.Structure.TotalChapters,
		},
		"quality": map[string]any{
			"overall_score": m.Quality.OverallScore,
		},
	}
}

func (m ManuscriptCoreOutput) GetMetadata() Metadata { return m.Metadata }

// Validate enforces the manuscript invariants from §4.11.
func (m ManuscriptCoreOutput) Validate() []string {
	var errs []string

	if m.SourceLanguage == "" {
		errs = append(errs, "source_language must not be empty")
	}
	if m.TargetLanguage == "" {
		errs = append(errs, "target_language must not be empty")
	}
	if len(m.Segments) == 0 {
		errs = append(errs, "segments must not be empty")
	}

	seen := make(map[string]bool, len(m.Segments))
	lowConfidence := 0
	emptyTranslations := 0
	for _, s := range m.Segments {
		if seen[s.ID] {
			errs = append(errs, "duplicate segment id: "+s.ID)
		}
		seen[s.ID] = true

		if s.OriginalText == "" && s.TranslatedText == "" {
			errs = append(errs, "segment "+s.ID+" has neither original nor translated text")
		}
		if s.Confidence < 0.3 {
			lowConfidence++
		}
		if s.OriginalText != "" && s.TranslatedText == "" {
			emptyTranslations++
		}
	}

	if len(m.Segments) > 0 && float64(lowConfidence) > float64(len(m.Segments))*0.5 {
		errs = append(errs, "more than 50% of segments have very low confidence")
	}
	if emptyTranslations > 0 {
		errs = append(errs, "segments have original text but no translation")
	}

	if m.Quality.OverallScore < 0 || m.Quality.OverallScore > 1 {
		errs = append(errs, "quality.overall_score must be within [0,1]")
	}

	return errs
}
