// Package pipeline implements the Orchestrator (C7): it sequences every
// other component through the job lifecycle named in §3
// (LoadingInput -> Preprocessing -> Chunking -> Translating -> Merging ->
// Postprocessing -> Exporting -> Finalizing), driving job.Handler for
// state transitions and progress.Tracker for weighted progress reporting.
// Grounded on core/batch/orchestrator.py's phase sequencing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/aps"
	"github.com/brunobiangulo/aps/batch"
	"github.com/brunobiangulo/aps/chunker"
	"github.com/brunobiangulo/aps/contracts"
	"github.com/brunobiangulo/aps/input"
	"github.com/brunobiangulo/aps/job"
	"github.com/brunobiangulo/aps/llm"
	"github.com/brunobiangulo/aps/ocr"
	"github.com/brunobiangulo/aps/progress"
	"github.com/brunobiangulo/aps/render/ast"
	"github.com/brunobiangulo/aps/render/docx"
	"github.com/brunobiangulo/aps/render/epub"
	"github.com/brunobiangulo/aps/render/pdf"
	"github.com/brunobiangulo/aps/semantic"
	"github.com/brunobiangulo/aps/stem"
	"github.com/brunobiangulo/aps/translate"
)

// Format names an export target; the orchestrator dispatches to the
// matching renderer package.
type Format string

const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatEPUB Format = "epub"
)

// Cache is the narrow trait pipeline needs from a translation cache; both
// cache.SQLiteCache and a nil value (caching disabled) satisfy callers
// that pass translate.Cache directly.
type Cache = translate.Cache

// Checkpointer persists and loads chunk results keyed by job id, letting
// a rerun with the same job ID resume instead of re-translating
// everything (checkpoint.SQLiteStore satisfies this).
type Checkpointer interface {
	Save(ctx context.Context, jobID string, r batch.ChunkResult) error
	Load(ctx context.Context, jobID string) (map[string]batch.ChunkResult, error)
	Clear(ctx context.Context, jobID string) error
}

// Request describes a single translation-and-publish job.
type Request struct {
	JobID       string
	InputPath   string
	OutputPath  string
	Format      Format
	Template    string // DOCX template name; ignored for PDF/EPUB
	Title       string // EPUB title
	BookLayout  bool   // page-break before H1 headings
	PreserveOMML bool
	Resume      bool // when true, load checkpoints for JobID before translating
}

// Result is the pipeline's user-visible outcome, returned on both success
// and failure (§7 "User-visible failure").
type Result struct {
	Job          job.Result
	Manuscript   contracts.ManuscriptCoreOutput
	Layout       contracts.LayoutIntentPackage
	Consistency  contracts.ConsistencyReport
	Verification stem.Verification
}

// Pipeline wires every component named in §4 behind a single entry point.
type Pipeline struct {
	cfg          aps.Config
	translator   *translate.Translator
	chunker      *chunker.Chunker
	processor    *batch.ChunkProcessor
	aggregator   *batch.ResultAggregator
	validator    *contracts.Validator
	templates    *docx.TemplateCache
	checkpoints  Checkpointer
	glossary     map[string]string
	ocr          *ocr.Extractor
}

// New builds a Pipeline from a resolved Config and an LLM provider. cache
// and checkpoints may be nil to disable those concerns. visionProvider may
// be nil to disable the OCRProcessing fallback entirely.
func New(cfg aps.Config, provider llm.Provider, visionProvider llm.VisionProvider, cache Cache, checkpoints Checkpointer, glossary map[string]string) *Pipeline {
	translator := translate.New(provider, cfg.Translation.Model, cfg.SourceLanguage, cfg.TargetLanguage, cache)

	p := &Pipeline{
		cfg:         cfg,
		translator:  translator,
		chunker:     chunker.New(chunker.Config{ChunkSize: cfg.ChunkSize}),
		processor:   batch.New(translator.Func(), cfg.MaxConcurrency, cfg.MaxRetries, cfg.ChunkTimeout),
		aggregator:  batch.NewResultAggregator(cfg.Separator),
		validator:   contracts.NewValidator(),
		templates:   docx.NewTemplateCache(cfg.TemplateDir),
		checkpoints: checkpoints,
		glossary:    glossary,
	}
	if visionProvider != nil {
		p.ocr = ocr.New(visionProvider)
	}
	return p
}

// Run drives a single job end to end, producing an exported artifact at
// req.OutputPath and the inter-stage contracts for downstream auditing.
// It always returns a Result, even on failure (partial progress surfaces
// via Result.Job.Metadata), matching the orchestrator's "never panics to
// the caller" contract in §7.
func (p *Pipeline) Run(ctx context.Context, req Request, tracker *progress.Tracker) Result {
	h := job.New(req.JobID, p.cfg.JobMaxRetries)
	h.Start()
	if tracker != nil {
		tracker.Start()
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	raw, err := p.runLoadingInput(ctx, h, tracker, req)
	if err != nil {
		return p.fail(h, tracker, aps.NewJobError(aps.KindInputRead, "loading input failed", err))
	}

	preprocessed, stemResult := p.runPreprocessing(h, tracker, raw)

	chunks := p.runChunking(h, tracker, preprocessed)

	results, err := p.runTranslating(ctx, h, tracker, req, chunks)
	if err != nil {
		return p.fail(h, tracker, aps.NewJobError(aps.KindTranslationProvider, "translation failed", err))
	}

	aggregated, verification := p.runMerging(h, tracker, results, stemResult.Matches)

	manuscript := p.runPostprocessing(h, tracker, req, chunks, results, aggregated)
	if err := p.validator.ValidateOrRaise(manuscript); err != nil {
		return p.fail(h, tracker, aps.NewJobError(aps.KindContractViolation, "manuscript contract invalid", err))
	}

	layout := p.buildLayoutIntent(manuscript)
	if err := p.validator.ValidateOrRaise(layout); err != nil {
		return p.fail(h, tracker, aps.NewJobError(aps.KindContractViolation, "layout contract invalid", err))
	}
	consistency := contracts.ValidateManuscriptToLIP(manuscript, layout)

	if err := p.runExporting(h, tracker, req, layout); err != nil {
		return p.fail(h, tracker, aps.NewJobError(aps.KindContractViolation, "export failed", err))
	}

	if err := h.TransitionTo(job.StateFinalizing); err != nil {
		return p.fail(h, tracker, aps.NewJobError(aps.KindContractViolation, "finalize transition failed", err))
	}
	if p.checkpoints != nil {
		_ = p.checkpoints.Clear(ctx, req.JobID)
	}
	if tracker != nil {
		tracker.Finish("Job complete")
	}

	return Result{
		Job:          h.Complete(),
		Manuscript:   manuscript,
		Layout:       layout,
		Consistency:  consistency,
		Verification: verification,
	}
}

func (p *Pipeline) fail(h *job.Handler, tracker *progress.Tracker, err error) Result {
	if tracker != nil {
		tracker.Fail(err.Error())
	}
	slog.Error("pipeline: job failed", "job_id", h.ID, "error", err)
	return Result{Job: h.Fail(err.Error())}
}

// runLoadingInput reads the source document from disk via the input
// package's extension dispatch (C7 LoadingInput), falling back to
// OCRProcessing when a PDF's native text layer looks unreliable.
func (p *Pipeline) runLoadingInput(ctx context.Context, h *job.Handler, tracker *progress.Tracker, req Request) (string, error) {
	if err := h.TransitionTo(job.StateLoadingInput); err != nil {
		return "", err
	}
	if tracker != nil {
		tracker.StartPhase(progress.PhaseLoading, 1)
	}

	text, err := input.Read(req.InputPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", aps.ErrInputRead, err)
	}

	if p.ocr != nil && strings.EqualFold(filepath.Ext(req.InputPath), ".pdf") {
		if info, statErr := os.Stat(req.InputPath); statErr == nil && ocr.NeedsOCR(text, info.Size()) {
			if err := h.TransitionTo(job.StateOCRProcessing); err != nil {
				return "", err
			}
			ocrText, ocrErr := p.ocr.Extract(ctx, req.InputPath)
			if ocrErr != nil {
				return "", fmt.Errorf("%w: ocr fallback failed: %s", aps.ErrInputRead, ocrErr)
			}
			text = ocrText
			h.AddMetadata("ocr_used", true)
		}
	}

	if tracker != nil {
		tracker.Update(1, "Loaded input", 1.0, nil)
		tracker.CompletePhase()
	}
	return text, nil
}

// runPreprocessing applies STEM placeholder substitution (C1) before the
// document is chunked, protecting math and code spans from translation.
func (p *Pipeline) runPreprocessing(h *job.Handler, tracker *progress.Tracker, raw string) (string, stem.PreprocessResult) {
	h.TransitionTo(job.StatePreprocessing)
	if tracker != nil {
		tracker.StartPhase(progress.PhasePreprocessing, 1)
	}

	result := stem.Preprocess(raw)
	if len(p.glossary) > 0 {
		h.AddMetadata("glossary_terms_loaded", len(p.glossary))
	}

	if tracker != nil {
		tracker.Update(1, "Preprocessed document", 1.0, map[string]any{"placeholders": len(result.Matches)})
		tracker.CompletePhase()
	}
	return result.Text, result
}

// runChunking splits the protected text into bounded, paragraph-respecting
// units (C2).
func (p *Pipeline) runChunking(h *job.Handler, tracker *progress.Tracker, text string) []chunker.Chunk {
	h.TransitionTo(job.StateChunking)
	chunks := p.chunker.Chunk(text)
	h.AddMetadata("chunk_count", len(chunks))
	return chunks
}

// runTranslating processes every chunk under bounded concurrency (C3),
// optionally resuming from a prior checkpoint set.
func (p *Pipeline) runTranslating(ctx context.Context, h *job.Handler, tracker *progress.Tracker, req Request, chunks []chunker.Chunk) ([]batch.ChunkResult, error) {
	if err := h.TransitionTo(job.StateTranslating); err != nil {
		return nil, err
	}
	if tracker != nil {
		tracker.StartPhase(progress.PhaseTranslating, len(chunks))
	}

	progressFn := func(completed, total int, avgQuality float64) {
		if tracker != nil {
			tracker.Update(completed, fmt.Sprintf("Translated %d/%d chunks", completed, total), avgQuality, nil)
		}
	}

	var checkpointFn batch.CheckpointFunc
	if p.checkpoints != nil {
		checkpointFn = func(chunkID string, result batch.ChunkResult) {
			_ = p.checkpoints.Save(ctx, req.JobID, result)
		}
	}

	var results []batch.ChunkResult
	if req.Resume && p.checkpoints != nil {
		existing, err := p.checkpoints.Load(ctx, req.JobID)
		if err == nil && len(existing) > 0 {
			results, _ = p.processor.ProcessWithCheckpointResume(ctx, chunks, existing, progressFn, checkpointFn)
		}
	}
	if results == nil {
		results, _ = p.processor.ProcessAll(ctx, chunks, progressFn, checkpointFn, 5)
	}

	if tracker != nil {
		tracker.CompletePhase()
	}
	return results, nil
}

// runMerging deterministically joins chunk results in order and restores
// STEM placeholders (C4).
func (p *Pipeline) runMerging(h *job.Handler, tracker *progress.Tracker, results []batch.ChunkResult, matches []stem.Match) (batch.AggregatedResult, stem.Verification) {
	h.TransitionTo(job.StateMerging)
	aggregated, verification := p.aggregator.AggregateWithStemRestore(results, matches)
	h.AddMetadata("stem_preservation_rate", verification.PreservationRate)
	return aggregated, verification
}

// runPostprocessing extracts semantic structure (C8), builds the
// ManuscriptCoreOutput contract, and stamps its checksum.
func (p *Pipeline) runPostprocessing(h *job.Handler, tracker *progress.Tracker, req Request, chunks []chunker.Chunk, results []batch.ChunkResult, aggregated batch.AggregatedResult) contracts.ManuscriptCoreOutput {
	h.TransitionTo(job.StatePostprocessing)
	if tracker != nil {
		tracker.StartPhase(progress.PhasePostprocessing, 1)
	}

	segments := make([]contracts.Segment, 0, len(results))
	for _, r := range results {
		segments = append(segments, contracts.Segment{
			ID:             r.ChunkID,
			Type:           contracts.SegmentParagraph,
			OriginalText:   r.Original,
			TranslatedText: r.Translated,
			Confidence:     r.QualityScore,
		})
	}

	manuscript := contracts.ManuscriptCoreOutput{
		Metadata:       contracts.NewMetadata(p.cfg.ContractVersion, p.cfg.SourceAgent, p.cfg.TargetAgent),
		SourceLanguage: p.cfg.SourceLanguage,
		TargetLanguage: p.cfg.TargetLanguage,
		Segments:       segments,
		Structure:      contracts.DocumentStructure{TotalChapters: countChapters(segments)},
		Quality:        contracts.QualityMetrics{OverallScore: aggregated.AvgQuality},
	}
	contracts.Stamp(manuscript, func(sum string) { manuscript.Metadata.Checksum = sum })

	if tracker != nil {
		tracker.Update(1, "Built manuscript contract", aggregated.AvgQuality, nil)
		tracker.CompletePhase()
	}
	return manuscript
}

// buildLayoutIntent runs semantic extraction (C8) and AST construction
// (C9) over the merged translation, then projects the AST into the
// LayoutIntentPackage contract consumed by rendering.
func (p *Pipeline) buildLayoutIntent(manuscript contracts.ManuscriptCoreOutput) contracts.LayoutIntentPackage {
	paragraphs := make([]string, len(manuscript.Segments))
	for i, s := range manuscript.Segments {
		paragraphs[i] = s.TranslatedText
	}

	nodes := semantic.Extract(paragraphs)
	built := ast.Build(nodes, nil, false)

	blocks := make([]contracts.Block, 0, len(built.Blocks))
	for i, b := range built.Blocks {
		blocks = append(blocks, contracts.Block{
			ID:    fmt.Sprintf("block_%d", i),
			Kind:  astToContractKind(b.Type),
			Text:  b.Text,
			Level: b.Level,
			Label: b.Number,
		})
	}

	layout := contracts.LayoutIntentPackage{
		Metadata: contracts.NewMetadata(p.cfg.ContractVersion, p.cfg.SourceAgent, p.cfg.TargetAgent),
		Blocks:   blocks,
		Sections: buildSections(blocks),
	}
	contracts.Stamp(layout, func(sum string) { layout.Metadata.Checksum = sum })
	return layout
}

// buildSections groups blocks under their enclosing heading, marking
// level-1 headings as chapters for the TOC and the §4.11 cross-stage
// chapter-presence check.
func buildSections(blocks []contracts.Block) []contracts.Section {
	var sections []contracts.Section
	var open *contracts.Section

	for i, b := range blocks {
		if b.Kind != contracts.BlockHeading {
			continue
		}
		if open != nil {
			open.EndBlockID = blocks[i-1].ID
			sections = append(sections, *open)
		}
		open = &contracts.Section{
			Title:        b.Text,
			Level:        b.Level,
			StartBlockID: b.ID,
			IsChapter:    b.Level == 1,
		}
	}
	if open != nil {
		open.EndBlockID = blocks[len(blocks)-1].ID
		sections = append(sections, *open)
	}
	return sections
}

func astToContractKind(t ast.BlockType) contracts.BlockKind {
	switch t {
	case ast.BlockHeading:
		return contracts.BlockHeading
	case ast.BlockEquation:
		return contracts.BlockEquation
	case ast.BlockTheorem:
		return contracts.BlockTheoremBox
	case ast.BlockProof:
		return contracts.BlockProofBox
	case ast.BlockReference:
		return contracts.BlockReference
	default:
		return contracts.BlockParagraph
	}
}

// countChapters runs the same semantic extraction buildLayoutIntent uses
// and counts level-1 headings, giving the manuscript stage a chapter
// signal independent of, but consistent with, the layout-intent stage's
// own section count (§4.11 cross-stage check).
func countChapters(segments []contracts.Segment) int {
	paragraphs := make([]string, len(segments))
	for i, s := range segments {
		paragraphs[i] = s.TranslatedText
	}
	count := 0
	for _, n := range semantic.Extract(paragraphs) {
		if n.Type == semantic.NodeHeading && n.Level == 1 {
			count++
		}
	}
	return count
}

// runExporting renders the final AST to the requested output format
// (C10), dispatching to the matching renderer package.
func (p *Pipeline) runExporting(h *job.Handler, tracker *progress.Tracker, req Request, layout contracts.LayoutIntentPackage) error {
	h.TransitionTo(job.StateExporting)
	if tracker != nil {
		tracker.StartPhase(progress.PhaseExporting, 1)
	}

	nodes := make([]semantic.DocNode, 0, len(layout.Blocks))
	for _, b := range layout.Blocks {
		nodes = append(nodes, contractBlockToDocNode(b))
	}
	doc := ast.Build(nodes, map[string]string{"title": req.Title}, req.PreserveOMML)
	if req.BookLayout {
		for i := range doc.Blocks {
			if doc.Blocks[i].Type == ast.BlockHeading && doc.Blocks[i].Level == 1 {
				doc.Blocks[i].PageBreakBefore = true
			}
		}
	}

	var err error
	switch req.Format {
	case FormatDOCX:
		err = docx.Write(doc, req.Template, p.templates, req.OutputPath)
	case FormatPDF:
		err = writePDF(doc, req.OutputPath)
	case FormatEPUB:
		err = writeEPUB(doc, req.Title, req.OutputPath)
	default:
		err = fmt.Errorf("%w: %q", aps.ErrUnsupportedFormat, req.Format)
	}

	if tracker != nil {
		tracker.Update(1, "Exported document", 1.0, map[string]any{"format": req.Format})
		tracker.CompletePhase()
	}
	return err
}

func contractBlockToDocNode(b contracts.Block) semantic.DocNode {
	nodeType := semantic.NodeParagraph
	switch b.Kind {
	case contracts.BlockHeading:
		nodeType = semantic.NodeHeading
	case contracts.BlockEquation:
		nodeType = semantic.NodeEquation
	case contracts.BlockTheoremBox:
		nodeType = semantic.NodeTheorem
	case contracts.BlockProofBox:
		nodeType = semantic.NodeProof
	case contracts.BlockReference:
		nodeType = semantic.NodeReference
	}
	return semantic.DocNode{Type: nodeType, Text: b.Text, Level: b.Level, Label: b.Label}
}

func writePDF(doc ast.DocumentAST, outPath string) error {
	data, err := pdf.Render(doc)
	if err != nil {
		return err
	}
	return writeOutput(outPath, data)
}

func writeEPUB(doc ast.DocumentAST, title, outPath string) error {
	data, err := epub.Render(doc, title)
	if err != nil {
		return err
	}
	return writeOutput(outPath, data)
}

func writeOutput(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
