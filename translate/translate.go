// Package translate adapts the teacher's llm.Provider abstraction into the
// "translation callable" external interface named in spec §6: an async
// function(client, chunk) -> TranslationResult. The provider owns prompt
// construction, token accounting, and provider-specific retries; callers in
// package batch only handle the outer timeout and retry budget.
package translate

import (
	"context"
	"fmt"

	"github.com/brunobiangulo/aps/llm"
)

// Result mirrors the TranslationResult shape from §6.
type Result struct {
	ChunkID       string
	Source        string
	Translated    string
	QualityScore  float64
	FromCache     bool
	PromptTokens  int
	TotalTokens   int
}

// Func is the translation callable signature consumed by batch.ChunkProcessor.
type Func func(ctx context.Context, chunkID, text string) (Result, error)

// IsTransient reports whether err signals a condition worth retrying at
// the chunk-processor layer, as opposed to a request the provider will
// never accept. A Func implementation that cannot offer this distinction
// should simply let every error be retried: batch.ChunkProcessor only
// consults this for non-timeout errors, per the retry budget in §4.3.
func IsTransient(err error) bool {
	return llm.IsTransient(err)
}

// Translator wraps an llm.Provider with a fixed source/target language pair
// and an optional cache, producing a Func suitable for the chunk processor.
type Translator struct {
	provider   llm.Provider
	model      string
	srcLang    string
	tgtLang    string
	cache      Cache
	promptTmpl string
}

// Cache is the narrow get/set trait named in §6; nil disables caching.
type Cache interface {
	Get(ctx context.Context, source, srcLang, tgtLang string) (string, bool)
	Set(ctx context.Context, source, translated, srcLang, tgtLang string)
}

// New builds a Translator from a configured llm.Provider.
func New(provider llm.Provider, model, srcLang, tgtLang string, cache Cache) *Translator {
	return &Translator{
		provider: provider,
		model:    model,
		srcLang:  srcLang,
		tgtLang:  tgtLang,
		cache:    cache,
		promptTmpl: "Translate the following text from %s to %s. Preserve every token " +
			"that looks like ⟪APS_FORMULA_n⟫ or ⟪APS_CODE_n⟫ exactly as-is; do not " +
			"translate, reorder, or alter them.\n\n%s",
	}
}

// Func returns the translation callable bound to this Translator.
func (t *Translator) Func() Func {
	return func(ctx context.Context, chunkID, text string) (Result, error) {
		if t.cache != nil {
			if cached, ok := t.cache.Get(ctx, text, t.srcLang, t.tgtLang); ok {
				return Result{ChunkID: chunkID, Source: text, Translated: cached, QualityScore: 1.0, FromCache: true}, nil
			}
		}

		prompt := fmt.Sprintf(t.promptTmpl, t.srcLang, t.tgtLang, text)
		resp, err := t.provider.Chat(ctx, llm.ChatRequest{
			Model:       t.model,
			Messages:    []llm.Message{{Role: "user", Content: prompt}},
			Temperature: 0.2,
		})
		if err != nil {
			return Result{}, fmt.Errorf("translate: provider chat failed: %w", err)
		}

		if t.cache != nil {
			t.cache.Set(ctx, text, resp.Content, t.srcLang, t.tgtLang)
		}

		return Result{
			ChunkID:      chunkID,
			Source:       text,
			Translated:   resp.Content,
			QualityScore: qualityFromResponse(resp),
			PromptTokens: resp.PromptTokens,
			TotalTokens:  resp.TotalTokens,
		}, nil
	}
}

// qualityFromResponse derives a coarse [0,1] score from the finish reason:
// a clean "stop" finish or an empty finish reason is full confidence;
// "length" truncation scores 0.6 and any other reason 0.8, matching the teacher's confidence-clamping style in
// reasoning/confidence.go.
func qualityFromResponse(resp *llm.ChatResponse) float64 {
	switch resp.FinishReason {
	case "stop", "":
		return 1.0
	case "length":
		return 0.6
	default:
		return 0.8
	}
}
