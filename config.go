package aps

import (
	"time"

	"github.com/brunobiangulo/aps/llm"
)

// Config aggregates every tunable of the translation-and-publishing
// pipeline, following the teacher's single-struct-plus-functional-options
// convention (see config.go in the original engine).
type Config struct {
	// Chunking (C2).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"` // max bytes per chunk

	// Chunk Processor (C3).
	MaxConcurrency int           `json:"max_concurrency" yaml:"max_concurrency"`
	MaxRetries     int           `json:"max_retries" yaml:"max_retries"`
	ChunkTimeout   time.Duration `json:"chunk_timeout" yaml:"chunk_timeout"`
	JobTimeout     time.Duration `json:"job_timeout" yaml:"job_timeout"`

	// Aggregation (C4).
	Separator string `json:"separator" yaml:"separator"`

	// Translation provider (§6 external collaborator).
	Translation    llm.Config `json:"translation" yaml:"translation"`
	SourceLanguage string     `json:"source_language" yaml:"source_language"`
	TargetLanguage string     `json:"target_language" yaml:"target_language"`

	// Job retry budget (C6).
	JobMaxRetries int `json:"job_max_retries" yaml:"job_max_retries"`

	// Rendering (C10).
	TemplateDir     string `json:"template_dir" yaml:"template_dir"`
	DefaultTemplate string `json:"default_template" yaml:"default_template"`

	// Polisher (C12).
	GlossaryPath     string `json:"glossary_path" yaml:"glossary_path"`
	ProtectedNames   []string `json:"protected_names" yaml:"protected_names"`

	// Persistence (glossary/checkpoint/cache store, adapted from the
	// teacher's sqlite-backed store).
	DBPath       string `json:"db_path" yaml:"db_path"`
	EmbeddingDim int    `json:"embedding_dim" yaml:"embedding_dim"`

	// Contract metadata (§6 ManuscriptCoreOutput / LayoutIntentPackage).
	ContractVersion string `json:"contract_version" yaml:"contract_version"`
	SourceAgent     string `json:"source_agent" yaml:"source_agent"`
	TargetAgent     string `json:"target_agent" yaml:"target_agent"`
}

// DefaultConfig returns a Config with the defaults named throughout spec.md
// (chunk size, phase weights are in package progress, retry counts, etc).
func DefaultConfig() Config {
	return Config{
		ChunkSize:       4000,
		MaxConcurrency:  10,
		MaxRetries:      3,
		ChunkTimeout:    120 * time.Second,
		JobTimeout:      30 * time.Minute,
		Separator:       "\n\n",
		JobMaxRetries:   3,
		TemplateDir:     "templates",
		DefaultTemplate: "default",
		EmbeddingDim:    768,
		ContractVersion: "1.0.0",
		SourceAgent:     "aps-core",
		TargetAgent:     "aps-editorial",
		SourceLanguage:  "en",
		TargetLanguage:  "vi",
		Translation: llm.Config{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
	}
}

// Option mutates a Config; mirrors the teacher's With* functional-options
// idiom used across goreason.go's IngestOption/QueryOption.
type Option func(*Config)

func WithChunkSize(n int) Option            { return func(c *Config) { c.ChunkSize = n } }
func WithMaxConcurrency(n int) Option       { return func(c *Config) { c.MaxConcurrency = n } }
func WithMaxRetries(n int) Option           { return func(c *Config) { c.MaxRetries = n } }
func WithChunkTimeout(d time.Duration) Option { return func(c *Config) { c.ChunkTimeout = d } }
func WithJobTimeout(d time.Duration) Option { return func(c *Config) { c.JobTimeout = d } }
func WithTranslation(llmCfg llm.Config) Option {
	return func(c *Config) { c.Translation = llmCfg }
}
func WithTemplateDir(dir string) Option { return func(c *Config) { c.TemplateDir = dir } }
func WithGlossaryPath(path string) Option { return func(c *Config) { c.GlossaryPath = path } }
func WithDBPath(path string) Option     { return func(c *Config) { c.DBPath = path } }
func WithLanguages(source, target string) Option {
	return func(c *Config) { c.SourceLanguage = source; c.TargetLanguage = target }
}

// Apply folds a list of options onto a base config, returning the result.
func (c Config) Apply(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
