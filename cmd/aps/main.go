package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/aps"
	"github.com/brunobiangulo/aps/cache"
	"github.com/brunobiangulo/aps/checkpoint"
	"github.com/brunobiangulo/aps/input"
	"github.com/brunobiangulo/aps/llm"
	"github.com/brunobiangulo/aps/pipeline"
	"github.com/brunobiangulo/aps/progress"
	"github.com/brunobiangulo/aps/store"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	inputPath := flag.String("input", "", "Path to the source document")
	outputPath := flag.String("output", "", "Path to write the translated document")
	format := flag.String("format", "docx", "Output format: docx, pdf, epub")
	template := flag.String("template", "default", "DOCX template name")
	title := flag.String("title", "", "EPUB title")
	jobID := flag.String("job-id", "", "Job ID; required with -resume")
	resume := flag.Bool("resume", false, "Resume a prior job from checkpoint")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if *inputPath == "" || *outputPath == "" {
		slog.Error("missing required flags", "required", "-input, -output")
		os.Exit(1)
	}

	cfg := aps.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	if v := os.Getenv("APS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("APS_TRANSLATION_PROVIDER"); v != "" {
		cfg.Translation.Provider = v
	}
	if v := os.Getenv("APS_TRANSLATION_MODEL"); v != "" {
		cfg.Translation.Model = v
	}
	if v := os.Getenv("APS_TRANSLATION_BASE_URL"); v != "" {
		cfg.Translation.BaseURL = v
	}
	if v := os.Getenv("APS_TRANSLATION_API_KEY"); v != "" {
		cfg.Translation.APIKey = v
	}
	if v := os.Getenv("APS_SOURCE_LANGUAGE"); v != "" {
		cfg.SourceLanguage = v
	}
	if v := os.Getenv("APS_TARGET_LANGUAGE"); v != "" {
		cfg.TargetLanguage = v
	}

	if cfg.DBPath == "" {
		cfg.DBPath = "aps.db"
	}

	provider, err := llm.NewProvider(cfg.Translation)
	if err != nil {
		slog.Error("constructing translation provider", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.DBPath, cfg.EmbeddingDim)
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var glossary map[string]string
	if cfg.GlossaryPath != "" {
		glossary, err = loadGlossary(cfg.GlossaryPath)
		if err != nil {
			slog.Error("loading glossary", "error", err)
			os.Exit(1)
		}
		for source, target := range glossary {
			term := store.GlossaryTerm{
				SourceTerm: source,
				TargetTerm: target,
				SrcLang:    cfg.SourceLanguage,
				TgtLang:    cfg.TargetLanguage,
			}
			if err := st.UpsertGlossaryTerm(context.Background(), term); err != nil {
				slog.Warn("upserting glossary term", "source", source, "error", err)
			}
		}
	}

	sqliteCache := cache.New(st)
	checkpoints := checkpoint.New(st)

	p := pipeline.New(cfg, provider, nil, sqliteCache, checkpoints, glossary)

	id := *jobID
	if id == "" {
		id = filepath.Base(*inputPath)
	}

	tracker := progress.New(id, id, 0)
	tracker.AddCallback(progress.NewLoggingCallback(2))

	res := p.Run(context.Background(), pipeline.Request{
		JobID:      id,
		InputPath:  *inputPath,
		OutputPath: *outputPath,
		Format:     pipeline.Format(strings.ToLower(*format)),
		Template:   *template,
		Title:      *title,
		Resume:     *resume,
	}, tracker)

	if !res.Job.Success {
		slog.Error("job failed", "job_id", id, "error", res.Job.Error)
		os.Exit(1)
	}

	slog.Info("job complete", "job_id", id, "output", *outputPath, "quality", res.Manuscript.Quality.OverallScore)
}

// loadGlossary reads the configured glossary source (an .xlsx workbook or
// a JSON object), returning the flat source->target map the translator
// uses for Preprocessing-stage term substitution. main upserts the terms
// into the store.
func loadGlossary(path string) (map[string]string, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return input.ReadGlossaryXLSX(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
