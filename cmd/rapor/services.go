package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackzampolin/rapor/internal/config"
	"github.com/jackzampolin/rapor/internal/engines"
	"github.com/jackzampolin/rapor/internal/export"
	"github.com/jackzampolin/rapor/internal/home"
	"github.com/jackzampolin/rapor/internal/metrics"
	"github.com/jackzampolin/rapor/internal/ocr"
	"github.com/jackzampolin/rapor/internal/pipeline"
	"github.com/jackzampolin/rapor/internal/preprocess"
	"github.com/jackzampolin/rapor/internal/rasterize"
	"github.com/jackzampolin/rapor/internal/svcctx"
)

// buildServices wires the engines, pipeline, exporter and batch runner from
// config. Engines are created but not initialized; the caller owns Init/Close.
func buildServices(cfg *config.Config, h *home.Dir, logger *slog.Logger) (*svcctx.Services, error) {
	vocab, err := cfg.ScoreVocabulary()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.MergePolicy()
	if err != nil {
		return nil, err
	}
	layout := cfg.Layout(h)

	if err := h.EnsureExists(); err != nil {
		return nil, err
	}
	for _, dir := range []string{layout.Input, layout.Generated, layout.Uploads} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	regCfg := cfg.ToEngineRegistryConfig()
	regCfg.Logger = logger
	registry, err := engines.NewFromConfig(regCfg)
	if err != nil {
		return nil, err
	}

	primary, err := registry.Get(cfg.OCR.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary engine: %w", err)
	}
	var secondary ocr.Engine
	if cfg.OCR.Secondary != "" {
		secondary, err = registry.Get(cfg.OCR.Secondary)
		if err != nil {
			return nil, fmt.Errorf("secondary engine: %w", err)
		}
	}

	rec := metrics.NewRecorder(metrics.DefaultCapacity)

	recognizer, err := ocr.NewRecognizer(ocr.RecognizerConfig{
		Primary:   primary,
		Secondary: secondary,
		Binarizer: preprocess.Binarizer{
			BlockSize: cfg.Preprocess.BlockSize,
			Offset:    cfg.Preprocess.Offset,
		},
		MinTextLength:       cfg.OCR.MinTextLength,
		MinConfidence:       cfg.OCR.MinConfidence,
		FilterLowConfidence: cfg.OCR.FilterLowConfidence,
		Languages:           cfg.OCR.Languages,
		Metrics:             rec,
		Logger:              logger,
	})
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(pipeline.Config{
		Renderer: rasterize.New(rasterize.Config{
			DPI:           cfg.Render.DPI,
			Command:       cfg.Render.Command,
			ReuseExisting: cfg.Render.ReuseExisting,
			Logger:        logger,
		}),
		Recognizer:    recognizer,
		Vocabulary:    vocab,
		MergePolicy:   policy,
		GeneratedDir:  layout.Generated,
		UseTextLayer:  cfg.Render.TextLayer,
		MinTextLength: cfg.OCR.MinTextLength,
		Metrics:       rec,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	exp, err := export.New(export.Config{
		TextDir:    layout.Text,
		ValuesDir:  layout.Values,
		JSONDir:    layout.JSON,
		Vocabulary: vocab,
	})
	if err != nil {
		return nil, err
	}

	batch, err := pipeline.NewBatch(pipeline.BatchConfig{
		Pipeline:        p,
		Exporter:        exp,
		InputDir:        layout.Input,
		ContinueOnError: cfg.Batch.ContinueOnError,
		PageResults:     cfg.Batch.PageResults,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("services ready",
		"primary", cfg.OCR.Primary,
		"secondary", cfg.OCR.Secondary,
		"engines", strings.Join(registry.Names(), ","),
		"input", layout.Input,
		"text", layout.Text,
		"values", layout.Values,
	)

	return &svcctx.Services{
		Pipeline:   p,
		Batch:      batch,
		Exporter:   exp,
		Engines:    registry,
		Metrics:    rec,
		Config:     cfg,
		Logger:     logger,
		Home:       h,
		UploadsDir: layout.Uploads,
	}, nil
}

// logMetrics writes one line per engine after a CLI run.
func logMetrics(logger *slog.Logger, rec *metrics.Recorder) {
	report := rec.Report()
	for name, s := range report.Engines {
		logger.Info("engine summary",
			"engine", name,
			"calls", s.Count,
			"errors", s.ErrorCount,
			"chars", s.TotalChars,
			"seconds", s.TotalTime.Seconds(),
		)
	}
	logger.Info("run summary", "documents", report.Documents, "fallbacks", report.Fallbacks)
}
