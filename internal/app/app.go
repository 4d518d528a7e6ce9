// Package app wires configuration into the components both binaries share.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/export"
	"github.com/joseph-ayodele/form16-extractor/internal/extract"
	"github.com/joseph-ayodele/form16-extractor/internal/journal"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
	"github.com/joseph-ayodele/form16-extractor/internal/llm/langchain"
	"github.com/joseph-ayodele/form16-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/form16-extractor/internal/llm/vertex"
	"github.com/joseph-ayodele/form16-extractor/internal/ocr"
	"github.com/joseph-ayodele/form16-extractor/internal/pipeline"
	"github.com/joseph-ayodele/form16-extractor/internal/staging"
)

type App struct {
	Processor *pipeline.Processor
	Journal   journal.Store
	Exporter  *export.Service

	closers []func() error
	logger  *zap.Logger
}

// Build constructs every component from cfg. Callers must Close the App.
func Build(ctx context.Context, cfg *common.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	completer, err := a.completer(ctx, cfg.LLM)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	stager, err := newStager(ctx, cfg.Staging, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	jr, err := journal.Open(ctx, journal.Config{Driver: cfg.Journal.Driver, DSN: cfg.Journal.DSN}, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.Journal = jr
	a.closers = append(a.closers, jr.Close)
	a.Exporter = export.NewService(jr, logger)

	stage, err := NewExtractStage(cfg.OCR, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	textModel, visionModel := cfg.LLM.Models()
	opts := llm.PromptOptions{
		TextModel:      textModel,
		VisionModel:    visionModel,
		ImageMaxTokens: cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		ReplyFormat:    cfg.LLM.ReplyFormat,
	}

	a.Processor = pipeline.NewProcessor(logger, stager, jr, stage, pipeline.NewParseStage(completer, opts, logger))

	logger.Info("app.ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("text_model", textModel),
		zap.String("vision_model", visionModel),
		zap.String("reply_format", string(cfg.LLM.ReplyFormat)),
		zap.String("staging", cfg.Staging.Driver),
		zap.String("journal", cfg.Journal.Driver),
		zap.Bool("ocr_fallback", cfg.OCR.Fallback),
		zap.String("heic_converter", cfg.OCR.HEICConverter),
	)
	return a, nil
}

// NewExtractStage builds stage 1 alone: PDF text with the optional OCR
// fallback, and the optional HEIC converter.
func NewExtractStage(cfg common.OCRConfig, logger *zap.Logger) (*pipeline.ExtractStage, error) {
	var fallback extract.OCRFallback
	if cfg.Fallback {
		fallback = ocr.NewExtractor(ocr.Config{
			Pdftoppm:      cfg.Pdftoppm,
			Tesseract:     cfg.Tesseract,
			TesseractLang: cfg.TesseractLang,
			TessdataDir:   cfg.TessdataDir,
			DPI:           cfg.DPI,
			MaxPages:      cfg.MaxPages,
		}, logger)
	}
	stage := pipeline.NewExtractStage(extract.NewPDFExtractor(fallback, logger), logger)
	if cfg.HEICConverter != "" {
		conv, err := ocr.NewHEICConverter(cfg.HEICConverter, logger)
		if err != nil {
			return nil, err
		}
		stage.Converter = conv
	}
	return stage, nil
}

func (a *App) completer(ctx context.Context, cfg common.LLMConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case "langchain":
		c, err := langchain.NewClient(langchain.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.TextModel,
			Timeout: cfg.Timeout,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "vertex":
		c, err := vertex.NewClient(ctx, cfg.VertexProject, cfg.VertexRegion, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		return openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}, a.logger), nil
	}
}

func newStager(ctx context.Context, cfg common.StagingConfig, logger *zap.Logger) (staging.Stager, error) {
	if cfg.Driver == "s3" {
		return staging.NewS3(ctx, staging.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
		}, logger)
	}
	return staging.NewLocal(cfg.Dir, logger)
}

// Close releases components in reverse construction order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
