package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/extract"
)

// ExtractStage turns staged bytes into prompt input: text on the PDF path,
// base64 on the image path. Converter is optional; without it HEIC uploads fail.
type ExtractStage struct {
	TextExtractor extract.TextExtractor
	Converter     extract.ImageConverter
	Logger        *zap.Logger
}

func NewExtractStage(tx extract.TextExtractor, logger *zap.Logger) *ExtractStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractStage{TextExtractor: tx, Logger: logger}
}

func (s *ExtractStage) Run(ctx context.Context, kind constants.InputKind, content []byte, mimeType string) (extract.Input, error) {
	log := common.LoggerFromContext(ctx, s.Logger)
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	if kind == constants.IMAGE {
		if extract.NeedsConversion(mimeType) {
			if s.Converter == nil {
				return extract.Input{}, &common.ExtractionError{Reason: "HEIC images are not supported"}
			}
			png, err := s.Converter.ToPNG(ctx, content)
			if err != nil {
				log.Warn("pipeline.extract.heic_error", zap.String("req_id", rid), zap.Error(err))
				return extract.Input{}, &common.ExtractionError{Reason: "convert HEIC", Cause: err}
			}
			log.Debug("pipeline.extract.heic_converted", zap.String("req_id", rid), zap.Int("png_bytes", len(png)))
			content, mimeType = png, "image/png"
		}
		in, err := extract.EncodeImage(content, mimeType)
		if err != nil {
			log.Warn("pipeline.extract.image_error", zap.String("req_id", rid), zap.Error(err))
			return extract.Input{}, err
		}
		log.Debug("pipeline.extract.image_ok",
			zap.String("req_id", rid),
			zap.String("mime", in.MIMEType),
			zap.Int("b64_len", len(in.ImageBase64)),
		)
		return in, nil
	}

	res, err := s.TextExtractor.ExtractText(ctx, content)
	if err != nil {
		log.Warn("pipeline.extract.pdf_error", zap.String("req_id", rid), zap.Error(err))
		return extract.Input{}, err
	}
	if res.Text == "" {
		// Passed through as-is; the model sees an empty form and the parser rejects the reply.
		log.Warn("pipeline.extract.empty_text", zap.String("req_id", rid), zap.Int("pages", res.Pages))
	}
	log.Info("pipeline.extract.pdf_ok",
		zap.String("req_id", rid),
		zap.String("method", res.Method),
		zap.Int("pages", res.Pages),
		zap.Int("text_len", len(res.Text)),
		zap.Strings("warnings", res.Warnings),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return extract.TextInput(res.Text), nil
}
