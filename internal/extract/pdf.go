package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/ocr"
)

// OCRFallback rasterizes and OCRs a PDF whose text layer is empty.
type OCRFallback interface {
	OCRPDF(ctx context.Context, content []byte) (text string, pages int, warnings []string, err error)
}

// PDFExtractor validates PDF bytes with pdfcpu and pulls the text layer with ledongthuc/pdf.
type PDFExtractor struct {
	conf     *model.Configuration
	fallback OCRFallback
	logger   *zap.Logger
}

func NewPDFExtractor(fallback OCRFallback, logger *zap.Logger) *PDFExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf, fallback: fallback, logger: logger}
}

// ExtractText returns the concatenated text of all pages. Bytes that are not a
// parseable PDF fail with an ExtractionError.
func (e *PDFExtractor) ExtractText(ctx context.Context, content []byte) (Result, error) {
	start := time.Now()
	log := common.LoggerFromContext(ctx, e.logger)

	if len(content) == 0 {
		return Result{}, &common.ExtractionError{Reason: "empty document"}
	}

	pages, err := api.PageCount(bytes.NewReader(content), e.conf)
	if err != nil {
		log.Warn("extract.pdf.invalid", zap.Int("bytes", len(content)), zap.Error(err))
		return Result{}, &common.ExtractionError{Reason: "not a parseable pdf", Cause: err}
	}

	text, err := plainText(content)
	if err != nil {
		log.Warn("extract.pdf.text_error", zap.Int("pages", pages), zap.Error(err))
		return Result{Pages: pages}, &common.ExtractionError{Reason: "read text layer", Cause: err}
	}
	text = ocr.Normalize(text)

	res := Result{Text: text, Pages: pages, Method: "pdf-text"}
	if text == "" && e.fallback != nil {
		log.Info("extract.pdf.ocr_fallback", zap.Int("pages", pages))
		otext, opages, warns, oerr := e.fallback.OCRPDF(ctx, content)
		res.Warnings = append(res.Warnings, warns...)
		if oerr != nil {
			res.Duration = time.Since(start)
			return res, &common.ExtractionError{Reason: "ocr fallback", Cause: oerr}
		}
		res.Text = ocr.Normalize(otext)
		res.Pages = opages
		res.Method = "pdf-ocr"
	}

	res.Duration = time.Since(start)
	log.Debug("extract.pdf.ok",
		zap.String("method", res.Method),
		zap.Int("pages", res.Pages),
		zap.Int("text_len", len(res.Text)),
		zap.Int64("elapsed_ms", res.Duration.Milliseconds()),
	)
	return res, nil
}

// plainText joins the text of every page with a line break so words on
// adjacent pages never merge. It also guards against the reader panicking on
// damaged streams.
func plainText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		t, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract plain text of page %d: %w", i, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t)
	}
	return strings.TrimSpace(b.String()), nil
}
