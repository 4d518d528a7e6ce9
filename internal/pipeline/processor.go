// Package pipeline runs one uploaded document through staging, extraction,
// completion and parsing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/journal"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
	"github.com/joseph-ayodele/form16-extractor/internal/staging"
)

// UploadedDocument is one upload as received from a transport. Kind, when
// set, pins the path the route expects; otherwise it is detected.
type UploadedDocument struct {
	Content  []byte
	MIMEType string
	Filename string
	Kind     constants.InputKind
}

// Processor coordinates staging, extraction, completion and parsing.
type Processor struct {
	Logger  *zap.Logger
	Stager  staging.Stager
	Journal journal.Store
	Extract *ExtractStage
	Parse   *ParseStage
}

func NewProcessor(logger *zap.Logger, stager staging.Stager, jr journal.Store, ex *ExtractStage, parse *ParseStage) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jr == nil {
		jr = journal.Noop{}
	}
	return &Processor{Logger: logger, Stager: stager, Journal: jr, Extract: ex, Parse: parse}
}

// Process returns the five form fields or a typed error. The staged upload is
// removed before Process returns, whatever the outcome.
func (p *Processor) Process(ctx context.Context, doc UploadedDocument) (llm.FormFields, error) {
	log := common.LoggerFromContext(ctx, p.Logger)
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	kind, err := resolveKind(doc)
	if err != nil {
		log.Warn("pipeline.process.rejected",
			zap.String("req_id", rid),
			zap.String("filename", doc.Filename),
			zap.String("mime", doc.MIMEType),
			zap.Error(err),
		)
		return llm.FormFields{}, err
	}

	jobID, jerr := p.Journal.Start(ctx, kind, doc.Filename)
	if jerr != nil {
		log.Warn("pipeline.journal.start_error", zap.String("req_id", rid), zap.Error(jerr))
		jobID = uuid.Nil
	}

	log.Info("pipeline.process.start",
		zap.String("req_id", rid),
		zap.String("job_id", jobID.String()),
		zap.String("kind", string(kind)),
		zap.String("filename", doc.Filename),
		zap.Int("bytes", len(doc.Content)),
	)

	fields, model, err := p.run(ctx, kind, doc)
	p.finish(ctx, jobID, model, err)

	if err != nil {
		log.Error("pipeline.process.error",
			zap.String("req_id", rid),
			zap.String("code", common.ErrorCode(err)),
			zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return llm.FormFields{}, err
	}
	log.Info("pipeline.process.ok",
		zap.String("req_id", rid),
		zap.String("job_id", jobID.String()),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return fields, nil
}

func (p *Processor) run(ctx context.Context, kind constants.InputKind, doc UploadedDocument) (llm.FormFields, string, error) {
	log := common.LoggerFromContext(ctx, p.Logger)

	handle, err := p.Stager.Stage(ctx, doc.Filename, doc.Content, doc.MIMEType)
	if err != nil {
		return llm.FormFields{}, "", common.NewAppError(common.CodeInternal, "stage upload", err)
	}
	defer func() {
		// removal must survive a cancelled request
		if rerr := handle.Remove(context.WithoutCancel(ctx)); rerr != nil {
			log.Warn("pipeline.staging.remove_error", zap.String("location", handle.Location()), zap.Error(rerr))
		}
	}()

	content, err := handle.Read(ctx)
	if err != nil {
		return llm.FormFields{}, "", common.NewAppError(common.CodeInternal, "read staged upload", err)
	}

	in, err := p.Extract.Run(ctx, kind, content, doc.MIMEType)
	if err != nil {
		return llm.FormFields{}, "", err
	}
	return p.Parse.Run(ctx, in)
}

func (p *Processor) finish(ctx context.Context, jobID uuid.UUID, model string, err error) {
	if jobID == uuid.Nil {
		return
	}
	status := constants.JobStatusOK
	switch {
	case errors.Is(err, common.ErrParse):
		status = constants.JobStatusNotRecognized
	case err != nil:
		status = constants.JobStatusFailed
	}
	if ferr := p.Journal.Finish(context.WithoutCancel(ctx), jobID, status, common.ErrorCode(err), model); ferr != nil {
		common.LoggerFromContext(ctx, p.Logger).Warn("pipeline.journal.finish_error",
			zap.String("job_id", jobID.String()), zap.Error(ferr))
	}
}

func resolveKind(doc UploadedDocument) (constants.InputKind, error) {
	if len(doc.Content) == 0 {
		return "", common.NewAppError(common.CodeInvalidInput, "no file uploaded", common.ErrInvalidInput)
	}
	detected := constants.DetectKind(doc.MIMEType, doc.Filename)
	if detected == "" {
		return "", common.NewAppError(common.CodeUnsupportedType,
			fmt.Sprintf("unsupported upload %q (%s)", doc.Filename, doc.MIMEType), common.ErrUnsupportedType)
	}
	if doc.Kind != "" && doc.Kind != detected {
		return "", common.NewAppError(common.CodeUnsupportedType,
			fmt.Sprintf("expected %s upload, got %s", doc.Kind, detected), common.ErrUnsupportedType)
	}
	return detected, nil
}
