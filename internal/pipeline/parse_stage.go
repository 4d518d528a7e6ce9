package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/extract"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
)

// ParseStage builds the prompt, asks the model and binds the reply to FormFields.
type ParseStage struct {
	Completer llm.Completer
	Prompt    llm.PromptOptions
	Logger    *zap.Logger
}

func NewParseStage(c llm.Completer, opts llm.PromptOptions, logger *zap.Logger) *ParseStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParseStage{Completer: c, Prompt: opts, Logger: logger}
}

// Run returns the parsed fields and the model the request was sent to.
func (s *ParseStage) Run(ctx context.Context, in extract.Input) (llm.FormFields, string, error) {
	log := common.LoggerFromContext(ctx, s.Logger)
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	req := llm.BuildRequest(in, s.Prompt)
	reply, err := s.Completer.Complete(ctx, req)
	if err != nil {
		return llm.FormFields{}, req.Model, err
	}

	fields, err := llm.Parse(req, reply)
	if err != nil {
		log.Warn("pipeline.parse.not_recognized",
			zap.String("req_id", rid),
			zap.String("reply_format", string(req.ReplyFormat)),
			zap.Int("reply_len", len(reply)),
			zap.Error(err),
		)
		return llm.FormFields{}, req.Model, err
	}

	log.Info("pipeline.parse.ok",
		zap.String("req_id", rid),
		zap.String("model", req.Model),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return fields, req.Model, nil
}
