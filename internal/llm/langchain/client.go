// Package langchain adapts langchaingo's OpenAI driver to llm.Completer.
package langchain

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string // default model; requests override it per call
	Timeout time.Duration
}

type Client struct {
	model  llms.Model
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return &Client{model: m, logger: logger}, nil
}

// NewWithModel wraps an existing llms.Model.
func NewWithModel(m llms.Model, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{model: m, logger: logger}
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	log := common.LoggerFromContext(ctx, c.logger)
	start := time.Now()

	var user llms.ContentPart
	if req.Content.Type == llm.ContentImage {
		user = llms.ImageURLPart(req.Content.DataURL())
	} else {
		user = llms.TextPart(req.Content.Text)
	}
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{user}},
	}

	callOpts := []llms.CallOption{llms.WithModel(req.Model)}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(float64(req.Temperature)))
	}
	if req.ReplyFormat == constants.ReplyJSON {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	log.Info("llm.complete.start",
		zap.String("req_id", rid),
		zap.String("provider", "langchain"),
		zap.String("model", req.Model),
		zap.String("content_type", string(req.Content.Type)),
	)

	resp, err := c.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		log.Error("llm.complete.error", zap.String("req_id", rid), zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return "", &common.CompletionError{Reason: common.ReasonTransport, Cause: err}
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", &common.CompletionError{Reason: common.ReasonMalformed, Cause: fmt.Errorf("no choices in response")}
	}

	out := resp.Choices[0].Content
	log.Info("llm.complete.ok",
		zap.String("req_id", rid),
		zap.Int("reply_len", len(out)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}
