// Package vertex adapts Gemini on Vertex AI to llm.Completer.
package vertex

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
)

// Client holds one genai client; a GenerativeModel is configured per request
// so concurrent requests never share model settings.
type Client struct {
	base   *genai.Client
	logger *zap.Logger
}

func NewClient(ctx context.Context, projectID, region string, logger *zap.Logger) (*Client, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex.NewClient: projectID and region cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{base: base, logger: logger}, nil
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	log := common.LoggerFromContext(ctx, c.logger)
	start := time.Now()

	model := c.base.GenerativeModel(req.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.ReplyFormat == constants.ReplyJSON {
		model.ResponseMIMEType = "application/json"
	}

	part, err := userPart(req.Content)
	if err != nil {
		return "", &common.CompletionError{Reason: common.ReasonTransport, Cause: err}
	}

	log.Info("llm.complete.start",
		zap.String("req_id", rid),
		zap.String("provider", "vertex"),
		zap.String("model", req.Model),
		zap.String("content_type", string(req.Content.Type)),
	)

	resp, err := model.GenerateContent(ctx, part)
	if err != nil {
		log.Error("llm.complete.error", zap.String("req_id", rid), zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return "", &common.CompletionError{Reason: common.ReasonTransport, Cause: err}
	}

	text, ok := firstCandidateText(resp)
	if !ok {
		return "", &common.CompletionError{Reason: common.ReasonMalformed, Cause: fmt.Errorf("no candidates in response")}
	}
	log.Info("llm.complete.ok",
		zap.String("req_id", rid),
		zap.Int("reply_len", len(text)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return text, nil
}

func userPart(c llm.Content) (genai.Part, error) {
	if c.Type != llm.ContentImage {
		return genai.Text(c.Text), nil
	}
	data, err := base64.StdEncoding.DecodeString(c.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	mt := c.MIMEType
	if mt == "" {
		mt = "image/png"
	}
	return genai.Blob{MIMEType: mt, Data: data}, nil
}

func firstCandidateText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), true
}
