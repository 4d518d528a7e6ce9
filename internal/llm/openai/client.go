package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
)

// Complete implements llm.Completer against /chat/completions. Text and image
// requests share this one call path; only the user content part differs.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	log := common.LoggerFromContext(ctx, c.logger)
	start := time.Now()

	log.Info("llm.complete.start",
		zap.String("req_id", rid),
		zap.String("provider", "openai"),
		zap.String("model", req.Model),
		zap.String("content_type", string(req.Content.Type)),
		zap.Int("max_tokens", req.MaxTokens),
		zap.String("reply_format", string(req.ReplyFormat)),
	)

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, buildBody(req), headers, log)
	if err != nil {
		log.Error("llm.complete.http_error",
			zap.String("req_id", rid), zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.complete.decode_error",
			zap.String("req_id", rid), zap.Error(err), zap.Int("raw_bytes", len(raw)),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return "", &common.CompletionError{Reason: common.ReasonMalformed, Cause: fmt.Errorf("decode openai response: %w", err)}
	}
	if len(cc.Choices) == 0 || cc.Choices[0].Message.Content == nil {
		log.Error("llm.complete.no_choices",
			zap.String("req_id", rid), zap.Int("raw_bytes", len(raw)),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return "", &common.CompletionError{Reason: common.ReasonMalformed, Cause: fmt.Errorf("no choices in openai response")}
	}

	content := *cc.Choices[0].Message.Content
	log.Info("llm.complete.ok",
		zap.String("req_id", rid),
		zap.Int("reply_len", len(content)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return content, nil
}

func buildBody(req llm.CompletionRequest) map[string]any {
	var user any
	switch req.Content.Type {
	case llm.ContentImage:
		user = []map[string]any{{
			"type":      "image_url",
			"image_url": map[string]any{"url": req.Content.DataURL()},
		}}
	default:
		user = req.Content.Text
	}

	messages := []map[string]any{
		{"role": "system", "content": req.System},
		{"role": "user", "content": user},
	}
	if req.ReplyFormat == constants.ReplyJSON && req.Schema != nil {
		messages = append(messages, map[string]any{"role": "system", "content": "JSON Schema:\n" + mustJSON(req.Schema)})
	}

	body := map[string]any{
		"model":    req.Model,
		"messages": messages,
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.ReplyFormat == constants.ReplyJSON {
		body["response_format"] = map[string]any{"type": "json_object"}
	}
	return body
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
