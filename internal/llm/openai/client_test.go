package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/extract"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)
}

func TestComplete_ImageRequest(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"2023-24\nAcme\nTAN\nJane\nPAN"}}]}`))
	})

	req := llm.BuildRequest(extract.ImageInput("QUJD", "image/png"), llm.PromptOptions{VisionModel: "gpt-4-vision-preview"})
	reply, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "2023-24\nAcme\nTAN\nJane\nPAN", reply)

	assert.Equal(t, "gpt-4-vision-preview", body["model"])
	assert.EqualValues(t, 1000, body["max_tokens"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "image_url", user["type"])
	assert.Equal(t, "data:image/png;base64,QUJD", user["image_url"].(map[string]any)["url"])
}

func TestComplete_TextRequestOmitsMaxTokens(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	_, err := c.Complete(context.Background(), llm.BuildRequest(extract.TextInput("FORM 16"), llm.PromptOptions{TextModel: "gpt-4"}))
	require.NoError(t, err)
	assert.NotContains(t, body, "max_tokens")
	assert.NotContains(t, body, "response_format")
	user := body["messages"].([]any)[1].(map[string]any)
	assert.Equal(t, "FORM 16", user["content"])
}

func TestComplete_JSONModeAddsResponseFormat(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	})
	opts := llm.PromptOptions{TextModel: "gpt-4", ReplyFormat: constants.ReplyJSON}
	_, err := c.Complete(context.Background(), llm.BuildRequest(extract.TextInput("x"), opts))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	assert.Len(t, body["messages"], 3)
}

func TestComplete_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason common.CompletionReason
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, common.ReasonAuth},
		{"rate limited", http.StatusTooManyRequests, `{}`, common.ReasonRateLimited},
		{"server error", http.StatusBadGateway, `oops`, common.ReasonStatus},
		{"malformed body", http.StatusOK, `not json`, common.ReasonMalformed},
		{"no choices", http.StatusOK, `{"choices":[]}`, common.ReasonMalformed},
		{"null content", http.StatusOK, `{"choices":[{"message":{"content":null}}]}`, common.ReasonMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Complete(context.Background(), llm.BuildRequest(extract.TextInput("x"), llm.PromptOptions{TextModel: "gpt-4"}))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrCompletion)
			var ce *common.CompletionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.reason, ce.Reason)
		})
	}
}

func TestComplete_TransportError(t *testing.T) {
	c := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.Complete(context.Background(), llm.BuildRequest(extract.TextInput("x"), llm.PromptOptions{TextModel: "gpt-4"}))
	var ce *common.CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, common.ReasonTransport, ce.Reason)
}
