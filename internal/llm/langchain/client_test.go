package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/extract"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
)

type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = msgs
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestComplete_ImagePart(t *testing.T) {
	m := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "a\nb\nc\nd\ne"}}}}
	c := NewWithModel(m, nil)

	req := llm.BuildRequest(extract.ImageInput("QUJD", "image/png"), llm.PromptOptions{VisionModel: "gpt-4o"})
	reply, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\nd\ne", reply)

	require.Len(t, m.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.messages[0].Role)
	img, ok := m.messages[1].Parts[0].(llms.ImageURLContent)
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,QUJD", img.URL)
	assert.Equal(t, "gpt-4o", m.opts.Model)
	assert.Equal(t, llm.DefaultImageMaxTokens, m.opts.MaxTokens)
}

func TestComplete_Errors(t *testing.T) {
	c := NewWithModel(&fakeModel{err: errors.New("connection refused")}, nil)
	_, err := c.Complete(context.Background(), llm.BuildRequest(extract.TextInput("x"), llm.PromptOptions{TextModel: "gpt-4"}))
	var ce *common.CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, common.ReasonTransport, ce.Reason)

	c = NewWithModel(&fakeModel{resp: &llms.ContentResponse{}}, nil)
	_, err = c.Complete(context.Background(), llm.BuildRequest(extract.TextInput("x"), llm.PromptOptions{TextModel: "gpt-4"}))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, common.ReasonMalformed, ce.Reason)
}
