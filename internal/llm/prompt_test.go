package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/extract"
)

var testOpts = PromptOptions{TextModel: "gpt-4", VisionModel: "gpt-4-vision-preview"}

func TestBuildRequest_Text(t *testing.T) {
	req := BuildRequest(extract.TextInput("FORM NO. 16"), testOpts)

	assert.Equal(t, constants.PDF, req.Kind)
	assert.Equal(t, "gpt-4", req.Model)
	assert.Equal(t, TextSystemPrompt, req.System)
	assert.Equal(t, ContentText, req.Content.Type)
	assert.Equal(t, "FORM NO. 16", req.Content.Text)
	assert.Zero(t, req.MaxTokens)
	assert.Equal(t, constants.ReplyPositional, req.ReplyFormat)
	assert.Nil(t, req.Schema)
}

func TestBuildRequest_Image(t *testing.T) {
	req := BuildRequest(extract.ImageInput("QUJD", "image/jpeg"), testOpts)

	assert.Equal(t, "gpt-4-vision-preview", req.Model)
	assert.Equal(t, ImageSystemPrompt, req.System)
	assert.Equal(t, DefaultImageMaxTokens, req.MaxTokens)
	assert.Equal(t, "data:image/jpeg;base64,QUJD", req.Content.DataURL())
}

func TestBuildRequest_JSONReplyFormat(t *testing.T) {
	opts := testOpts
	opts.ReplyFormat = constants.ReplyJSON
	req := BuildRequest(extract.TextInput("x"), opts)

	assert.Contains(t, req.System, TextSystemPrompt)
	assert.Contains(t, req.System, "assessmentYear")
	assert.NotNil(t, req.Schema)
}

func TestSystemPromptsListFieldsInOrder(t *testing.T) {
	for _, p := range []string{TextSystemPrompt, ImageSystemPrompt} {
		ay := strings.Index(p, "Assessment year")
		er := strings.Index(p, "Employer Name")
		tan := strings.Index(p, "Deductor TAN")
		en := strings.Index(p, "Employee Name")
		pan := strings.Index(p, "Employee PAN")
		assert.True(t, ay < er && er < tan && tan < en && en < pan)
	}
}

