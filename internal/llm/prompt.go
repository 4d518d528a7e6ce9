package llm

import (
	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/extract"
)

// The two system prompts below are part of the parsing contract in parse.go:
// the parser binds reply tokens positionally in exactly this field order.
// Editing either text is a breaking change.
const (
	TextSystemPrompt = "You are a document processing AI. Your task is to analyze pages of Form 16 and extract specific numerical values. " +
		"If the page does not contain Form 16 or if the required information is not present, respond with a clear message indicating that " +
		"the form is not recognized or the required information cannot be found.\n\n" +
		"Extract the following numerical values from the Form 16 in the format:\n\n" +
		"Assessment year:\nEmployer Name:\n Deductor TAN:\nEmployee Name:\nEmployee PAN:\n" +
		" I do not need the titles or labels for the above fields , only the numerical values are needed in the same order."

	ImageSystemPrompt = "You are a document processing AI. Your task is to analyze images of Form 16 and extract specific numerical values. " +
		"If the image does not contain Form 16 or if the required information is not present, respond with a clear message indicating that " +
		"the form is not recognized or the required information cannot be found.\n\n" +
		"Extract the following numerical values from the Form 16 in the following format:\n\n" +
		"Assessment year:\nEmployer Name:\nDeductor TAN:\nEmployee Name:\nEmployee PAN:\n\n" +
		" I don't need the titles , only the numerical values in the particular order as above."

	jsonReplyInstruction = "\n\nReturn ONLY a JSON object with exactly these string keys: " +
		"assessmentYear, employerName, deductorTAN, employeeName, employeePAN. " +
		"If the document is not a Form 16, return {\"error\": \"form not recognized\"}."
)

// DefaultImageMaxTokens is the reply budget on the vision path.
const DefaultImageMaxTokens = 1000

// PromptOptions carries the model selection for each path.
type PromptOptions struct {
	TextModel      string
	VisionModel    string
	ImageMaxTokens int
	Temperature    float32
	ReplyFormat    constants.ReplyFormat
}

// BuildRequest turns an extraction input into a single-turn completion request.
func BuildRequest(in extract.Input, opts PromptOptions) CompletionRequest {
	if opts.ReplyFormat == "" {
		opts.ReplyFormat = constants.ReplyPositional
	}

	req := CompletionRequest{
		Kind:        in.Kind,
		Temperature: opts.Temperature,
		ReplyFormat: opts.ReplyFormat,
	}

	switch in.Kind {
	case constants.IMAGE:
		req.Model = opts.VisionModel
		req.System = ImageSystemPrompt
		req.Content = Content{Type: ContentImage, ImageBase64: in.ImageBase64, MIMEType: in.MIMEType}
		req.MaxTokens = opts.ImageMaxTokens
		if req.MaxTokens <= 0 {
			req.MaxTokens = DefaultImageMaxTokens
		}
	default:
		req.Model = opts.TextModel
		req.System = TextSystemPrompt
		req.Content = Content{Type: ContentText, Text: in.Text}
	}

	if opts.ReplyFormat == constants.ReplyJSON {
		req.System += jsonReplyInstruction
		req.Schema = FormFieldsSchema()
	}
	return req
}

// SystemPromptFor exposes the fixed prompt for a kind (used by the CLI's dry-run output).
func SystemPromptFor(kind constants.InputKind) string {
	if kind == constants.IMAGE {
		return ImageSystemPrompt
	}
	return TextSystemPrompt
}
