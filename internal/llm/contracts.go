package llm

import (
	"context"

	"github.com/joseph-ayodele/form16-extractor/constants"
)

// FormFields is the five-value record extracted from a Form 16. It is only ever
// built from at least five parsed tokens; see newFormFields.
type FormFields struct {
	AssessmentYear string `json:"assessmentYear"`
	EmployerName   string `json:"employerName"`
	DeductorTAN    string `json:"deductorTAN"`
	EmployeeName   string `json:"employeeName"`
	EmployeePAN    string `json:"employeePAN"`
}

// FieldCount is the number of positional values a reply must carry.
const FieldCount = 5

// ContentType distinguishes the single user content item of a request.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
)

// Content is the user message: plain text or a base64 image.
type Content struct {
	Type        ContentType
	Text        string
	ImageBase64 string
	MIMEType    string
}

// DataURL renders an image content item as a data: URL.
func (c Content) DataURL() string {
	if c.Type != ContentImage {
		return ""
	}
	mt := c.MIMEType
	if mt == "" {
		mt = "image/png"
	}
	return "data:" + mt + ";base64," + c.ImageBase64
}

// CompletionRequest is always single-turn: one system prompt and one user content item.
type CompletionRequest struct {
	Kind        constants.InputKind
	Model       string
	System      string
	Content     Content
	MaxTokens   int // 0 = provider default
	Temperature float32
	ReplyFormat constants.ReplyFormat
	Schema      map[string]any // set only for the json reply format
}

// Completer submits one request to a chat-completion API and returns the raw
// text of the first choice. Failures are *common.CompletionError.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
