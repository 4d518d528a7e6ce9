package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/form16-extractor/constants"
)

// Input is what the prompt builder receives: exactly one of Text or
// ImageBase64 is populated, selected by Kind.
type Input struct {
	Kind        constants.InputKind
	Text        string
	ImageBase64 string
	MIMEType    string
}

// TextInput builds the PDF-path variant.
func TextInput(text string) Input {
	return Input{Kind: constants.PDF, Text: text}
}

// ImageInput builds the image-path variant.
func ImageInput(b64, mimeType string) Input {
	return Input{Kind: constants.IMAGE, ImageBase64: b64, MIMEType: mimeType}
}

// DataURL renders the image variant the way chat-completion APIs accept it.
func (in Input) DataURL() string {
	if in.Kind != constants.IMAGE {
		return ""
	}
	mt := in.MIMEType
	if mt == "" {
		mt = "image/png"
	}
	return "data:" + mt + ";base64," + in.ImageBase64
}

// TextExtractor is Stage 1 on the PDF path: bytes -> text.
type TextExtractor interface {
	ExtractText(ctx context.Context, content []byte) (Result, error)
}

// ImageConverter re-encodes image formats chat-completion APIs reject (HEIC/HEIF) as PNG.
type ImageConverter interface {
	ToPNG(ctx context.Context, content []byte) ([]byte, error)
}

// Result summarizes a PDF text extraction.
type Result struct {
	Text     string
	Pages    int
	Method   string // "pdf-text" | "pdf-ocr"
	Duration time.Duration
	Warnings []string
}
