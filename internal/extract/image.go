package extract

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/form16-extractor/internal/common"
)

// NeedsConversion reports whether an image MIME type must be converted to PNG first.
func NeedsConversion(mimeType string) bool {
	switch normalizeMIME(mimeType) {
	case "image/heic", "image/heif":
		return true
	}
	return false
}

func normalizeMIME(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// EncodeImage turns uploaded image bytes into the base64 variant of Input.
// The declared MIME type wins when it is an image type; otherwise the bytes are sniffed.
func EncodeImage(content []byte, declaredMIME string) (Input, error) {
	if len(content) == 0 {
		return Input{}, &common.ExtractionError{Reason: "empty image"}
	}
	mt := normalizeMIME(declaredMIME)
	if !strings.HasPrefix(mt, "image/") {
		sniffed := http.DetectContentType(content)
		if !strings.HasPrefix(sniffed, "image/") {
			return Input{}, &common.ExtractionError{Reason: "not an image (" + sniffed + ")"}
		}
		mt = sniffed
	}
	return ImageInput(base64.StdEncoding.EncodeToString(content), mt), nil
}
