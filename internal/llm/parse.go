package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
)

var (
	reTextSep  = regexp.MustCompile(`,|\r?\n`)
	reImageSep = regexp.MustCompile(`\r?\n`)
)

// ParseReply binds a free-text reply positionally to FormFields. The text path
// splits on commas and line breaks, the image path on line breaks only. Tokens
// are trimmed and blanks dropped; fewer than five is a *common.ParseError.
// Tokens past the fifth are discarded and no token is format-checked.
func ParseReply(kind constants.InputKind, reply string) (FormFields, error) {
	return newFormFields(SplitReply(kind, reply))
}

// SplitReply returns the trimmed, non-empty tokens of a reply.
func SplitReply(kind constants.InputKind, reply string) []string {
	sep := reTextSep
	if kind == constants.IMAGE {
		sep = reImageSep
	}
	parts := sep.Split(reply, -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func newFormFields(tokens []string) (FormFields, error) {
	if len(tokens) < FieldCount {
		return FormFields{}, &common.ParseError{Found: len(tokens)}
	}
	return FormFields{
		AssessmentYear: tokens[0],
		EmployerName:   tokens[1],
		DeductorTAN:    tokens[2],
		EmployeeName:   tokens[3],
		EmployeePAN:    tokens[4],
	}, nil
}

// ParseStructured handles the json reply format: the reply is sanitized,
// validated against FormFieldsSchema and decoded.
func ParseStructured(reply string) (FormFields, error) {
	doc, _, err := NormalizeAndSanitizeJSON([]byte(reply))
	if err != nil {
		return FormFields{}, &common.ParseError{Cause: err}
	}
	if err := validateFormFields(doc); err != nil {
		return FormFields{}, &common.ParseError{Cause: err}
	}
	var out FormFields
	if err := json.Unmarshal(doc, &out); err != nil {
		return FormFields{}, &common.ParseError{Cause: err}
	}
	return out, nil
}

// Parse dispatches on the reply format a request was built with.
func Parse(req CompletionRequest, reply string) (FormFields, error) {
	if req.ReplyFormat == constants.ReplyJSON {
		return ParseStructured(reply)
	}
	return ParseReply(req.Kind, reply)
}
