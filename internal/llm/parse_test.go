package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name  string
		kind  constants.InputKind
		reply string
		want  FormFields
		found int // -1 when parsing must succeed
	}{
		{
			name:  "comma separated with extras",
			kind:  constants.PDF,
			reply: "2023-24, Acme Corp, TAN123, Jane Doe, PAN456, extra",
			want:  FormFields{"2023-24", "Acme Corp", "TAN123", "Jane Doe", "PAN456"},
			found: -1,
		},
		{
			name:  "mixed commas and newlines on the text path",
			kind:  constants.PDF,
			reply: "2023-24\nAcme Corp,TAN123\r\n Jane Doe \n PAN456",
			want:  FormFields{"2023-24", "Acme Corp", "TAN123", "Jane Doe", "PAN456"},
			found: -1,
		},
		{
			name:  "image path keeps commas inside values",
			kind:  constants.IMAGE,
			reply: "2023-24\nAcme Corp, Pune Branch\nTAN123\nDoe, Jane\nPAN456\n",
			want:  FormFields{"2023-24", "Acme Corp, Pune Branch", "TAN123", "Doe, Jane", "PAN456"},
			found: -1,
		},
		{
			name:  "blank lines are dropped",
			kind:  constants.IMAGE,
			reply: "\n2023-24\n\n\nAcme\nTAN\n   \nJane\nPAN",
			want:  FormFields{"2023-24", "Acme", "TAN", "Jane", "PAN"},
			found: -1,
		},
		{
			name:  "refusal text",
			kind:  constants.PDF,
			reply: "Not a Form 16",
			found: 1,
		},
		{
			name:  "image refusal with a comma stays one token",
			kind:  constants.IMAGE,
			reply: "Sorry, the form is not recognized.",
			found: 1,
		},
		{
			name:  "empty reply",
			kind:  constants.PDF,
			reply: "   ",
			found: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.kind, tt.reply)
			if tt.found < 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrParse)
			var pe *common.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.found, pe.Found)
			assert.Equal(t, FormFields{}, got)
		})
	}
}

func TestParseStructured(t *testing.T) {
	reply := "```json\n{\"assessment_year\": \"2023-24\", \"employerName\": \" Acme \", \"TAN\": \"TAN123\", " +
		"\"employeeName\": \"Jane Doe\", \"employeePAN\": \"PAN456\", \"confidence\": 0.9}\n```"
	got, err := ParseStructured(reply)
	require.NoError(t, err)
	assert.Equal(t, FormFields{"2023-24", "Acme", "TAN123", "Jane Doe", "PAN456"}, got)

	_, err = ParseStructured(`{"error": "form not recognized"}`)
	assert.ErrorIs(t, err, common.ErrParse)

	_, err = ParseStructured("Not a Form 16")
	assert.ErrorIs(t, err, common.ErrParse)
}

func TestParse_DispatchesOnReplyFormat(t *testing.T) {
	_, err := Parse(CompletionRequest{Kind: constants.PDF, ReplyFormat: constants.ReplyJSON}, "a, b, c, d, e")
	assert.ErrorIs(t, err, common.ErrParse)

	got, err := Parse(CompletionRequest{Kind: constants.PDF}, "a, b, c, d, e")
	require.NoError(t, err)
	assert.Equal(t, "e", got.EmployeePAN)
}

func TestNormalizeAndSanitizeJSON_ExactKeysWin(t *testing.T) {
	out, dropped, err := NormalizeAndSanitizeJSON([]byte(`{"pan": "X", "employeePAN": "Y", "ay": 2024}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"employeePAN": "Y", "assessmentYear": "2024"}`, string(out))
	assert.Contains(t, dropped, "pan(duplicate)")
	assert.Contains(t, dropped, "ay->assessmentYear")
}
