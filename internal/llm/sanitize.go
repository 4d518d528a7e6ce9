package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

var (
	reFence    = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*(.*?)\\s*```\\s*$")
	reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
)

// keySynonyms maps squashed lowercase keys the model tends to emit to our schema keys.
var keySynonyms = map[string]string{
	"assessmentyear": "assessmentYear",
	"ay":             "assessmentYear",
	"employername":   "employerName",
	"employer":       "employerName",
	"nameofemployer": "employerName",
	"deductortan":    "deductorTAN",
	"tanofdeductor":  "deductorTAN",
	"tan":            "deductorTAN",
	"employeename":   "employeeName",
	"employee":       "employeeName",
	"nameofemployee": "employeeName",
	"employeepan":    "employeePAN",
	"panofemployee":  "employeePAN",
	"pan":            "employeePAN",
}

// StripCodeFence removes a surrounding ```json ... ``` block if present.
func StripCodeFence(s string) string {
	if m := reFence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}

// NormalizeAndSanitizeJSON
// - Strips markdown code fences
// - Renames known synonyms (assessment_year -> assessmentYear)
// - Coerces numbers to strings and trims string values
// - Removes unknown keys (strict additionalProperties = false friendliness)
//
// It returns the cleaned document and the list of keys it dropped or renamed.
func NormalizeAndSanitizeJSON(raw []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(StripCodeFence(string(raw))), &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	out := make(map[string]any, len(m))
	dropped := make([]string, 0, 4)
	keys := slices.Sorted(maps.Keys(m))
	// exact schema keys win over synonyms
	for _, exact := range []bool{true, false} {
		for _, k := range keys {
			canon, ok := keySynonyms[reNonAlnum.ReplaceAllString(strings.ToLower(k), "")]
			if !ok {
				if !exact {
					dropped = append(dropped, k+"(unknown)")
				}
				continue
			}
			if (canon == k) != exact {
				continue
			}
			if _, exists := out[canon]; exists {
				dropped = append(dropped, k+"(duplicate)")
				continue
			}
			if !exact {
				dropped = append(dropped, k+"->"+canon)
			}
			switch t := m[k].(type) {
			case string:
				if s := strings.TrimSpace(t); s != "" {
					out[canon] = s
				}
			case float64:
				out[canon] = fmt.Sprintf("%v", t)
			case nil:
				dropped = append(dropped, k+"(null)")
			default:
				dropped = append(dropped, k+"(type)")
			}
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return b, dropped, nil
}
