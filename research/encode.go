package research

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// decodeJSON unmarshals model output into T. Code fences, prose around the
// outermost JSON object and trailing commas are tolerated. A bare null is
// rejected.
func decodeJSON[T any](raw string) (*T, error) {
	clean := sanitizeJSON(raw)
	if clean == "null" {
		return nil, fmt.Errorf("decode JSON: null document")
	}
	var out T
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		var retry T
		if json.Unmarshal([]byte(trailingComma.ReplaceAllString(clean, "$1")), &retry) != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
		out = retry
	}
	return &out, nil
}

func sanitizeJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[idx+3:]
		trimmed = strings.TrimPrefix(trimmed, "json")
		trimmed = strings.TrimPrefix(trimmed, "JSON")
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}
