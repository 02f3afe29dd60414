package llm

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// stripFences removes a surrounding markdown code block and any prose
// before the first JSON delimiter.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines)
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		if len(lines) > 1 {
			text = strings.Join(lines[1:endIdx], "\n")
		}
	}
	return strings.TrimSpace(text)
}

// extract returns the outermost span between open and close, or "".
func extract(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// ParseJSONResponse parses a JSON object from an LLM response, handling
// markdown code blocks and surrounding prose.
func ParseJSONResponse(text string) map[string]any {
	body := extract(stripFences(text), '{', '}')
	if body == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		log.Debug().Err(err).Msg("failed to parse LLM response as JSON object")
		return nil
	}
	return result
}

// DecodeArray decodes a JSON array from an LLM response into out.
func DecodeArray(text string, out any) error {
	body := extract(stripFences(text), '[', ']')
	if body == "" {
		return fmt.Errorf("no JSON array in response")
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("parsing JSON array: %w", err)
	}
	return nil
}

// GetString reads a string field, returning "" when missing or mistyped.
func GetString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// GetInt reads a numeric field, returning fallback when missing or mistyped.
func GetInt(m map[string]any, key string, fallback int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

// GetStrings reads a list field. A bare string becomes a one-element list.
func GetStrings(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// GetMap reads a nested object field.
func GetMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}
