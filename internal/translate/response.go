package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var fenceRegex = regexp.MustCompile("```(?:json)?\\s*")

// finds the first JSON value in a model reply that decodes to items, either
// a bare array or an object wrapping one
func parseItems(response string) ([]Item, error) {
	text := strings.TrimSpace(fenceRegex.ReplaceAllString(response, ""))
	text = strings.ReplaceAll(text, "```", "")
	text = escapeStrayBackslashes(text)

	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err != nil {
			continue
		}
		if items, ok := decodeItems(raw); ok {
			return items, nil
		}
	}
	return nil, fmt.Errorf("no translation JSON in response: %s", truncate(text, 200))
}

func decodeItems(raw json.RawMessage) ([]Item, bool) {
	var items []Item
	if err := json.Unmarshal(raw, &items); err == nil && hasText(items) {
		return items, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	for _, key := range []string{"results", "translations", "items", "data"} {
		if field, ok := wrapper[key]; ok {
			if err := json.Unmarshal(field, &items); err == nil && hasText(items) {
				return items, true
			}
		}
	}
	return nil, false
}

func hasText(items []Item) bool {
	for _, it := range items {
		if it.Text != "" {
			return true
		}
	}
	return false
}

// models copy ASS style \N line breaks verbatim, which is not valid JSON
func escapeStrayBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
			b.WriteByte(s[i])
		default:
			b.WriteString(`\\`)
		}
		b.WriteByte(s[i+1])
		i++
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var errEmptyResponse = errors.New("empty response")
