package agent

import (
	"encoding/json"
	"strings"
)

// FallbackReply is returned when a backend answer parses to structured
// data too complex to show a user.
const FallbackReply = "I got the data, but I need to format it better. Could you ask me again?"

// textFields is the priority order of keys the backend tends to wrap
// its prose in.
var textFields = []string{"message", "response", "answer", "text", "reply"}

// Normalize turns a backend reply into plain user-facing prose. The
// backend answers with plain text, text fenced in a code block, or text
// wrapped in one or two layers of JSON encoding; all three shapes must
// come out as the same sentence. A reply that parses to nested
// structured data is replaced with FallbackReply rather than dumped at
// the user.
//
// Deciding "is this conversational" by inspecting nested value types is
// a best-effort heuristic: a legitimate short structured answer would
// be misclassified. Both the chat-answer path and the tool-phrasing
// path go through this one function.
func Normalize(raw string) string {
	text := stripFences(strings.TrimSpace(raw))

	v, ok := parseJSON(text)
	if !ok {
		return text
	}

	// unwrap up to two layers of string-encoded JSON
	for i := 0; i < 2; i++ {
		inner, isString := v.(string)
		if !isString {
			break
		}
		iv, ok := parseJSON(stripFences(strings.TrimSpace(inner)))
		if !ok {
			return strings.TrimSpace(inner)
		}
		v = iv
	}

	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		return flattenObject(val)
	case []any:
		return FallbackReply
	default:
		// numbers and booleans parse as JSON but read fine as text
		return text
	}
}

// flattenObject extracts the conversational sentence out of a parsed
// object, or gives up with FallbackReply.
func flattenObject(m map[string]any) string {
	for _, v := range m {
		switch v.(type) {
		case map[string]any, []any:
			return FallbackReply
		}
	}
	for _, field := range textFields {
		if s, ok := m[field].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	if len(m) == 1 {
		for _, v := range m {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return FallbackReply
}

// stripFences removes a leading ```/```json marker line and a trailing
// ``` marker.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseJSON(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
