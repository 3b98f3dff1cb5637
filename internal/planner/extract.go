package planner

import (
	"encoding/json"
	"strings"
)

// Extract pulls the first JSON object out of a backend reply. A fenced
// ` ```json ` block is preferred; otherwise the first balanced {...}
// substring anywhere in the text is tried. Absence of a plan is an
// expected outcome, not an error: the caller treats it as retryable.
func Extract(raw string) (map[string]any, bool) {
	if candidate, ok := fencedObject(raw); ok {
		return parseObject(candidate)
	}
	if candidate, ok := balancedObject(raw); ok {
		return parseObject(candidate)
	}
	return nil, false
}

// fencedObject returns the first balanced object inside a ```json fence.
func fencedObject(text string) (string, bool) {
	start := strings.Index(text, fence+"json")
	if start < 0 {
		return "", false
	}
	body := text[start+len(fence)+4:]
	end := strings.Index(body, fence)
	if end < 0 {
		return "", false
	}
	return balancedObject(body[:end])
}

// balancedObject scans from the first '{' tracking brace depth, string
// boundaries, and escapes, and returns the substring that closes the
// opening brace. A greedy first-to-last-brace match would glue together
// unrelated objects whenever the reply contains more than one.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			if inString {
				escaped = true
			}
		case c == '"':
			inString = !inString
		case inString:
			// string contents are opaque
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func parseObject(candidate string) (map[string]any, bool) {
	var plan map[string]any
	if err := json.Unmarshal([]byte(candidate), &plan); err != nil {
		return nil, false
	}
	if plan == nil {
		return nil, false
	}
	return plan, true
}
