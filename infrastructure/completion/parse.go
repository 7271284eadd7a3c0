package completion

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON indicates no JSON object could be recovered from a reply.
var ErrNoJSON = errors.New("no JSON object in completion")

// StripFences removes a surrounding Markdown code fence, with or without
// a language tag, and trims whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "bash", ...).
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, " {[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractJSON returns the text between the first '{' and the last '}'.
func ExtractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// DecodeJSON decodes a completion into v. It accepts bare JSON, fenced
// JSON, and JSON embedded in prose.
func DecodeJSON(s string, v any) error {
	s = StripFences(s)
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	obj, ok := ExtractJSON(s)
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}
