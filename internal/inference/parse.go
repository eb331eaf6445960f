package inference

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Iron-Ham/foundry/internal/errors"
)

// Parsing errors
var (
	ErrEmptyOutput = errors.New("model returned no output")
	ErrNoPayload   = errors.New("no JSON payload found in model output")
	ErrInvalidJSON = errors.New("invalid JSON in model output")
)

var tagPatterns = map[string]*regexp.Regexp{}

func tagPattern(tag string) *regexp.Regexp {
	if re, ok := tagPatterns[tag]; ok {
		return re
	}
	return regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(tag) + `>\s*(.*?)\s*</` + regexp.QuoteMeta(tag) + `>`)
}

func init() {
	for _, tag := range []string{"evaluation", "synthesis", "panel", "summary", "prd", "artifact"} {
		tagPatterns[tag] = tagPattern(tag)
	}
}

// extractTag returns the trimmed content of the first non-empty <tag> block.
func extractTag(output, tag string) (string, bool) {
	for _, m := range tagPattern(tag).FindAllStringSubmatch(output, -1) {
		if content := strings.TrimSpace(m[1]); content != "" {
			return content, true
		}
	}
	return "", false
}

// decodeTagged decodes the JSON inside <tag> into v. Without a tag, or when
// the tagged content is malformed, it falls back to the first balanced JSON
// value in the output, skipping code fences.
func decodeTagged(output, tag string, v any) error {
	if content, ok := extractTag(output, tag); ok {
		content = stripFence(content)
		if err := json.Unmarshal([]byte(content), v); err == nil {
			return nil
		}
		if candidate, ok := firstJSONValue(content); ok {
			if err := json.Unmarshal([]byte(candidate), v); err == nil {
				return nil
			}
		}
		return fmt.Errorf("%w: <%s> block", ErrInvalidJSON, tag)
	}

	candidate, ok := firstJSONValue(output)
	if !ok {
		return fmt.Errorf("%w: expected <%s>", ErrNoPayload, tag)
	}
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// firstJSONValue finds the first balanced {...} or [...] in s, respecting
// string literals.
func firstJSONValue(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	for start >= 0 {
		if end, ok := matchBracket(s, start); ok {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexAny(s[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBracket(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// textPayload returns the content of <tag> if present, else the whole output.
func textPayload(output, tag string) (string, error) {
	if content, ok := extractTag(output, tag); ok {
		return content, nil
	}
	out := strings.TrimSpace(output)
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}
