package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// extractJSON returns the first complete JSON object or array in a
// response that may contain surrounding text or a markdown fence.
func extractJSON(response string) ([]byte, error) {
	trimmed := strings.TrimSpace(response)
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}

	start := strings.IndexAny(response, "{[")
	if start == -1 {
		return nil, errors.New("no JSON object found in response")
	}

	// Find the matching closing bracket, skipping string contents
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(response); i++ {
		c := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				candidate := []byte(response[start : i+1])
				if !json.Valid(candidate) {
					return nil, errors.New("extracted JSON is malformed")
				}
				return candidate, nil
			}
		}
	}
	return nil, errors.New("no matching closing bracket found")
}
