package narrative

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONObject is returned when a response holds no decodable JSON object.
var ErrNoJSONObject = errors.New("response contains no JSON object")

// ExtractObject decodes a model response. Responses wrapped in prose or code
// fences are recovered from the first balanced {...} span.
func ExtractObject(content string) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &obj); err == nil && obj != nil {
		return obj, nil
	}

	span, ok := firstBalancedObject(content)
	if !ok {
		return nil, ErrNoJSONObject
	}
	if err := json.Unmarshal([]byte(span), &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSONObject, err)
	}
	return obj, nil
}

func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
