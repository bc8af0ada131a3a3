package llm

import "fmt"

// ExtractJSON returns the first balanced JSON object or array embedded in s.
// Models sometimes wrap JSON in markdown fences or prose; this strips the
// surrounding text without attempting to repair the JSON itself.
func ExtractJSON(s string) (string, error) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("no JSON object or array found in response")
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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unterminated JSON in response")
}
