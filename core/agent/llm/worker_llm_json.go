package llm

import (
	"strconv"
	"strings"
)

// findJSONObject returns the first balanced {...} span in s, honouring string
// literals and escapes, so prose or code fences around the object are ignored.
func findJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
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
				return i, true
			}
		}
	}
	return 0, false
}

// cleanOptional drops placeholder values models emit instead of null.
func cleanOptional(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	switch strings.ToLower(v) {
	case "", "null", "none", "n/a", "na", "unknown", "not specified", "not mentioned":
		return nil
	}
	return &v
}

// parseConfidence accepts numbers and numeric strings; ok is false when absent or unusable.
func parseConfidence(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
		if strings.HasSuffix(strings.TrimSpace(x), "%") {
			f /= 100
		}
	default:
		return 0, false
	}
	// Whole-number scores such as 85 are percentages; 1 < f < 2 is overshoot and clamps to 1.
	if f >= 2 && f <= 100 {
		f /= 100
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return f, true
}
