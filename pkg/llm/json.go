package llm

import "strings"

// ExtractJSON strips fenced code markers and surrounding prose from a model
// reply, returning the innermost JSON object or array text. Models routinely
// wrap JSON in ```json fences or prefix it with commentary; parse
// defensively rather than trusting the format.
func ExtractJSON(reply string) string {
	s := strings.TrimSpace(reply)

	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	open := s[start]
	var close byte
	if open == '{' {
		close = '}'
	} else {
		close = ']'
	}
	if end := strings.LastIndexByte(s, close); end > start {
		return s[start : end+1]
	}
	return s[start:]
}
