package ports

import (
	"fmt"
	"strings"
)

// FormatResultsAsContext renders search results as a numbered reference block
// for prompt injection. Empty input yields "".
func FormatResultsAsContext(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "检索到 %d 条网页结果：\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s", i+1, r.Title)
		if r.Source != "" {
			fmt.Fprintf(&sb, "（%s）", r.Source)
		}
		sb.WriteString("\n")
		if r.Snippet != "" {
			sb.WriteString("   ")
			sb.WriteString(r.Snippet)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
