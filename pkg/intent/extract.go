package intent

import (
	"regexp"
	"strings"
)

// Self-introduction patterns worth persisting to long-term memory even on
// casual turns.
var (
	nameRe     = regexp.MustCompile(`我叫([\p{Han}A-Za-z0-9·]{1,12})`)
	businessRe = regexp.MustCompile(`我是做(.{1,20}?)的`)
	identityRe = regexp.MustCompile(`我是([\p{Han}A-Za-z0-9·]{1,16}?)(公司|品牌|工作室|博主|主理人)`)
)

// ExtractSelfIntro pulls a self-introduction out of casual or free-form
// text. Returns "" when nothing worth remembering is present.
func ExtractSelfIntro(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	parts := make([]string, 0, 2)
	if m := nameRe.FindStringSubmatch(text); m != nil {
		parts = append(parts, "用户名叫"+m[1])
	}
	if m := businessRe.FindStringSubmatch(text); m != nil {
		parts = append(parts, "从事"+m[1]+"行业")
	} else if m := identityRe.FindStringSubmatch(text); m != nil {
		parts = append(parts, "身份: "+m[1]+m[2])
	}
	return strings.Join(parts, "，")
}
