package intent

import (
	"regexp"
	"sort"
	"strings"
)

// ClassifierResult is the deterministic output of the rule-based
// marketing-intent classifier. No I/O.
type ClassifierResult struct {
	IsMarketing       bool
	Confidence        float64
	Reason            string
	MatchedCategories []string
}

// Weighted keyword categories. Scores accumulate per matched category; the
// weights reflect how strongly a category signals marketing intent.
var keywordCategories = map[string]struct {
	weight   float64
	keywords []string
}{
	"action":    {0.30, []string{"推广", "营销", "宣传", "投放", "引流", "获客", "种草", "带货", "曝光"}},
	"content":   {0.25, []string{"文案", "方案", "脚本", "标题", "软文", "海报", "视频", "图文", "内容"}},
	"platform":  {0.20, []string{"b站", "小红书", "抖音", "微博", "微信", "公众号", "视频号", "快手", "知乎"}},
	"growth":    {0.20, []string{"涨粉", "转化", "复购", "留存", "拉新", "销量", "gmv", "roi", "转发"}},
	"ip":        {0.20, []string{"人设", "个人ip", "品牌形象", "账号定位", "博主", "达人", "kol", "koc"}},
	"strategy":  {0.20, []string{"策略", "定位", "打法", "节奏", "预算", "目标人群", "用户画像", "竞品"}},
	"question":  {0.10, []string{"怎么", "如何", "能不能", "有没有", "什么样", "帮我"}},
	"operation": {0.15, []string{"运营", "选题", "排期", "矩阵", "私域", "直播", "社群", "活动"}},
}

// Strong patterns short-circuit with high confidence.
var strongPatterns = []struct {
	re         *regexp.Regexp
	confidence float64
	reason     string
}{
	{regexp.MustCompile(`帮我?写(一篇|一个|个|份)?.{0,12}(方案|文案|脚本|标题|软文)`), 0.92, "明确的创作请求"},
	{regexp.MustCompile(`(怎么|如何).{0,10}(推广|营销|宣传|引流|涨粉)`), 0.90, "推广方法咨询"},
	{regexp.MustCompile(`打造.{0,8}(个人)?ip`), 0.88, "IP 打造诉求"},
	{regexp.MustCompile(`(产品|品牌).{0,12}(推广|营销|上新|发布)`), 0.85, "品牌推广诉求"},
}

// Small-talk markers reduce the score — greetings and chit-chat.
var smallTalkMarkers = []string{
	"你好", "您好", "谢谢", "再见", "早上好", "晚上好", "哈哈", "在吗", "辛苦了", "没事",
}

// marketingThreshold is the non-marketing cutoff used by the processor: a
// score below it with high classifier confidence routes to casual chat.
const (
	marketingThreshold    = 0.35
	nonMarketingConfident = 0.75
)

// ClassifyMarketingIntent scores the text (and optional recent history)
// against the keyword categories and strong patterns.
func ClassifyMarketingIntent(text string, history []string) ClassifierResult {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return ClassifierResult{Confidence: 1.0, Reason: "空输入"}
	}

	for _, p := range strongPatterns {
		if p.re.MatchString(normalized) {
			return ClassifierResult{
				IsMarketing:       true,
				Confidence:        p.confidence,
				Reason:            p.reason,
				MatchedCategories: []string{"strong_pattern"},
			}
		}
	}

	// Recent history contributes context at half weight: a short follow-up
	// like "换个角度" inherits the thread's marketing framing.
	score := scoreCategories(normalized, 1.0)
	matched := matchedCategories(normalized)
	for _, h := range history {
		score += scoreCategories(strings.ToLower(h), 0.5) * 0.3
	}

	// Co-occurrence bonus: multiple distinct categories together are a much
	// stronger signal than one repeated keyword.
	if len(matched) >= 2 {
		score += 0.15
	}
	if len(matched) >= 3 {
		score += 0.10
	}

	for _, marker := range smallTalkMarkers {
		if strings.Contains(normalized, marker) {
			score -= 0.20
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	if score >= marketingThreshold {
		return ClassifierResult{
			IsMarketing:       true,
			Confidence:        score,
			Reason:            "关键词组合命中营销类别: " + strings.Join(matched, ","),
			MatchedCategories: matched,
		}
	}
	return ClassifierResult{
		IsMarketing:       false,
		Confidence:        1 - score,
		Reason:            "未命中营销意图特征",
		MatchedCategories: matched,
	}
}

func scoreCategories(text string, factor float64) float64 {
	score := 0.0
	for _, cat := range keywordCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(text, kw) {
				score += cat.weight * factor
				break
			}
		}
	}
	return score
}

func matchedCategories(text string) []string {
	matched := make([]string, 0, 4)
	for name, cat := range keywordCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, name)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}
