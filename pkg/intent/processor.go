// Package intent normalizes a user utterance into a ProcessedInput: command
// detection, rule pre-filtering, LLM classification, and hard corrections.
// Classification never fails a request — every error path degrades to
// free_discussion with empty structured data.
package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/models"
)

var commandRe = regexp.MustCompile(`^/(\w+)(?:/\w+)*(?:\s|$)`)

// shortCasualReplies is the closed set of short utterances answered without
// any LLM call. All entries are ≤8 characters after normalization.
var shortCasualReplies = map[string]struct{}{
	"你好": {}, "您好": {}, "hi": {}, "hello": {}, "嗨": {}, "哈喽": {},
	"在吗": {}, "在不在": {}, "谢谢": {}, "谢谢你": {}, "多谢": {},
	"好的": {}, "好": {}, "嗯": {}, "嗯嗯": {}, "行": {}, "可以": {}, "没问题": {},
	"再见": {}, "拜拜": {}, "晚安": {}, "早上好": {}, "晚上好": {},
	"哈哈": {}, "哈哈哈": {}, "牛": {}, "厉害": {}, "辛苦了": {},
}

// explicitContentPhrases rule-derive explicit_content_request; a hit
// overrides whatever the LLM answered.
var explicitContentPhrases = []string{
	"生成", "写一篇", "写一个", "写一份", "写个", "帮我写", "给我写",
	"来一篇", "来一份", "出一篇", "出一版", "创作", "起个标题", "起标题",
}

// structured-request upgrade rules: brand/product/topic co-occurrence
// markers and strong patterns.
var (
	brandMarkerRe   = regexp.MustCompile(`(品牌|我们家|我司|本店|旗下)`)
	productMarkerRe = regexp.MustCompile(`(产品|商品|新品|服务|app|小程序)`)
	topicMarkerRe   = regexp.MustCompile(`(主题|话题|活动|节日|热点)`)

	structuredStrongRes = []*regexp.Regexp{
		regexp.MustCompile(`(推广|营销|宣传).{0,16}(目标人群|人群|用户|受众)`),
		regexp.MustCompile(`产品是.{1,24}`),
		regexp.MustCompile(`(帮我?|给我?)(做|出|写).{0,10}(推广|营销|传播)方案`),
	}
)

// marketingUpgradeKeywords promote a casual_chat verdict to free_discussion
// when the text clearly talks business.
var marketingUpgradeKeywords = []string{
	"推广", "营销", "文案", "方案", "品牌", "产品", "涨粉", "引流", "运营", "投放",
}

// classification is the strict JSON object requested from the LLM.
type classification struct {
	Intent                 string `json:"intent"`
	BrandName              string `json:"brand_name"`
	ProductDesc            string `json:"product_desc"`
	Topic                  string `json:"topic"`
	Command                string `json:"command"`
	ExplicitContentRequest bool   `json:"explicit_content_request"`
}

const classifyPrompt = `你是营销助手的意图识别模块。根据用户输入和最近对话，输出严格的 JSON 对象（不要输出其他内容）：
{"intent": "structured_request|free_discussion|casual_chat|document_query|command",
 "brand_name": "", "product_desc": "", "topic": "",
 "command": "", "explicit_content_request": false}
判断规则：
- structured_request：带品牌/产品/主题等结构化要素的营销请求
- free_discussion：开放式的营销讨论或咨询
- casual_chat：寒暄闲聊
- document_query：明确针对已上传文档提问
- explicit_content_request：用户明确要求生成/撰写内容时为 true`

// Processor classifies utterances. The zero value is not usable; construct
// with NewProcessor.
type Processor struct {
	llm llm.Invoker
}

// NewProcessor creates an intent processor over the LLM router.
func NewProcessor(invoker llm.Invoker) *Processor {
	return &Processor{llm: invoker}
}

// Process runs the full normalization pipeline. recentContext carries the
// normalized conversation transcript only — never document or link content.
func (p *Processor) Process(ctx context.Context, rawQuery, sessionID, userID string, recentContext []string) models.ProcessedInput {
	out := models.ProcessedInput{
		Intent:    models.IntentFreeDiscussion,
		RawQuery:  rawQuery,
		SessionID: sessionID,
		UserID:    userID,
	}

	query := strings.TrimSpace(rawQuery)
	if query == "" {
		out.Intent = models.IntentCasualChat
		return out
	}
	out.RawQuery = query

	// 命令入口：/new_chat 等
	if m := commandRe.FindStringSubmatch(query); m != nil {
		out.Intent = models.IntentCommand
		out.Command = m[1]
		return out
	}

	// 短寒暄直接短路，不调用模型
	if isShortCasual(query) {
		out.Intent = models.IntentCasualChat
		out.StructuredData.SelfIntro = ExtractSelfIntro(query)
		return out
	}

	// 规则预过滤：高置信度的非营销输入走闲聊
	verdict := ClassifyMarketingIntent(query, recentContext)
	if !verdict.IsMarketing && verdict.Confidence >= nonMarketingConfident {
		out.Intent = models.IntentCasualChat
		out.ExplicitContentRequest = false
		out.StructuredData.SelfIntro = ExtractSelfIntro(query)
		return out
	}

	cls, err := p.classify(ctx, query, recentContext)
	if err != nil {
		slog.Warn("Intent classification failed, defaulting to free_discussion", "error", err)
		cls = &classification{Intent: string(models.IntentFreeDiscussion)}
	}

	out.Intent = normalizeIntent(cls.Intent)
	out.Command = cls.Command
	out.StructuredData.BrandName = strings.TrimSpace(cls.BrandName)
	out.StructuredData.ProductDesc = strings.TrimSpace(cls.ProductDesc)
	out.StructuredData.Topic = strings.TrimSpace(cls.Topic)
	out.ExplicitContentRequest = cls.ExplicitContentRequest

	p.applyCorrections(&out, query)

	// 规则推导 explicit_content_request，命中时覆盖模型判断
	if hasExplicitContentPhrase(query) {
		out.ExplicitContentRequest = true
	}

	if out.Intent == models.IntentCasualChat || out.Intent == models.IntentFreeDiscussion {
		if intro := ExtractSelfIntro(query); intro != "" {
			out.StructuredData.SelfIntro = intro
		}
	}

	return out
}

// classify asks the planning role (low complexity) for a strict JSON object.
func (p *Processor) classify(ctx context.Context, query string, recentContext []string) (*classification, error) {
	var sb strings.Builder
	sb.WriteString("最近对话：\n")
	for _, line := range recentContext {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n用户输入：")
	sb.WriteString(query)

	reply, err := p.llm.Invoke(ctx, []llm.Message{
		llm.System(classifyPrompt),
		llm.User(sb.String()),
	}, llm.TaskPlanning, llm.ComplexityLow)
	if err != nil {
		return nil, err
	}

	var cls classification
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &cls); err != nil {
		return nil, err
	}
	return &cls, nil
}

// applyCorrections applies the hard correction rules in order:
//  1. re-apply the short-casual rule
//  2. casual_chat with marketing keywords upgrades to free_discussion
//  3. free_discussion matching structured-request rules upgrades to
//     structured_request
func (p *Processor) applyCorrections(out *models.ProcessedInput, query string) {
	if isShortCasual(query) {
		out.Intent = models.IntentCasualChat
		return
	}

	if out.Intent == models.IntentCasualChat && looksMarketing(query) {
		slog.Info("Intent corrected: casual_chat → free_discussion", "reason", "marketing keywords present")
		out.Intent = models.IntentFreeDiscussion
	}

	if out.Intent == models.IntentFreeDiscussion && matchesStructuredRules(query) {
		slog.Info("Intent corrected: free_discussion → structured_request", "reason", "structured markers present")
		out.Intent = models.IntentStructuredRequest
	}
}

func normalizeIntent(s string) models.Intent {
	switch models.Intent(strings.TrimSpace(s)) {
	case models.IntentStructuredRequest:
		return models.IntentStructuredRequest
	case models.IntentCasualChat:
		return models.IntentCasualChat
	case models.IntentDocumentQuery:
		return models.IntentDocumentQuery
	case models.IntentCommand:
		return models.IntentCommand
	default:
		return models.IntentFreeDiscussion
	}
}

func isShortCasual(query string) bool {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = strings.Trim(normalized, "!！。.~？?")
	if len([]rune(normalized)) > 8 {
		return false
	}
	_, ok := shortCasualReplies[normalized]
	return ok
}

func looksMarketing(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range marketingUpgradeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	// 产品描述式表达（如"我们的降噪耳机"）同样视为营销语境
	return productMarkerRe.MatchString(lower)
}

func matchesStructuredRules(query string) bool {
	lower := strings.ToLower(query)
	for _, re := range structuredStrongRes {
		if re.MatchString(lower) {
			return true
		}
	}
	brand := brandMarkerRe.MatchString(lower)
	product := productMarkerRe.MatchString(lower)
	topic := topicMarkerRe.MatchString(lower)
	return (brand && product) || (brand && topic)
}

func hasExplicitContentPhrase(query string) bool {
	for _, phrase := range explicitContentPhrases {
		if strings.Contains(query, phrase) {
			return true
		}
	}
	return false
}
