package narrative

import (
	"context"
	"log/slog"
	"strings"

	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/models"
)

const stepLinePrefix = "STEP:"

const advisorPrompt = `你是营销助手的后续建议模块。根据本轮结果，判断是否还有可提供的能力：
- 如有，输出一句自然的下一步提议（例如"如果你愿意，我可以帮你再生成一版更适合 B 站的文案。"），并在单独一行输出 STEP: generate 或 STEP: analyze
- 如无，输出一句收尾语，不带 STEP 行
每轮最多一个建议。`

// Suggestion is the advisor's output: user-visible text plus the suggested
// next step ("generate", "analyze", or "" for a terminal remark).
type Suggestion struct {
	Text string
	Step string
}

// Advisor emits at most one follow-up suggestion per turn.
type Advisor struct {
	llm llm.Invoker
}

func NewAdvisor(invoker llm.Invoker) *Advisor {
	return &Advisor{llm: invoker}
}

// Advise produces the follow-up suggestion for a completed turn. Failures
// degrade to no suggestion.
func (a *Advisor) Advise(ctx context.Context, state *models.MetaState, input models.ProcessedInput) Suggestion {
	var sb strings.Builder
	sb.WriteString("用户请求：" + input.RawQuery + "\n")
	sb.WriteString("已执行步骤：")
	for i, s := range state.Plan.Steps {
		if i > 0 {
			sb.WriteString("、")
		}
		sb.WriteString(s.Step)
	}
	sb.WriteString("\n")
	if !state.Plan.Contains(models.StepGenerate) {
		sb.WriteString("本轮未生成内容，生成是可提供的后续能力。\n")
	}
	if state.NeedRevision {
		sb.WriteString("本轮内容评估建议修改。\n")
	}

	reply, err := a.llm.Invoke(ctx, []llm.Message{
		llm.System(advisorPrompt),
		llm.User(sb.String()),
	}, llm.TaskNarrative, llm.ComplexityLow)
	if err != nil {
		slog.Warn("Follow-up suggestion failed, skipping", "error", err)
		return Suggestion{}
	}
	return ParseSuggestion(reply)
}

// ParseSuggestion splits the STEP: line out of a model reply. The step name
// must be generate or analyze; anything else clears it. The STEP line is
// stripped from the user-visible text.
func ParseSuggestion(reply string) Suggestion {
	var (
		textLines []string
		step      string
	)
	for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, stepLinePrefix) {
			step = strings.TrimSpace(strings.TrimPrefix(trimmed, stepLinePrefix))
			continue
		}
		if trimmed != "" {
			textLines = append(textLines, trimmed)
		}
	}
	if step != models.StepGenerate && step != models.StepAnalyze {
		step = ""
	}
	return Suggestion{Text: strings.Join(textLines, "\n"), Step: step}
}

// affirmatives is the closed set of short replies that accept a pending
// suggestion. All entries are ≤6 characters.
var affirmatives = map[string]struct{}{
	"好":  {}, "好的": {}, "好啊": {}, "行": {}, "可以": {}, "嗯":  {},
	"嗯嗯": {}, "要":  {}, "要的": {}, "来吧": {}, "没问题": {}, "ok": {},
	"继续": {}, "生成吧": {},
}

// IsAffirmative reports whether text is a short acceptance of a pending
// suggestion.
func IsAffirmative(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.Trim(normalized, "!！。.~")
	if len([]rune(normalized)) > 6 {
		return false
	}
	_, ok := affirmatives[normalized]
	return ok
}
