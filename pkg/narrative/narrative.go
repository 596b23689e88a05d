// Package narrative turns an executed chain into a first-person explanation
// of how the conclusion was reached, and suggests at most one follow-up
// action per turn.
package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/models"
)

const (
	minNarrationRunes  = 50
	maxNarrationRunes  = 1200
	searchPreviewMax   = 800
	analysisPreviewMax = 400
)

const narrativePrompt = `你是营销助手的思考叙述模块。以第一人称（"我…"）写一段 200 到 600 字的叙述，说明这条思维链如何得出结论：
- 自然地提到引用来源（如"根据检索到的 N 条网页…"）
- 用户上传的文档与链接只是补充材料，不改变讨论主题
- 如有偏好标签，自然地融入叙述
- 只输出叙述正文，不要标题或列表`

// Synthesizer produces chain narrations.
type Synthesizer struct {
	llm llm.Invoker
}

func NewSynthesizer(invoker llm.Invoker) *Synthesizer {
	return &Synthesizer{llm: invoker}
}

// Narrate explains the executed chain in first person. Hard bounds: 50–1200
// runes; out-of-bound or failed narrations fall back to a bullet list of the
// chain's (step, thought) pairs.
func (s *Synthesizer) Narrate(ctx context.Context, state *models.MetaState, input models.ProcessedInput) string {
	reply, err := s.llm.Invoke(ctx, []llm.Message{
		llm.System(narrativePrompt),
		llm.User(s.buildNarrativeInput(state, input)),
	}, llm.TaskNarrative, llm.ComplexityLow)
	if err != nil {
		slog.Warn("Narrative synthesis failed, using bullet fallback", "error", err)
		return bulletFallback(state)
	}

	narration := strings.TrimSpace(reply)
	runes := []rune(narration)
	if len(runes) < minNarrationRunes {
		slog.Warn("Narration too short, using bullet fallback", "length", len(runes))
		return bulletFallback(state)
	}
	if len(runes) > maxNarrationRunes {
		narration = string(runes[:maxNarrationRunes])
	}
	return narration
}

func (s *Synthesizer) buildNarrativeInput(state *models.MetaState, input models.ProcessedInput) string {
	var sb strings.Builder
	sb.WriteString("用户请求：" + input.RawQuery + "\n")

	if len(state.ThinkingLogs) > 0 {
		sb.WriteString("\n【思考记录】\n")
		for _, log := range state.ThinkingLogs {
			fmt.Fprintf(&sb, "- [%s] %s\n", log.Step, log.Thought)
		}
	}
	if len(state.StepOutputs) > 0 {
		sb.WriteString("\n【步骤结果】\n")
		for _, out := range state.StepOutputs {
			if out.Error != "" {
				fmt.Fprintf(&sb, "- %s：失败（%s）\n", out.Step, out.Error)
				continue
			}
			fmt.Fprintf(&sb, "- %s：%s\n", out.Step, truncateRunes(out.Result, 120))
		}
	}
	if state.SearchContext != "" {
		sb.WriteString("\n【检索预览】\n")
		sb.WriteString(truncateRunes(state.SearchContext, searchPreviewMax))
		sb.WriteString("\n")
	}
	if angle, ok := state.Analysis["angle"].(string); ok && angle != "" {
		sb.WriteString("\n【分析结论】\n")
		sb.WriteString(truncateRunes(angle, analysisPreviewMax))
		sb.WriteString("\n")
	}
	if len(state.EffectiveTags) > 0 {
		sb.WriteString("\n偏好标签：" + strings.Join(state.EffectiveTags, "、") + "\n")
	}
	return sb.String()
}

// bulletFallback renders the chain as (step, thought) bullets.
func bulletFallback(state *models.MetaState) string {
	if len(state.ThinkingLogs) == 0 {
		return "我按计划完成了本次请求的处理。"
	}
	var sb strings.Builder
	sb.WriteString("我的思考过程：\n")
	for _, log := range state.ThinkingLogs {
		fmt.Fprintf(&sb, "- %s：%s\n", log.Step, log.Thought)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "…"
}
