// Package planner turns a normalized request into an executable plan via the
// strategy model role. Plans are bounded and post-filtered; a planner failure
// never fails the request — it degrades to a deterministic default plan.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/models"
)

const (
	minPlanSteps = 2
	maxPlanSteps = 6
)

// builtinSteps are the step names the orchestrator executes itself. Workflow
// steps registered at startup extend this set per planner instance.
var builtinSteps = []string{
	models.StepWebSearch,
	models.StepMemoryQuery,
	models.StepAnalyze,
	models.StepGenerate,
	models.StepEvaluate,
	models.StepBilibiliHotspot,
	models.StepWeiboHotspot,
	models.StepDouyinHotspot,
}

const planPromptHeader = `你是营销助手的策略规划模块。根据用户请求输出严格的 JSON 执行计划（不要输出其他内容）：
{"steps": [{"step": "名称", "params": {}, "reason": "一句话理由"}], "task_type": "campaign_or_copy|general"}
可用步骤：web_search, memory_query, analyze, generate, evaluate, bilibili_hotspot, weibo_hotspot, douyin_hotspot`

const planPromptRules = `规划规则：
- 共 2 到 6 步
- 需要长期用户偏好时加入 memory_query
- 需要市场/竞品事实时加入 web_search
- 仅当用户明确点名平台（B站/微博/抖音）时加入对应热点步骤
- 营销类任务加入 analyze
- 仅当用户明确要求生成内容时才加入 generate，生成后通常跟 evaluate
- 工作流步骤仅在其名称与请求的任务直接对应时加入
- 明确的方案/文案请求 task_type 为 campaign_or_copy，否则为 general`

// Planner produces plans through the LLM router.
type Planner struct {
	llm    llm.Invoker
	valid  map[string]struct{}
	prompt string
}

// New creates a planner over the LLM router. workflowSteps are the step
// names of workflows registered at startup; they extend the step set the
// model may plan and are advertised in the prompt.
func New(invoker llm.Invoker, workflowSteps ...string) *Planner {
	valid := make(map[string]struct{}, len(builtinSteps)+len(workflowSteps))
	for _, s := range builtinSteps {
		valid[s] = struct{}{}
	}
	for _, s := range workflowSteps {
		valid[s] = struct{}{}
	}

	prompt := planPromptHeader
	if len(workflowSteps) > 0 {
		prompt += "\n可用工作流步骤：" + strings.Join(workflowSteps, ", ")
	}
	prompt += "\n" + planPromptRules

	return &Planner{llm: invoker, valid: valid, prompt: prompt}
}

// planReply is the strict JSON shape requested from the model.
type planReply struct {
	Steps []struct {
		Step   string            `json:"step"`
		Params map[string]string `json:"params"`
		Reason string            `json:"reason"`
	} `json:"steps"`
	TaskType string `json:"task_type"`
}

// Plan builds a plan for the processed input. On LLM or parse failure it
// falls back to a deterministic default and logs the reason.
func (p *Planner) Plan(ctx context.Context, input models.ProcessedInput, conversationContext string) models.Plan {
	reply, err := p.llm.Invoke(ctx, []llm.Message{
		llm.System(p.prompt),
		llm.User(buildPlanRequest(input, conversationContext)),
	}, llm.TaskPlanning, llm.ComplexityHigh)
	if err != nil {
		slog.Warn("Plan generation failed, using default plan", "error", err)
		return defaultPlan(input)
	}

	var parsed planReply
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &parsed); err != nil {
		slog.Warn("Plan reply is not valid JSON, using default plan", "error", err)
		return defaultPlan(input)
	}

	plan := models.Plan{TaskType: normalizeTaskType(parsed.TaskType)}
	for _, s := range parsed.Steps {
		name := strings.TrimSpace(s.Step)
		if _, ok := p.valid[name]; !ok {
			slog.Warn("Dropping unknown plan step", "step", name)
			continue
		}
		plan.Steps = append(plan.Steps, models.PlanStep{
			Step:   name,
			Params: s.Params,
			Reason: s.Reason,
		})
	}

	plan = postFilter(plan, input)

	if len(plan.Steps) < minPlanSteps {
		slog.Warn("Plan too short after filtering, using default plan", "steps", len(plan.Steps))
		return defaultPlan(input)
	}
	if len(plan.Steps) > maxPlanSteps {
		plan.Steps = plan.Steps[:maxPlanSteps]
	}
	return plan
}

// postFilter enforces the hard rules the model may ignore: no generate step
// without an explicit content request.
func postFilter(plan models.Plan, input models.ProcessedInput) models.Plan {
	if input.ExplicitContentRequest {
		return plan
	}
	filtered := plan.Steps[:0]
	dropped := 0
	for _, s := range plan.Steps {
		if s.Step == models.StepGenerate {
			dropped++
			continue
		}
		filtered = append(filtered, s)
	}
	if dropped > 0 {
		slog.Info("Stripped generate steps from plan",
			"dropped", dropped, "reason", "no explicit content request")
	}
	plan.Steps = filtered
	return plan
}

// defaultPlan is the deterministic fallback when planning fails.
func defaultPlan(input models.ProcessedInput) models.Plan {
	if input.ExplicitContentRequest {
		return models.Plan{
			TaskType: models.TaskCampaignOrCopy,
			Steps: []models.PlanStep{
				{Step: models.StepAnalyze, Reason: "默认流程：先做语义分析"},
				{Step: models.StepGenerate, Reason: "用户明确要求生成内容"},
				{Step: models.StepEvaluate, Reason: "生成后做质量评估"},
			},
		}
	}
	return models.Plan{
		TaskType: models.TaskGeneral,
		Steps: []models.PlanStep{
			{Step: models.StepWebSearch, Reason: "默认流程：先补充外部事实"},
			{Step: models.StepAnalyze, Reason: "基于检索结果做分析"},
		},
	}
}

func normalizeTaskType(s string) models.TaskType {
	if models.TaskType(strings.TrimSpace(s)) == models.TaskCampaignOrCopy {
		return models.TaskCampaignOrCopy
	}
	return models.TaskGeneral
}

func buildPlanRequest(input models.ProcessedInput, conversationContext string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "意图: %s\n", input.Intent)
	fmt.Fprintf(&sb, "明确要求生成内容: %t\n", input.ExplicitContentRequest)
	if input.StructuredData.BrandName != "" {
		fmt.Fprintf(&sb, "品牌: %s\n", input.StructuredData.BrandName)
	}
	if input.StructuredData.ProductDesc != "" {
		fmt.Fprintf(&sb, "产品: %s\n", input.StructuredData.ProductDesc)
	}
	if input.StructuredData.Topic != "" {
		fmt.Fprintf(&sb, "主题: %s\n", input.StructuredData.Topic)
	}
	if conversationContext != "" {
		sb.WriteString("最近对话：\n")
		sb.WriteString(conversationContext)
		sb.WriteString("\n")
	}
	sb.WriteString("用户请求：")
	sb.WriteString(input.RawQuery)
	return sb.String()
}
