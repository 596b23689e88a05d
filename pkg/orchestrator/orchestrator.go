// Package orchestrator drives a plan against shared MetaState in three
// phases: planning, execution (parallel fan-out then sequential), and
// compilation of the final report. A step's failure never aborts the run —
// it is recorded and the next step proceeds.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deepthink-ai/deepthink/pkg/config"
	"github.com/deepthink-ai/deepthink/pkg/document"
	"github.com/deepthink-ai/deepthink/pkg/graph"
	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/memory"
	"github.com/deepthink-ai/deepthink/pkg/models"
	"github.com/deepthink-ai/deepthink/pkg/narrative"
	"github.com/deepthink-ai/deepthink/pkg/planner"
	"github.com/deepthink-ai/deepthink/pkg/plugin"
	"github.com/deepthink-ai/deepthink/pkg/ports"
)

const (
	defaultStepTimeout      = 90 * time.Second
	defaultMaxParallelSteps = 4
	defaultMaxPlanSteps     = 6
)

// Orchestrator executes plans.
type Orchestrator struct {
	planner       *planner.Planner
	analysis      *graph.AnalysisGraph
	generation    *graph.GenerationGraph
	memory        *memory.Service
	documents     *document.Service
	search        ports.Search
	hotspotCenter *plugin.Center
	registry      *plugin.Registry
	synthesizer   *narrative.Synthesizer
	llm           llm.Invoker
	cfg           *config.Config

	stepTimeout      time.Duration
	maxParallelSteps int
	maxPlanSteps     int
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Planner       *planner.Planner
	Analysis      *graph.AnalysisGraph
	Generation    *graph.GenerationGraph
	Memory        *memory.Service
	Documents     *document.Service
	Search        ports.Search
	HotspotCenter *plugin.Center
	Registry      *plugin.Registry
	Synthesizer   *narrative.Synthesizer
	LLM           llm.Invoker
	Config        *config.Config
}

// New builds an orchestrator with guardrails from configuration.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		planner:       deps.Planner,
		analysis:      deps.Analysis,
		generation:    deps.Generation,
		memory:        deps.Memory,
		documents:     deps.Documents,
		search:        deps.Search,
		hotspotCenter: deps.HotspotCenter,
		registry:      deps.Registry,
		synthesizer:   deps.Synthesizer,
		llm:           deps.LLM,
		cfg:           deps.Config,

		stepTimeout:      defaultStepTimeout,
		maxParallelSteps: defaultMaxParallelSteps,
		maxPlanSteps:     defaultMaxPlanSteps,
	}
	if deps.Config != nil && deps.Config.Orchestrator != nil {
		if t := deps.Config.Orchestrator.StepTimeout; t > 0 {
			o.stepTimeout = t
		}
		if n := deps.Config.Orchestrator.MaxParallelSteps; n > 0 {
			o.maxParallelSteps = n
		}
		if n := deps.Config.Orchestrator.MaxPlanSteps; n > 0 {
			o.maxPlanSteps = n
		}
	}
	return o
}

// Run executes the full chain for a processed input and returns the final
// MetaState, whose Content holds the assembled report.
func (o *Orchestrator) Run(ctx context.Context, input models.ProcessedInput) (*models.MetaState, error) {
	serialized, _ := json.Marshal(input)
	state := models.NewMetaState(input, string(serialized))
	state.AnalysisPlugins = o.analysisPluginNames()

	o.runPlanning(ctx, state, input)
	o.runExecution(ctx, state, input)
	o.runCompilation(ctx, state, input)
	return state, nil
}

// analysisPluginNames derives the realtime analysis plugin list from the
// manifest.
func (o *Orchestrator) analysisPluginNames() []string {
	if o.cfg == nil {
		return nil
	}
	var names []string
	for _, entry := range o.cfg.Plugins {
		if entry.Brain == "analysis" && entry.Kind == "realtime" {
			names = append(names, entry.Name)
		}
	}
	return names
}

// Phase A.
func (o *Orchestrator) runPlanning(ctx context.Context, state *models.MetaState, input models.ProcessedInput) {
	started := time.Now()
	defer func() { state.RecordStageDuration("planning", time.Since(started).Seconds()) }()

	conversation, err := o.memory.GetRecentConversationText(ctx, input.UserID, input.SessionID, 5)
	if err != nil {
		slog.Warn("Conversation context unavailable for planning", "error", err)
	}

	plan := o.planner.Plan(ctx, input, conversation)
	if len(plan.Steps) > o.maxPlanSteps {
		plan.Steps = plan.Steps[:o.maxPlanSteps]
	}
	state.Plan = plan

	names := make([]string, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		names = append(names, s.Step)
	}
	state.AddThinking("planning",
		fmt.Sprintf("策略脑已规划 %d 个步骤: %s", len(plan.Steps), strings.Join(names, ", ")))
}

// stepIncrement is what one parallel worker hands back for serial merging.
type stepIncrement struct {
	output        models.StepOutput
	thought       string
	searchContext string
	memoryContext string
	effectiveTags []string
	analysis      map[string]any
	analysisOwner string // plugin name for the merge convention
}

// Phase B.
func (o *Orchestrator) runExecution(ctx context.Context, state *models.MetaState, input models.ProcessedInput) {
	parallel, sequential := o.partition(state.Plan)

	if len(parallel) > 0 {
		started := time.Now()
		o.runParallel(ctx, state, input, parallel)
		state.RecordStageDuration("parallel", time.Since(started).Seconds())
	}

	started := time.Now()
	for _, step := range sequential {
		o.runSequentialStep(ctx, state, input, step)
		state.CurrentStep++
	}
	state.RecordStageDuration("sequential", time.Since(started).Seconds())
}

// partition splits the plan into the parallel-safe subset (bounded) and the
// rest in plan order. Parallel-safe overflow beyond the bound runs
// sequentially.
func (o *Orchestrator) partition(plan models.Plan) (parallel, sequential []models.PlanStep) {
	for _, step := range plan.Steps {
		if models.IsParallelSafe(step.Step) && len(parallel) < o.maxParallelSteps {
			parallel = append(parallel, step)
			continue
		}
		sequential = append(sequential, step)
	}
	return parallel, sequential
}

// runParallel executes the parallel subset with gather-with-exceptions
// semantics, then merges all increments into the state before the
// sequential phase. Merge order follows the subset order for determinism.
func (o *Orchestrator) runParallel(ctx context.Context, state *models.MetaState, input models.ProcessedInput, steps []models.PlanStep) {
	increments := make([]stepIncrement, len(steps))
	grp := new(errgroup.Group)
	for i, step := range steps {
		grp.Go(func() error {
			increments[i] = o.executeParallelStep(ctx, state, input, step)
			return nil
		})
	}
	_ = grp.Wait() // workers record their own failures

	for _, inc := range increments {
		if inc.thought != "" {
			state.AddThinking(inc.output.Step, inc.thought)
		}
		state.AddStepOutput(inc.output)
		state.CurrentStep++
		if inc.searchContext != "" {
			state.SearchContext = inc.searchContext
		}
		if inc.memoryContext != "" {
			state.MemoryContext = inc.memoryContext
		}
		if len(inc.effectiveTags) > 0 {
			state.EffectiveTags = inc.effectiveTags
		}
		if inc.analysis != nil {
			plugin.MergeResultInto(state, inc.analysisOwner, inc.analysis)
		}
	}
}

func (o *Orchestrator) executeParallelStep(ctx context.Context, state *models.MetaState, input models.ProcessedInput, step models.PlanStep) stepIncrement {
	inc := stepIncrement{output: models.StepOutput{Step: step.Step, Reason: step.Reason}}

	callCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	err := o.safeStep(func() error {
		switch {
		case step.Step == models.StepWebSearch:
			return o.stepWebSearch(callCtx, input, step, &inc)
		case step.Step == models.StepMemoryQuery:
			return o.stepMemoryQuery(callCtx, input, &inc)
		case models.IsHotspotStep(step.Step):
			return o.stepHotspot(callCtx, step, &inc)
		}
		return fmt.Errorf("step %s is not parallel-safe", step.Step)
	})
	if err != nil {
		recordFailure(&inc.output, err)
		inc.thought = fmt.Sprintf("步骤 %s 执行失败：%s", step.Step, inc.output.Error)
	}
	return inc
}

func (o *Orchestrator) stepWebSearch(ctx context.Context, input models.ProcessedInput, step models.PlanStep, inc *stepIncrement) error {
	query := step.Params["query"]
	if query == "" {
		query = deriveSearchQuery(input)
	}
	results, err := o.search.Search(ctx, query, 5, "web")
	if err != nil {
		return err
	}
	inc.searchContext = ports.FormatResultsAsContext(results)
	inc.output.Result = fmt.Sprintf("检索到 %d 条网页结果", len(results))
	inc.thought = fmt.Sprintf("围绕「%s」检索到 %d 条网页结果", query, len(results))
	return nil
}

func (o *Orchestrator) stepMemoryQuery(ctx context.Context, input models.ProcessedInput, inc *stepIncrement) error {
	result, err := o.memory.GetPreferenceContext(ctx, input.UserID,
		input.StructuredData.BrandName, input.StructuredData.ProductDesc,
		input.StructuredData.Topic, nil)
	if err != nil {
		return err
	}
	inc.memoryContext = result.PreferenceContext
	inc.effectiveTags = result.EffectiveTags
	inc.output.Result = "已载入用户偏好上下文"
	inc.thought = "查询了长期记忆中的用户偏好"
	return nil
}

func (o *Orchestrator) stepHotspot(ctx context.Context, step models.PlanStep, inc *stepIncrement) error {
	result := o.hotspotCenter.GetOutput(ctx, step.Step, map[string]any{})
	inc.analysis = result
	inc.analysisOwner = step.Step
	inc.output.Result = fmt.Sprintf("已获取%s热点简报", models.HotspotPlatform(step.Step))
	inc.thought = fmt.Sprintf("拉取了%s的热点结构供借鉴", models.HotspotPlatform(step.Step))
	return nil
}

func (o *Orchestrator) runSequentialStep(ctx context.Context, state *models.MetaState, input models.ProcessedInput, step models.PlanStep) {
	output := models.StepOutput{Step: step.Step, Reason: step.Reason}

	callCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	err := o.safeStep(func() error {
		switch step.Step {
		case models.StepAnalyze:
			return o.stepAnalyze(callCtx, state, input, &output)
		case models.StepGenerate:
			return o.stepGenerate(callCtx, state, input, step, &output)
		case models.StepEvaluate:
			return o.stepEvaluate(callCtx, state, &output)
		case models.StepWebSearch:
			// parallel-safe overflow lands here
			inc := stepIncrement{output: output}
			if serr := o.stepWebSearch(callCtx, input, step, &inc); serr != nil {
				return serr
			}
			state.SearchContext = inc.searchContext
			output = inc.output
			state.AddThinking(step.Step, inc.thought)
			return nil
		case models.StepMemoryQuery:
			inc := stepIncrement{output: output}
			if serr := o.stepMemoryQuery(callCtx, input, &inc); serr != nil {
				return serr
			}
			state.MemoryContext = inc.memoryContext
			state.EffectiveTags = inc.effectiveTags
			output = inc.output
			state.AddThinking(step.Step, inc.thought)
			return nil
		default:
			if models.IsHotspotStep(step.Step) {
				inc := stepIncrement{output: output}
				if serr := o.stepHotspot(callCtx, step, &inc); serr != nil {
					return serr
				}
				plugin.MergeResultInto(state, inc.analysisOwner, inc.analysis)
				output = inc.output
				state.AddThinking(step.Step, inc.thought)
				return nil
			}
			return o.stepWorkflow(callCtx, state, step, &output)
		}
	})
	if err != nil {
		recordFailure(&output, err)
		state.AddThinking(step.Step, fmt.Sprintf("步骤 %s 执行失败：%s", step.Step, output.Error))
	}
	state.AddStepOutput(output)
}

func (o *Orchestrator) stepAnalyze(ctx context.Context, state *models.MetaState, input models.ProcessedInput, output *models.StepOutput) error {
	strategyMode := !state.Plan.Contains(models.StepGenerate)
	if err := o.analysis.Run(ctx, state, input, state.MemoryContext, strategyMode); err != nil {
		return err
	}

	angle, _ := state.Analysis["angle"].(string)
	if strategyMode {
		output.Result = "已产出推荐方案"
		state.AddThinking(models.StepAnalyze, "没有生成诉求，切换到策略模式，产出推荐方案")
	} else {
		output.Result = "已确定切入角度：" + truncate(angle, 60)
		state.AddThinking(models.StepAnalyze, "完成语义分析，确定了切入角度")
	}
	if state.AnalyzeCacheHit {
		state.AddThinking(models.StepAnalyze, "相同语境的分析结果命中缓存，直接复用")
	}
	return nil
}

func (o *Orchestrator) stepGenerate(ctx context.Context, state *models.MetaState, input models.ProcessedInput, step models.PlanStep, output *models.StepOutput) error {
	docContext := o.documents.GetSessionDocumentContext(ctx, input.SessionID, 0, 0)
	content, err := o.generation.Run(ctx, state, input, step.Params["platform"], docContext)
	if err != nil {
		return err
	}
	state.Content = content
	output.Result = "已生成内容（" + fmt.Sprint(len([]rune(content))) + " 字）"
	state.AddThinking(models.StepGenerate, "完成内容生成")
	return nil
}

const evaluatePrompt = `你是内容质量评估模块。对给定内容输出严格的 JSON（不要输出其他内容）：
{"scores": {"consistency": 0-10, "creativity": 0-10, "safety": 0-10, "platform_fit": 0-10}, "overall": 0-10, "suggestions": "一句话改进建议"}`

func (o *Orchestrator) stepEvaluate(ctx context.Context, state *models.MetaState, output *models.StepOutput) error {
	target := state.Content
	if target == "" {
		target, _ = state.Analysis["angle"].(string)
	}
	if target == "" {
		state.Evaluation = neutralEvaluation("没有可评估的内容")
		output.Result = "无内容可评估，按中性评分处理"
		return nil
	}

	eval, err := o.evaluateContent(ctx, target)
	if err != nil {
		slog.Warn("Evaluation failed, using neutral score", "error", err)
		eval = neutralEvaluation("评估服务暂不可用，已按中性评分处理")
	}
	state.Evaluation = eval
	state.NeedRevision = !eval.Failed && eval.Overall < 6
	output.Result = fmt.Sprintf("综合评分 %d/10", eval.Overall)
	state.AddThinking(models.StepEvaluate, fmt.Sprintf("质量评估完成，综合评分 %d/10", eval.Overall))
	return nil
}

func (o *Orchestrator) evaluateContent(ctx context.Context, content string) (*models.Evaluation, error) {
	reply, err := o.llm.Invoke(ctx, []llm.Message{
		llm.System(evaluatePrompt),
		llm.User(content),
	}, llm.TaskEvaluation, llm.ComplexityLow)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Scores      models.EvaluationScores `json:"scores"`
		Overall     float64                 `json:"overall"`
		Suggestions string                  `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("evaluation reply is not valid JSON: %w", err)
	}
	overall := int(parsed.Overall + 0.5)
	if overall > 10 {
		overall = 10
	}
	if overall < 0 {
		overall = 0
	}
	return &models.Evaluation{
		Scores:      parsed.Scores,
		Overall:     overall,
		Suggestions: parsed.Suggestions,
	}, nil
}

func neutralEvaluation(reason string) *models.Evaluation {
	return &models.Evaluation{
		Scores:      models.EvaluationScores{Consistency: 5, Creativity: 5, Safety: 5, PlatformFit: 5},
		Overall:     5,
		Suggestions: reason,
		Failed:      true,
	}
}

// stepWorkflow resolves an unknown step against the compiled-workflow
// registry; absence is a recorded error.
func (o *Orchestrator) stepWorkflow(ctx context.Context, state *models.MetaState, step models.PlanStep, output *models.StepOutput) error {
	wf, ok := o.registry.Workflow(step.Step)
	if !ok {
		return fmt.Errorf("unknown step %q: no built-in handler or registered workflow", step.Step)
	}
	increment, err := wf.Run(ctx, state)
	if err != nil {
		return err
	}
	if increment != nil {
		state.MergeAnalysis(increment.Analysis)
		if increment.Content != "" {
			state.Content = increment.Content
		}
		if len(increment.UsedTags) > 0 {
			state.EffectiveTags = mergeTags(state.EffectiveTags, increment.UsedTags)
		}
	}
	output.Result = "子工作流 " + step.Step + " 执行完成"
	state.AddThinking(step.Step, "执行了子工作流 "+step.Step)
	return nil
}

// Phase C.
func (o *Orchestrator) runCompilation(ctx context.Context, state *models.MetaState, input models.ProcessedInput) {
	started := time.Now()
	defer func() { state.RecordStageDuration("compile", time.Since(started).Seconds()) }()

	narration := o.synthesizer.Narrate(ctx, state, input)

	finalOutput := state.Content
	if finalOutput == "" {
		if angle, ok := state.Analysis["angle"].(string); ok && angle != "" {
			finalOutput = angle
		} else {
			finalOutput = "本轮未能产出有效结果，请调整描述后重试。"
		}
	}

	var sb strings.Builder
	sb.WriteString("## 思维链执行过程\n\n")
	sb.WriteString(narration)
	sb.WriteString("\n\n## 最终输出\n\n")
	sb.WriteString(finalOutput)
	if state.Evaluation != nil {
		sb.WriteString("\n\n## 质量评估\n\n")
		fmt.Fprintf(&sb, "综合评分：%d/10\n", state.Evaluation.Overall)
		if state.Evaluation.Suggestions != "" {
			sb.WriteString("改进建议：" + state.Evaluation.Suggestions + "\n")
		}
	}
	state.Content = strings.TrimRight(sb.String(), "\n")
}

// safeStep guards a step body against panics.
func (o *Orchestrator) safeStep(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()
	return fn()
}

// recordFailure fills the output's error fields, distinguishing timeouts.
func recordFailure(output *models.StepOutput, err error) {
	output.Error = err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		output.ErrorKind = models.ErrorKindTimeout
	} else {
		output.ErrorKind = models.ErrorKindException
	}
}

func deriveSearchQuery(input models.ProcessedInput) string {
	parts := make([]string, 0, 3)
	if input.StructuredData.BrandName != "" {
		parts = append(parts, input.StructuredData.BrandName)
	}
	if input.StructuredData.ProductDesc != "" {
		parts = append(parts, input.StructuredData.ProductDesc)
	}
	if input.StructuredData.Topic != "" {
		parts = append(parts, input.StructuredData.Topic)
	}
	if len(parts) == 0 {
		return input.RawQuery
	}
	return strings.Join(parts, " ")
}

func mergeTags(existing, add []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, t := range append(append([]string{}, existing...), add...) {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "…"
}
