package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepthink-ai/deepthink/pkg/cache"
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
	"github.com/deepthink-ai/deepthink/pkg/store"
)

// routingInvoker serves a canned reply per task type so one fake can stand in
// for the whole role table.
type routingInvoker struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   map[string]int
}

func newRoutingInvoker() *routingInvoker {
	return &routingInvoker{
		replies: map[string]string{
			llm.TaskAnalysis:   `{"semantic_score": 0.8, "angle": "场景化种草", "reason": "夏日场景契合"}`,
			"generation":       "夏日冷泡，一口清爽。",
			llm.TaskEvaluation: `{"scores": {"consistency": 8, "creativity": 7, "safety": 9, "platform_fit": 8}, "overall": 8, "suggestions": "可以更口语化"}`,
			llm.TaskNarrative: "我先梳理了请求的核心诉求，检索了相关的市场讨论，结合用户偏好确定了场景化种草的切入角度，" +
				"最终产出了贴合品牌调性的文案并完成了质量评估。",
		},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *routingInvoker) Invoke(ctx context.Context, messages []llm.Message, taskType, complexity string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[taskType]++
	if err := f.errs[taskType]; err != nil {
		return "", err
	}
	return f.replies[taskType], nil
}

type failingSearch struct{ err error }

func (f *failingSearch) Search(ctx context.Context, query string, numResults int, searchType string) ([]ports.SearchResult, error) {
	return nil, f.err
}

// blockingSearch waits out the step deadline.
type blockingSearch struct{}

func (b *blockingSearch) Search(ctx context.Context, query string, numResults int, searchType string) ([]ports.SearchResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type testEnv struct {
	inv            *routingInvoker
	analysisCenter *plugin.Center
	registry       *plugin.Registry
	orch           *Orchestrator
}

func newTestEnv(t *testing.T, cfg *config.Config, search ports.Search) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	inv := newRoutingInvoker()
	smartCache := cache.New(cache.NewMemoryStore())
	analysisCenter := plugin.NewCenter("analysis")
	generationCenter := plugin.NewCenter("generation")
	registry := plugin.NewRegistry()

	env := &testEnv{inv: inv, analysisCenter: analysisCenter, registry: registry}
	env.orch = New(Deps{
		Planner:       planner.New(inv),
		Analysis:      graph.NewAnalysisGraph(analysisCenter, inv, smartCache, time.Second),
		Generation:    graph.NewGenerationGraph(generationCenter, inv, cfg),
		Memory:        memory.NewService(store.NewMemProfileStore(), store.NewMemHistoryStore(), smartCache),
		Documents:     document.NewService(store.NewMemDocumentStore()),
		Search:        search,
		HotspotCenter: analysisCenter,
		Registry:      registry,
		Synthesizer:   narrative.NewSynthesizer(inv),
		LLM:           inv,
		Config:        cfg,
	})
	return env
}

func contentRequest() models.ProcessedInput {
	return models.ProcessedInput{
		Intent:   models.IntentStructuredRequest,
		RawQuery: "帮清风茶舍的冷泡茶写一篇 B站推广文案",
		StructuredData: models.StructuredData{
			BrandName: "清风茶舍", ProductDesc: "冷泡茶", Topic: "夏日上新",
		},
		ExplicitContentRequest: true,
		SessionID:              "s1",
		UserID:                 "u1",
	}
}

const fullPlanReply = `{"steps": [
  {"step": "web_search", "params": {}, "reason": "补充市场事实"},
  {"step": "memory_query", "params": {}, "reason": "载入用户偏好"},
  {"step": "analyze", "params": {}, "reason": "确定切入角度"},
  {"step": "generate", "params": {"platform": "B站"}, "reason": "产出文案"},
  {"step": "evaluate", "params": {}, "reason": "质量把关"}
], "task_type": "campaign_or_copy"}`

func TestRun_FullChain(t *testing.T) {
	env := newTestEnv(t, nil, ports.NewMockSearch())
	env.inv.replies[llm.TaskPlanning] = fullPlanReply

	state, err := env.orch.Run(context.Background(), contentRequest())
	require.NoError(t, err)

	// 每个计划步骤恰好一条输出记录，且都成功
	require.Len(t, state.StepOutputs, 5)
	steps := make([]string, 0, 5)
	for _, out := range state.StepOutputs {
		assert.Empty(t, out.Error, "step %s should succeed", out.Step)
		steps = append(steps, out.Step)
	}
	assert.Equal(t, []string{"web_search", "memory_query", "analyze", "generate", "evaluate"}, steps,
		"parallel subset merges before the sequential phase, in plan order")

	require.NotEmpty(t, state.ThinkingLogs)
	assert.Equal(t, "策略脑已规划 5 个步骤: web_search, memory_query, analyze, generate, evaluate",
		state.ThinkingLogs[0].Thought)

	assert.Contains(t, state.SearchContext, "检索到")
	assert.Equal(t, "场景化种草", state.Analysis["angle"])

	require.NotNil(t, state.Evaluation)
	assert.Equal(t, 8, state.Evaluation.Overall)
	assert.False(t, state.NeedRevision)

	assert.Contains(t, state.Content, "## 思维链执行过程")
	assert.Contains(t, state.Content, "## 最终输出")
	assert.Contains(t, state.Content, "夏日冷泡，一口清爽。")
	assert.Contains(t, state.Content, "## 质量评估")
	assert.Contains(t, state.Content, "综合评分：8/10")

	for _, phase := range []string{"planning", "parallel", "sequential", "compile"} {
		assert.Contains(t, state.StageDurations, phase)
	}
}

func TestRun_StepFailureDoesNotAbortRun(t *testing.T) {
	env := newTestEnv(t, nil, &failingSearch{err: errors.New("search backend down")})
	env.inv.replies[llm.TaskPlanning] = fullPlanReply

	state, err := env.orch.Run(context.Background(), contentRequest())
	require.NoError(t, err)

	require.Len(t, state.StepOutputs, 5)
	byStep := map[string]models.StepOutput{}
	for _, out := range state.StepOutputs {
		byStep[out.Step] = out
	}
	assert.Contains(t, byStep["web_search"].Error, "search backend down")
	assert.Equal(t, models.ErrorKindException, byStep["web_search"].ErrorKind)
	assert.Empty(t, byStep["generate"].Error, "later steps still run")
	assert.Equal(t, "场景化种草", state.Analysis["angle"])

	var failureLogged bool
	for _, log := range state.ThinkingLogs {
		if strings.Contains(log.Thought, "执行失败") {
			failureLogged = true
		}
	}
	assert.True(t, failureLogged)
}

func TestRun_StepTimeoutRecordedAsTimeout(t *testing.T) {
	cfg := &config.Config{Orchestrator: &config.OrchestratorConfig{StepTimeout: 30 * time.Millisecond}}
	env := newTestEnv(t, cfg, &blockingSearch{})
	env.inv.replies[llm.TaskPlanning] = `{"steps": [
	  {"step": "web_search", "params": {}, "reason": "补充事实"},
	  {"step": "analyze", "params": {}, "reason": "分析"}
	], "task_type": "general"}`

	input := contentRequest()
	input.ExplicitContentRequest = false
	state, err := env.orch.Run(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, state.StepOutputs, 2)
	assert.Equal(t, models.ErrorKindTimeout, state.StepOutputs[0].ErrorKind)
	assert.Empty(t, state.StepOutputs[1].Error)
}

func TestRun_HotspotMergeSurvivesAnalyze(t *testing.T) {
	env := newTestEnv(t, nil, ports.NewMockSearch())
	require.NoError(t, env.analysisCenter.Register("bilibili_hotspot", plugin.KindScheduled, plugin.Hooks{
		GetOutput: func(ctx context.Context, execCtx map[string]any) (map[string]any, error) {
			return map[string]any{"analysis": map[string]any{"bilibili_hotspot": "B站热点简报"}}, nil
		},
		Refresh:  func(ctx context.Context) error { return nil },
		Schedule: plugin.ScheduleConfig{Interval: time.Hour},
	}))
	env.inv.replies[llm.TaskPlanning] = `{"steps": [
	  {"step": "bilibili_hotspot", "params": {}, "reason": "借鉴热点结构"},
	  {"step": "analyze", "params": {}, "reason": "产出推荐方案"}
	], "task_type": "general"}`

	input := contentRequest()
	input.ExplicitContentRequest = false
	state, err := env.orch.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "B站热点简报", state.Analysis["bilibili_hotspot"], "hotspot result survives analyze")
	assert.Equal(t, "场景化种草", state.Analysis["angle"])
	// 无 generate 步骤时，最终输出落在分析结论上
	assert.Contains(t, state.Content, "场景化种草")
	assert.NotContains(t, state.Content, "## 质量评估")
}

func TestRun_EvaluationFailureUsesNeutralScore(t *testing.T) {
	env := newTestEnv(t, nil, ports.NewMockSearch())
	env.inv.replies[llm.TaskPlanning] = fullPlanReply
	env.inv.errs[llm.TaskEvaluation] = errors.New("evaluator down")

	state, err := env.orch.Run(context.Background(), contentRequest())
	require.NoError(t, err)

	require.NotNil(t, state.Evaluation)
	assert.Equal(t, 5, state.Evaluation.Overall)
	assert.True(t, state.Evaluation.Failed)
	assert.False(t, state.NeedRevision, "neutral fallback score is not a revision signal")
}

func TestRun_LowScoreFlagsRevision(t *testing.T) {
	env := newTestEnv(t, nil, ports.NewMockSearch())
	env.inv.replies[llm.TaskPlanning] = fullPlanReply
	env.inv.replies[llm.TaskEvaluation] = `{"scores": {"consistency": 4, "creativity": 4, "safety": 8, "platform_fit": 4}, "overall": 4, "suggestions": "重写开头"}`

	state, err := env.orch.Run(context.Background(), contentRequest())
	require.NoError(t, err)

	require.NotNil(t, state.Evaluation)
	assert.Equal(t, 4, state.Evaluation.Overall)
	assert.True(t, state.NeedRevision)
}

func TestRunSequentialStep_WorkflowDispatch(t *testing.T) {
	env := newTestEnv(t, nil, ports.NewMockSearch())
	env.registry.RegisterWorkflow("campaign_plan", func(cfg *config.Config) (plugin.Workflow, error) {
		return plugin.WorkflowFunc(func(ctx context.Context, state *models.MetaState) (*plugin.Increment, error) {
			return &plugin.Increment{
				Analysis: map[string]any{"campaign_focus": "开箱测评"},
				Content:  "三周投放节奏方案",
				UsedTags: []string{"轻快"},
			}, nil
		}), nil
	})
	env.registry.InitWorkflows(&config.Config{})

	state := models.NewMetaState(contentRequest(), "{}")
	env.orch.runSequentialStep(context.Background(), state, contentRequest(),
		models.PlanStep{Step: "campaign_plan"})

	require.Len(t, state.StepOutputs, 1)
	assert.Empty(t, state.StepOutputs[0].Error)
	assert.Equal(t, "开箱测评", state.Analysis["campaign_focus"])
	assert.Equal(t, "三周投放节奏方案", state.Content)
	assert.Contains(t, state.EffectiveTags, "轻快")
}

func TestRunSequentialStep_UnknownStepRecordedAsError(t *testing.T) {
	env := newTestEnv(t, nil, ports.NewMockSearch())

	state := models.NewMetaState(contentRequest(), "{}")
	env.orch.runSequentialStep(context.Background(), state, contentRequest(),
		models.PlanStep{Step: "summon_demon"})

	require.Len(t, state.StepOutputs, 1)
	assert.Contains(t, state.StepOutputs[0].Error, "unknown step")
	assert.Equal(t, models.ErrorKindException, state.StepOutputs[0].ErrorKind)
}

func TestPartition_BoundsParallelSubset(t *testing.T) {
	env := newTestEnv(t, nil, ports.NewMockSearch())

	plan := models.Plan{Steps: []models.PlanStep{
		{Step: models.StepWebSearch},
		{Step: models.StepMemoryQuery},
		{Step: models.StepBilibiliHotspot},
		{Step: models.StepWeiboHotspot},
		{Step: models.StepDouyinHotspot},
		{Step: models.StepAnalyze},
	}}
	parallel, sequential := env.orch.partition(plan)

	assert.Len(t, parallel, 4)
	require.Len(t, sequential, 2)
	assert.Equal(t, models.StepDouyinHotspot, sequential[0].Step, "parallel-safe overflow runs sequentially")
	assert.Equal(t, models.StepAnalyze, sequential[1].Step)
}

func TestRun_PlannerFailureStillCompletes(t *testing.T) {
	env := newTestEnv(t, nil, ports.NewMockSearch())
	env.inv.errs[llm.TaskPlanning] = errors.New("planner down")

	state, err := env.orch.Run(context.Background(), contentRequest())
	require.NoError(t, err)

	// 明确生成诉求的默认计划：analyze / generate / evaluate
	require.Len(t, state.StepOutputs, 3)
	assert.Contains(t, state.Content, "## 最终输出")
	assert.Contains(t, state.Content, "夏日冷泡，一口清爽。")
}

func TestRun_PanicInPluginIsIsolated(t *testing.T) {
	env := newTestEnv(t, nil, ports.NewMockSearch())
	require.NoError(t, env.analysisCenter.Register("weibo_hotspot", plugin.KindScheduled, plugin.Hooks{
		GetOutput: func(ctx context.Context, execCtx map[string]any) (map[string]any, error) {
			panic("boom")
		},
		Refresh:  func(ctx context.Context) error { return nil },
		Schedule: plugin.ScheduleConfig{Interval: time.Hour},
	}))
	env.inv.replies[llm.TaskPlanning] = `{"steps": [
	  {"step": "weibo_hotspot", "params": {}, "reason": "借鉴热点"},
	  {"step": "analyze", "params": {}, "reason": "分析"}
	], "task_type": "general"}`

	input := contentRequest()
	input.ExplicitContentRequest = false
	state, err := env.orch.Run(context.Background(), input)
	require.NoError(t, err)

	// Center 吞掉插件 panic，返回空结果；步骤本身不算失败
	require.Len(t, state.StepOutputs, 2)
	assert.Empty(t, state.StepOutputs[0].Error)
	assert.NotContains(t, state.Analysis, "weibo_hotspot")
	assert.Equal(t, "场景化种草", state.Analysis["angle"])
}
