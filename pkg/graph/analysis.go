// Package graph implements the single-node sub-graphs the orchestrator
// dispatches to: the analysis fan-out and the generation step. Each consumes
// a MetaState subset, produces an increment, and preserves unrelated fields.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deepthink-ai/deepthink/pkg/cache"
	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/models"
	"github.com/deepthink-ai/deepthink/pkg/plugin"
)

const defaultPluginTimeout = 90 * time.Second

// AnalysisGraph fans out the state's analysis plugins and runs the default
// LLM analysis with caching.
type AnalysisGraph struct {
	center        *plugin.Center
	llm           llm.Invoker
	cache         *cache.SmartCache
	pluginTimeout time.Duration
}

// NewAnalysisGraph builds the analysis sub-graph. timeout <= 0 uses the
// 90s default.
func NewAnalysisGraph(center *plugin.Center, invoker llm.Invoker, smartCache *cache.SmartCache, timeout time.Duration) *AnalysisGraph {
	if timeout <= 0 {
		timeout = defaultPluginTimeout
	}
	return &AnalysisGraph{center: center, llm: invoker, cache: smartCache, pluginTimeout: timeout}
}

// analysisResult is the default LLM analysis shape.
type analysisResult struct {
	SemanticScore float64 `json:"semantic_score"`
	Angle         string  `json:"angle"`
	Reason        string  `json:"reason"`
}

const analysisPrompt = `你是营销助手的分析模块。基于用户请求与参考材料，输出严格的 JSON（不要输出其他内容）：
{"semantic_score": 0.0 到 1.0 的语义契合度, "angle": "推荐的切入角度", "reason": "一句话理由"}`

const strategyModePrompt = `你是营销助手的策略分析模块。用户没有要求直接生成内容，请在 angle 字段给出一份推荐行动方案（分条列出切入角度、渠道节奏与下一步建议），其余字段不变。输出严格的 JSON：
{"semantic_score": 0.0 到 1.0, "angle": "推荐方案全文", "reason": "一句话理由"}`

// Run executes the analysis step against shared state. Plugin failures and
// LLM failures degrade: plugins contribute nothing, the default analysis
// falls back to a neutral increment. Pre-existing analysis keys are never
// overwritten.
func (g *AnalysisGraph) Run(ctx context.Context, state *models.MetaState, input models.ProcessedInput, preferenceContext string, strategyMode bool) error {
	g.fanOutPlugins(ctx, state, input)

	key := cache.Fingerprint(cache.PrefixAnalyze, map[string]any{
		"query":   input.RawQuery,
		"brand":   input.StructuredData.BrandName,
		"product": input.StructuredData.ProductDesc,
		"topic":   input.StructuredData.Topic,
		"tags":    cache.SortedTags(state.EffectiveTags),
		"mode":    mode(strategyMode),
	})

	raw, hit, err := g.cache.GetOrSet(ctx, key, func(ctx context.Context) (any, error) {
		return g.defaultAnalysis(ctx, state, input, preferenceContext, strategyMode)
	}, cache.TTLAIResult)
	if err != nil {
		slog.Warn("Default analysis failed, continuing with plugin results only", "error", err)
		return nil
	}
	state.AnalyzeCacheHit = hit

	var result analysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to decode analysis result: %w", err)
	}

	// Keys set earlier (hotspot plugins and the parallel fan-out) win.
	mergeMissing(state, map[string]any{
		"semantic_score": result.SemanticScore,
		"angle":          result.Angle,
		"reason":         result.Reason,
	})
	return nil
}

// fanOutPlugins runs state.AnalysisPlugins concurrently with a per-plugin
// timeout, then merges results in list order for determinism.
func (g *AnalysisGraph) fanOutPlugins(ctx context.Context, state *models.MetaState, input models.ProcessedInput) {
	if len(state.AnalysisPlugins) == 0 {
		return
	}

	execCtx := map[string]any{
		"query":   input.RawQuery,
		"brand":   input.StructuredData.BrandName,
		"product": input.StructuredData.ProductDesc,
		"topic":   input.StructuredData.Topic,
	}

	results := make([]map[string]any, len(state.AnalysisPlugins))
	grp, grpCtx := errgroup.WithContext(ctx)
	for i, name := range state.AnalysisPlugins {
		grp.Go(func() error {
			callCtx, cancel := context.WithTimeout(grpCtx, g.pluginTimeout)
			defer cancel()
			results[i] = g.center.GetOutput(callCtx, name, execCtx)
			return nil
		})
	}
	_ = grp.Wait() // workers never return errors; GetOutput degrades to {}

	for i, name := range state.AnalysisPlugins {
		plugin.MergeResultInto(state, name, results[i])
	}
}

func (g *AnalysisGraph) defaultAnalysis(ctx context.Context, state *models.MetaState, input models.ProcessedInput, preferenceContext string, strategyMode bool) (*analysisResult, error) {
	system := analysisPrompt
	if strategyMode {
		system = strategyModePrompt
	}

	var sb strings.Builder
	sb.WriteString("用户请求：")
	sb.WriteString(input.RawQuery)
	sb.WriteString("\n")
	if input.StructuredData.BrandName != "" {
		sb.WriteString("品牌：" + input.StructuredData.BrandName + "\n")
	}
	if input.StructuredData.ProductDesc != "" {
		sb.WriteString("产品：" + input.StructuredData.ProductDesc + "\n")
	}
	if input.StructuredData.Topic != "" {
		sb.WriteString("主题：" + input.StructuredData.Topic + "\n")
	}
	if preferenceContext != "" {
		sb.WriteString("\n【用户偏好】\n" + preferenceContext + "\n")
	}
	if state.SearchContext != "" {
		sb.WriteString("\n【网页检索】\n" + state.SearchContext + "\n")
	}
	if state.KBContext != "" {
		sb.WriteString("\n【知识库】\n" + state.KBContext + "\n")
	}

	reply, err := g.llm.Invoke(ctx, []llm.Message{
		llm.System(system),
		llm.User(sb.String()),
	}, llm.TaskAnalysis, llm.ComplexityHigh)
	if err != nil {
		return nil, err
	}

	var result analysisResult
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &result); err != nil {
		return nil, fmt.Errorf("analysis reply is not valid JSON: %w", err)
	}
	return &result, nil
}

// mergeMissing merges only keys not already present in the state's analysis.
func mergeMissing(state *models.MetaState, increment map[string]any) {
	filtered := make(map[string]any, len(increment))
	for k, v := range increment {
		if _, exists := state.Analysis[k]; !exists {
			filtered[k] = v
		}
	}
	state.MergeAnalysis(filtered)
}

func mode(strategyMode bool) string {
	if strategyMode {
		return "strategy"
	}
	return "full"
}
