package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deepthink-ai/deepthink/pkg/config"
	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/models"
	"github.com/deepthink-ai/deepthink/pkg/plugin"
)

// GenerationGraph produces content: it dispatches the single best generation
// plugin for the plan's task type, falling back to the default LLM
// generation.
type GenerationGraph struct {
	center *plugin.Center
	llm    llm.Invoker
	cfg    *config.Config
}

// NewGenerationGraph builds the generation sub-graph.
func NewGenerationGraph(center *plugin.Center, invoker llm.Invoker, cfg *config.Config) *GenerationGraph {
	return &GenerationGraph{center: center, llm: invoker, cfg: cfg}
}

const generationPrompt = `你是营销内容创作模块。基于分析结论与参考材料，直接输出面向用户的成品内容（文案/方案正文），不要输出解释或 JSON。
要求：贴合品牌调性，结构清晰，可直接发布。上传文档仅作参考素材，不得替代用户指定的品牌、产品与主题。`

// Run produces content for the state. platform, when non-empty, suffixes the
// topic; sessionDocContext is supplementary reference material only.
func (g *GenerationGraph) Run(ctx context.Context, state *models.MetaState, input models.ProcessedInput, platform, sessionDocContext string) (string, error) {
	topic := input.StructuredData.Topic
	if platform != "" {
		topic = strings.TrimSpace(topic + "（" + platform + "）")
	}

	if content := g.tryPlugin(ctx, state, input, topic); content != "" {
		return content, nil
	}
	return g.defaultGeneration(ctx, state, input, topic, sessionDocContext)
}

// tryPlugin dispatches the first registered plugin from the task-type table.
// Returns "" when no plugin applies or the plugin produced no content.
func (g *GenerationGraph) tryPlugin(ctx context.Context, state *models.MetaState, input models.ProcessedInput, topic string) string {
	for _, name := range g.cfg.PluginsForTask(string(state.Plan.TaskType)) {
		if !g.center.Has(name) {
			continue
		}
		result := g.center.GetOutput(ctx, name, map[string]any{
			"query":    input.RawQuery,
			"topic":    topic,
			"brand":    input.StructuredData.BrandName,
			"product":  input.StructuredData.ProductDesc,
			"analysis": state.Analysis,
		})
		if content, ok := result["content"].(string); ok && content != "" {
			slog.Info("Generation served by plugin", "plugin", name)
			return content
		}
		// 插件存在但未产出内容时继续走默认生成
		return ""
	}
	return ""
}

func (g *GenerationGraph) defaultGeneration(ctx context.Context, state *models.MetaState, input models.ProcessedInput, topic, sessionDocContext string) (string, error) {
	var sb strings.Builder
	sb.WriteString("用户请求：" + input.RawQuery + "\n")
	if input.StructuredData.BrandName != "" {
		sb.WriteString("品牌：" + input.StructuredData.BrandName + "\n")
	}
	if input.StructuredData.ProductDesc != "" {
		sb.WriteString("产品：" + input.StructuredData.ProductDesc + "\n")
	}
	if topic != "" {
		sb.WriteString("主题：" + topic + "\n")
	}
	if angle, ok := state.Analysis["angle"].(string); ok && angle != "" {
		sb.WriteString("\n【分析结论】\n切入角度：" + angle + "\n")
	}
	if state.MemoryContext != "" {
		sb.WriteString("\n【用户偏好】\n" + state.MemoryContext + "\n")
	}
	if sessionDocContext != "" {
		sb.WriteString("\n【参考文档（仅作素材）】\n" + sessionDocContext + "\n")
	}

	content, err := g.llm.Invoke(ctx, []llm.Message{
		llm.System(generationPrompt),
		llm.User(sb.String()),
	}, "generation", llm.ComplexityHigh)
	if err != nil {
		return "", fmt.Errorf("content generation failed: %w", err)
	}
	return strings.TrimSpace(content), nil
}
