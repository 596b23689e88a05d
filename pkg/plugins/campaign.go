package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deepthink-ai/deepthink/pkg/cache"
	"github.com/deepthink-ai/deepthink/pkg/config"
	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/models"
	"github.com/deepthink-ai/deepthink/pkg/plugin"
)

const campaignPrompt = `你是营销策划模块。基于给定的品牌、产品、主题与分析结论，输出一份可执行的推广方案正文：
- 包含目标人群、核心卖点、传播节奏（按周）、渠道建议
- 结构化排版，可直接交付
- 只输出方案正文，不要解释`

// campaignPlugin is the campaign-plan generation workflow. Identical briefs
// reuse the cached plan.
type campaignPlugin struct {
	llm   llm.Invoker
	cache *cache.SmartCache
}

func (c *campaignPlugin) getOutput(ctx context.Context, execCtx map[string]any) (map[string]any, error) {
	brief := map[string]any{
		"query":   execCtx["query"],
		"topic":   execCtx["topic"],
		"brand":   execCtx["brand"],
		"product": execCtx["product"],
	}
	if analysis, ok := execCtx["analysis"].(map[string]any); ok {
		if angle, ok := analysis["angle"].(string); ok {
			brief["angle"] = angle
		}
	}

	key := cache.Fingerprint(cache.PrefixPluginGen, brief)
	raw, _, err := c.cache.GetOrSet(ctx, key, func(ctx context.Context) (any, error) {
		return c.compose(ctx, brief)
	}, cache.TTLAIResult)
	if err != nil {
		return nil, err
	}

	var content string
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("cached campaign plan undecodable: %w", err)
	}
	return map[string]any{"content": content}, nil
}

func (c *campaignPlugin) compose(ctx context.Context, brief map[string]any) (string, error) {
	var sb strings.Builder
	for _, field := range []struct{ label, key string }{
		{"用户请求", "query"},
		{"品牌", "brand"},
		{"产品", "product"},
		{"主题", "topic"},
		{"切入角度", "angle"},
	} {
		if v, ok := brief[field.key].(string); ok && v != "" {
			sb.WriteString(field.label + "：" + v + "\n")
		}
	}

	content, err := c.llm.Invoke(ctx, []llm.Message{
		llm.System(campaignPrompt),
		llm.User(sb.String()),
	}, "generation", llm.ComplexityHigh)
	if err != nil {
		return "", fmt.Errorf("campaign plan generation failed: %w", err)
	}
	return strings.TrimSpace(content), nil
}

func newCampaignBuilder(deps Deps) plugin.RegisterFunc {
	return func(center *plugin.Center, _ *config.Config, entry config.PluginManifestEntry) error {
		p := &campaignPlugin{llm: deps.LLM, cache: deps.Cache}
		return center.Register(entry.Name, plugin.KindWorkflow, plugin.Hooks{
			GetOutput: p.getOutput,
		})
	}
}

// RegisterWorkflows exposes generation workflow plugins as orchestrator
// steps: a workflow step delegates to the generation center plugin of the
// same name and maps its content into a state increment.
func RegisterWorkflows(registry *plugin.Registry, generationCenter *plugin.Center) {
	registry.RegisterWorkflow("campaign_plan", func(_ *config.Config) (plugin.Workflow, error) {
		return plugin.WorkflowFunc(func(ctx context.Context, state *models.MetaState) (*plugin.Increment, error) {
			var input models.ProcessedInput
			if err := json.Unmarshal([]byte(state.UserInput), &input); err != nil {
				return nil, fmt.Errorf("state user_input undecodable: %w", err)
			}
			result := generationCenter.GetOutput(ctx, "campaign_plan", map[string]any{
				"query":    input.RawQuery,
				"topic":    input.StructuredData.Topic,
				"brand":    input.StructuredData.BrandName,
				"product":  input.StructuredData.ProductDesc,
				"analysis": state.Analysis,
			})
			content, _ := result["content"].(string)
			if content == "" {
				return nil, fmt.Errorf("campaign_plan plugin produced no content")
			}
			return &plugin.Increment{Content: content}, nil
		}), nil
	})
}
