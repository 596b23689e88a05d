// Package plugins holds the engine's built-in plugins: the scheduled
// platform hotspot briefings, the realtime knowledge-base analysis plugin,
// and the campaign-plan generation workflow. Builders register them into the
// brain centers from the startup manifest.
package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deepthink-ai/deepthink/pkg/cache"
	"github.com/deepthink-ai/deepthink/pkg/config"
	"github.com/deepthink-ai/deepthink/pkg/models"
	"github.com/deepthink-ai/deepthink/pkg/plugin"
	"github.com/deepthink-ai/deepthink/pkg/ports"
)

const (
	hotspotFetchLimit      = 10
	defaultRefreshInterval = 6 * time.Hour
)

// hotspotPlugin caches one platform's trending briefing. The request path
// only ever reads the cache; fetching happens on the refresh schedule.
type hotspotPlugin struct {
	step     string // plan step name, also the analysis key
	platform string
	source   ports.Hotspot
	cache    *cache.SmartCache
}

func (h *hotspotPlugin) cacheKey() string {
	return cache.PrefixHotspot + h.platform
}

// refresh fetches the platform's trending items and rewrites the cached
// briefing.
func (h *hotspotPlugin) refresh(ctx context.Context) error {
	items, err := h.source.Fetch(ctx, h.platform, hotspotFetchLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch %s hotspots: %w", h.platform, err)
	}
	h.cache.Set(ctx, h.cacheKey(), h.briefing(items), cache.TTLHotspot)
	return nil
}

// briefing renders the trending items as a compact text block for prompt
// inclusion.
func (h *hotspotPlugin) briefing(items []ports.HotspotItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s当前热点（%s 更新）：\n", h.platform, time.Now().Format("01-02 15:04"))
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s", i+1, item.Title)
		if item.Heat > 0 {
			fmt.Fprintf(&sb, "（热度 %d", item.Heat)
			if item.Category != "" {
				sb.WriteString("，" + item.Category)
			}
			sb.WriteString("）")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// getOutput reads the cached briefing. A cold cache yields the documented
// placeholder rather than a fetch on the request path.
func (h *hotspotPlugin) getOutput(ctx context.Context, _ map[string]any) (map[string]any, error) {
	var briefing string
	if !h.cache.Get(ctx, h.cacheKey(), &briefing) || briefing == "" {
		briefing = fmt.Sprintf("暂无%s热点数据，后台正在刷新，请稍后再试。", h.platform)
	}
	return map[string]any{"analysis": map[string]any{h.step: briefing}}, nil
}

// hotspotSteps maps the manifest plugin names to their platforms.
var hotspotSteps = map[string]string{
	models.StepBilibiliHotspot: "B站",
	models.StepWeiboHotspot:    "微博",
	models.StepDouyinHotspot:   "抖音",
}

// newHotspotBuilder builds the register function for one hotspot plugin.
func newHotspotBuilder(step string, deps Deps) plugin.RegisterFunc {
	return func(center *plugin.Center, _ *config.Config, entry config.PluginManifestEntry) error {
		platform, ok := hotspotSteps[step]
		if !ok {
			return fmt.Errorf("unknown hotspot step %q", step)
		}
		p := &hotspotPlugin{
			step:     step,
			platform: platform,
			source:   deps.Ports.Hotspot,
			cache:    deps.Cache,
		}
		return center.Register(entry.Name, plugin.KindScheduled, plugin.Hooks{
			GetOutput: p.getOutput,
			Refresh:   p.refresh,
			Schedule:  plugin.ScheduleConfig{Interval: scheduleInterval(entry)},
		})
	}
}

// scheduleInterval resolves the manifest cadence, defaulting to six hours.
func scheduleInterval(entry config.PluginManifestEntry) time.Duration {
	if entry.Schedule != nil && entry.Schedule.IntervalHours > 0 {
		return time.Duration(entry.Schedule.IntervalHours * float64(time.Hour))
	}
	return defaultRefreshInterval
}
