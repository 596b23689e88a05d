package plugins

import (
	"github.com/deepthink-ai/deepthink/pkg/cache"
	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/models"
	"github.com/deepthink-ai/deepthink/pkg/plugin"
	"github.com/deepthink-ai/deepthink/pkg/ports"
)

// Deps are the shared collaborators the built-in plugins close over.
type Deps struct {
	Cache *cache.SmartCache
	Ports *ports.Capabilities
	LLM   llm.Invoker
}

// Builders returns the builder table consumed by plugin.LoadPluginsForBrain,
// keyed by manifest plugin name.
func Builders(deps Deps) map[string]plugin.RegisterFunc {
	return map[string]plugin.RegisterFunc{
		models.StepBilibiliHotspot: newHotspotBuilder(models.StepBilibiliHotspot, deps),
		models.StepWeiboHotspot:    newHotspotBuilder(models.StepWeiboHotspot, deps),
		models.StepDouyinHotspot:   newHotspotBuilder(models.StepDouyinHotspot, deps),
		"kb":                       newKBBuilder(deps),
		"campaign_plan":            newCampaignBuilder(deps),
	}
}
