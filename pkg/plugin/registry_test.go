package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepthink-ai/deepthink/pkg/config"
	"github.com/deepthink-ai/deepthink/pkg/models"
)

func TestRegistry_InitAndLookup(t *testing.T) {
	r := NewRegistry()
	r.RegisterWorkflow("campaign_plan", func(cfg *config.Config) (Workflow, error) {
		return WorkflowFunc(func(ctx context.Context, state *models.MetaState) (*Increment, error) {
			return &Increment{Content: "方案草稿"}, nil
		}), nil
	})
	r.RegisterWorkflow("broken", func(cfg *config.Config) (Workflow, error) {
		return nil, errors.New("missing dependency")
	})

	r.InitWorkflows(&config.Config{})

	wf, ok := r.Workflow("campaign_plan")
	require.True(t, ok)
	inc, err := wf.Run(context.Background(), &models.MetaState{})
	require.NoError(t, err)
	assert.Equal(t, "方案草稿", inc.Content)

	// A failed builder is skipped, not fatal.
	_, ok = r.Workflow("broken")
	assert.False(t, ok)

	_, ok = r.Workflow("never_registered")
	assert.False(t, ok)
}

func TestRegistry_WorkflowNames(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"video_script", "campaign_plan"} {
		r.RegisterWorkflow(name, func(cfg *config.Config) (Workflow, error) {
			return WorkflowFunc(func(ctx context.Context, state *models.MetaState) (*Increment, error) {
				return &Increment{}, nil
			}), nil
		})
	}
	assert.Empty(t, r.WorkflowNames(), "only compiled workflows are plannable")

	r.InitWorkflows(&config.Config{})
	assert.Equal(t, []string{"campaign_plan", "video_script"}, r.WorkflowNames())
}

func TestRegistry_InitIdempotent(t *testing.T) {
	r := NewRegistry()
	builds := 0
	r.RegisterWorkflow("once", func(cfg *config.Config) (Workflow, error) {
		builds++
		return WorkflowFunc(func(ctx context.Context, state *models.MetaState) (*Increment, error) {
			return &Increment{}, nil
		}), nil
	})

	r.InitWorkflows(&config.Config{})
	r.InitWorkflows(&config.Config{})
	assert.Equal(t, 1, builds)
}

func TestLoadPluginsForBrain(t *testing.T) {
	cfg := &config.Config{
		Plugins: []config.PluginManifestEntry{
			{Name: "kb", Brain: "analysis", Kind: "realtime"},
			{Name: "unknown", Brain: "analysis", Kind: "realtime"},
			{Name: "campaign_plan", Brain: "generation", Kind: "workflow"},
			{Name: "failing", Brain: "analysis", Kind: "realtime"},
		},
	}
	center := NewCenter("analysis")

	builders := map[string]RegisterFunc{
		"kb": func(c *Center, cfg *config.Config, entry config.PluginManifestEntry) error {
			return c.Register(entry.Name, KindRealtime, Hooks{GetOutput: noopOutput()})
		},
		"failing": func(c *Center, cfg *config.Config, entry config.PluginManifestEntry) error {
			return errors.New("cannot initialize")
		},
	}

	loaded := LoadPluginsForBrain(center, cfg, builders)

	// Only kb loads: unknown has no builder, failing errors, campaign_plan
	// targets a different brain.
	assert.Equal(t, 1, loaded)
	assert.True(t, center.Has("kb"))
	assert.False(t, center.Has("failing"))
	assert.False(t, center.Has("campaign_plan"))
}
