package config

import "time"

// builtinDefaults are applied with mergo under user-provided configuration.
func builtinDefaults() *fileConfig {
	return &fileConfig{
		Defaults: &Defaults{
			FallbackRole:      RoleIntent,
			DocumentRetention: 72 * time.Hour,
			RetentionInterval: time.Hour,
		},
		Session: &SessionConfig{
			TTL:             24 * time.Hour,
			MaxThreadIndex:  50,
			MaxSessionIndex: 50,
		},
		Orchestrator: &OrchestratorConfig{
			StepTimeout:      90 * time.Second,
			MaxParallelSteps: 4,
			MaxPlanSteps:     6,
		},
		Ports: &PortsConfig{
			Search:    SearchConfig{Adapter: "mock"},
			Knowledge: KnowledgeConfig{Adapter: "mock"},
		},
		TaskPlugins: map[string][]string{
			"campaign_or_copy": {"campaign_plan"},
		},
	}
}
