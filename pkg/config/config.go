package config

// Config is the umbrella configuration object returned by Initialize and
// used throughout the engine.
type Config struct {
	configDir string

	Defaults     *Defaults
	Cache        *CacheConfig
	Session      *SessionConfig
	Orchestrator *OrchestratorConfig
	Ports        *PortsConfig

	LLMRegistry *LLMRegistry

	// Plugins declared for loading at startup, in manifest order
	Plugins []PluginManifestEntry

	// TaskPlugins maps a task type to the generation plugins that can serve
	// it. Seeded with campaign_or_copy; other task types register by
	// convention through this map.
	TaskPlugins map[string][]string
}

// Stats contains statistics about loaded configuration.
type Stats struct {
	Roles     int
	Plugins   int
	TaskTypes int
}

// Stats returns configuration statistics for logging.
func (c *Config) Stats() Stats {
	s := Stats{Plugins: len(c.Plugins), TaskTypes: len(c.TaskPlugins)}
	if c.LLMRegistry != nil {
		s.Roles = c.LLMRegistry.Len()
	}
	return s
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// PluginsForTask returns the generation plugin list for a task type, or nil
// when the task type has no entry.
func (c *Config) PluginsForTask(taskType string) []string {
	return c.TaskPlugins[taskType]
}
