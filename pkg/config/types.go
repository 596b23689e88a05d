// Package config loads, validates, and exposes the engine configuration:
// LLM role and provider registries, the plugin manifest, cache TTLs, and
// orchestrator guardrails.
package config

import "time"

// RoleConfig defines one LLM role from the interface-config registry.
// Each role resolves to a provider plus generation parameters.
type RoleConfig struct {
	// Provider name (required), resolved against the provider registry
	Provider string `yaml:"provider" validate:"required"`

	// Model name (required)
	Model string `yaml:"model" validate:"required"`

	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int64   `yaml:"max_tokens,omitempty"`
}

// ProviderConfig defines one OpenAI-compatible LLM provider endpoint.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url" validate:"required"`

	// Environment variable name holding the API key (required)
	APIKeyEnv string `yaml:"api_key_env" validate:"required"`
}

// PluginScheduleConfig configures a scheduled plugin's refresh cadence.
type PluginScheduleConfig struct {
	IntervalHours float64 `yaml:"interval_hours"`
}

// PluginManifestEntry declares one plugin to load into a brain's center at
// startup. Name must match a builder registered in the plugins package.
type PluginManifestEntry struct {
	Name     string                `yaml:"name"`
	Brain    string                `yaml:"brain"` // analysis, generation, strategy
	Kind     string                `yaml:"kind"`  // realtime, scheduled, workflow, skill
	Schedule *PluginScheduleConfig `yaml:"schedule,omitempty"`
}

// CacheConfig holds the Redis endpoint. An empty address selects the
// process-local memory store. TTL policy is fixed per key class in pkg/cache.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
}

// SessionConfig holds session KV settings.
type SessionConfig struct {
	TTL             time.Duration `yaml:"ttl,omitempty"`
	MaxThreadIndex  int           `yaml:"max_thread_index,omitempty"`
	MaxSessionIndex int           `yaml:"max_session_index,omitempty"`
}

// OrchestratorConfig bounds plan execution.
type OrchestratorConfig struct {
	// Per-capability-call timeout; default 90s
	StepTimeout time.Duration `yaml:"step_timeout,omitempty"`

	// Upper bound on the parallel fan-out subset
	MaxParallelSteps int `yaml:"max_parallel_steps,omitempty"`

	// Upper bound on plan length
	MaxPlanSteps int `yaml:"max_plan_steps,omitempty"`
}

// SearchConfig configures the web search port.
type SearchConfig struct {
	Adapter   string `yaml:"adapter,omitempty"` // mock | http
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// KnowledgeConfig configures the knowledge-base retrieval port.
type KnowledgeConfig struct {
	Adapter   string `yaml:"adapter,omitempty"` // mock | http
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// PortsConfig configures optional capability ports.
type PortsConfig struct {
	Search    SearchConfig    `yaml:"search,omitempty"`
	Knowledge KnowledgeConfig `yaml:"knowledge,omitempty"`
}

// Defaults contains system-wide defaults applied when components omit values.
type Defaults struct {
	// Role used when a task type has no explicit mapping and complexity is low
	FallbackRole string `yaml:"fallback_role,omitempty"`

	// Documents retention for session-bound parsed documents
	DocumentRetention time.Duration `yaml:"document_retention,omitempty"`

	// Sweep interval for the retention service
	RetentionInterval time.Duration `yaml:"retention_interval,omitempty"`
}
