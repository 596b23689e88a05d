package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// fileConfig represents the complete deepthink.yaml file structure.
type fileConfig struct {
	Defaults     *Defaults             `yaml:"defaults"`
	Cache        *CacheConfig          `yaml:"cache"`
	Session      *SessionConfig        `yaml:"session"`
	Orchestrator *OrchestratorConfig   `yaml:"orchestrator"`
	Ports        *PortsConfig          `yaml:"ports"`
	Plugins      []PluginManifestEntry `yaml:"plugins"`
	TaskPlugins  map[string][]string   `yaml:"task_plugins"`
}

// llmFileConfig represents the llm-providers.yaml file structure: the
// interface-config registry keyed by role name plus the provider table.
type llmFileConfig struct {
	Roles     map[string]*RoleConfig     `yaml:"roles"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in defaults under user configuration
//  5. Build in-memory registries
//  6. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	fc, err := loadFileConfig(filepath.Join(configDir, "deepthink.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := mergo.Merge(fc, builtinDefaults()); err != nil {
		return nil, fmt.Errorf("failed to merge defaults: %w", err)
	}

	llm, err := loadLLMConfig(filepath.Join(configDir, "llm-providers.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load LLM configuration: %w", err)
	}

	cfg := &Config{
		configDir:    configDir,
		Defaults:     fc.Defaults,
		Cache:        fc.Cache,
		Session:      fc.Session,
		Orchestrator: fc.Orchestrator,
		Ports:        fc.Ports,
		LLMRegistry:  NewLLMRegistry(llm.Roles, llm.Providers),
		Plugins:      fc.Plugins,
		TaskPlugins:  fc.TaskPlugins,
	}

	if err := Validate(cfg, llm.Roles, llm.Providers); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized",
		"roles", stats.Roles,
		"plugins", stats.Plugins,
		"task_types", stats.TaskTypes)
	return cfg, nil
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Configuration file not found, using built-in defaults", "path", path)
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(ExpandEnv(data), &fc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidYAML, path, err)
	}
	return &fc, nil
}

func loadLLMConfig(path string) (*llmFileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var lc llmFileConfig
	if err := yaml.Unmarshal(ExpandEnv(data), &lc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidYAML, path, err)
	}
	return &lc, nil
}
