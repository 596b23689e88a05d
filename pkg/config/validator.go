package config

import "fmt"

// requiredRoles must exist in the role registry for the router's task table
// to resolve.
var requiredRoles = []string{RoleIntent, RoleStrategy, RoleAnalysis, RoleEvaluation}

// Validate checks cross-references and required fields across the loaded
// configuration. Returns the first error found.
func Validate(cfg *Config, roles map[string]*RoleConfig, providers map[string]*ProviderConfig) error {
	for name, role := range roles {
		if role.Provider == "" {
			return NewValidationError("role", name, "provider", ErrMissingRequiredField)
		}
		if role.Model == "" {
			return NewValidationError("role", name, "model", ErrMissingRequiredField)
		}
		if _, ok := providers[role.Provider]; !ok {
			return NewValidationError("role", name, "provider",
				fmt.Errorf("%w: %s", ErrProviderNotFound, role.Provider))
		}
	}

	for name, provider := range providers {
		if provider.BaseURL == "" {
			return NewValidationError("provider", name, "base_url", ErrMissingRequiredField)
		}
		if provider.APIKeyEnv == "" {
			return NewValidationError("provider", name, "api_key_env", ErrMissingRequiredField)
		}
	}

	for _, required := range requiredRoles {
		if _, ok := roles[required]; !ok {
			return NewValidationError("role", required, "",
				fmt.Errorf("%w: required role missing", ErrRoleNotFound))
		}
	}

	for _, p := range cfg.Plugins {
		if p.Name == "" {
			return NewValidationError("plugin", "(unnamed)", "name", ErrMissingRequiredField)
		}
		if p.Brain == "" {
			return NewValidationError("plugin", p.Name, "brain", ErrMissingRequiredField)
		}
		switch p.Kind {
		case "realtime", "scheduled", "workflow", "skill":
		default:
			return NewValidationError("plugin", p.Name, "kind", ErrInvalidValue)
		}
		if p.Kind == "scheduled" {
			if p.Schedule == nil || p.Schedule.IntervalHours <= 0 {
				return NewValidationError("plugin", p.Name, "schedule.interval_hours",
					fmt.Errorf("%w: scheduled plugins need a positive interval", ErrInvalidValue))
			}
		}
	}

	if cfg.Orchestrator.MaxPlanSteps < 2 {
		return NewValidationError("orchestrator", "guardrails", "max_plan_steps", ErrInvalidValue)
	}
	if cfg.Orchestrator.MaxParallelSteps < 1 {
		return NewValidationError("orchestrator", "guardrails", "max_parallel_steps", ErrInvalidValue)
	}

	return nil
}
