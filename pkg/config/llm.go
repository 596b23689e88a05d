package config

import (
	"fmt"
	"os"
	"sync"
)

// Role names used by the router's task→role table.
const (
	RoleIntent     = "intent"
	RoleStrategy   = "strategy"
	RoleAnalysis   = "analysis"
	RoleEvaluation = "evaluation"
	RoleNarrative  = "thinking_narrative"
)

// LLMRegistry stores role and provider configurations with thread-safe access.
type LLMRegistry struct {
	roles     map[string]*RoleConfig
	providers map[string]*ProviderConfig
	mu        sync.RWMutex
}

// NewLLMRegistry creates a registry from parsed configuration.
func NewLLMRegistry(roles map[string]*RoleConfig, providers map[string]*ProviderConfig) *LLMRegistry {
	// Defensive copies to prevent external mutation
	copiedRoles := make(map[string]*RoleConfig, len(roles))
	for k, v := range roles {
		copiedRoles[k] = v
	}
	copiedProviders := make(map[string]*ProviderConfig, len(providers))
	for k, v := range providers {
		copiedProviders[k] = v
	}
	return &LLMRegistry{roles: copiedRoles, providers: copiedProviders}
}

// Role retrieves a role configuration by name.
func (r *LLMRegistry) Role(name string) (*RoleConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, exists := r.roles[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	return role, nil
}

// Provider retrieves a provider configuration by name.
func (r *LLMRegistry) Provider(name string) (*ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return provider, nil
}

// Resolve returns the role, its provider, and the API key for that provider.
// Fails with a descriptive error when the key env var is unset — this is the
// unrecoverable-misconfiguration path, surfaced at first use.
func (r *LLMRegistry) Resolve(roleName string) (*RoleConfig, *ProviderConfig, string, error) {
	role, err := r.Role(roleName)
	if err != nil {
		return nil, nil, "", err
	}
	provider, err := r.Provider(role.Provider)
	if err != nil {
		return nil, nil, "", fmt.Errorf("role %s: %w", roleName, err)
	}
	apiKey := os.Getenv(provider.APIKeyEnv)
	if apiKey == "" {
		return nil, nil, "", fmt.Errorf("%w: role %s requires %s",
			ErrAPIKeyMissing, roleName, provider.APIKeyEnv)
	}
	return role, provider, apiKey, nil
}

// HasRole checks if a role exists in the registry.
func (r *LLMRegistry) HasRole(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.roles[name]
	return exists
}

// RoleNames returns all configured role names.
func (r *LLMRegistry) RoleNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.roles))
	for name := range r.roles {
		names = append(names, name)
	}
	return names
}

// Len returns the number of configured roles.
func (r *LLMRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roles)
}
