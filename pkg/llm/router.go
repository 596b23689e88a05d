package llm

import (
	"context"
	"log/slog"
	"sync"

	"github.com/deepthink-ai/deepthink/pkg/config"
)

// Task types routed by the router.
const (
	TaskChatReply  = "chat_reply"
	TaskPlanning   = "planning"
	TaskEvaluation = "evaluation"
	TaskAnalysis   = "analysis"
	TaskNarrative  = "narrative"
)

// Complexity levels for the default route.
const (
	ComplexityLow  = "low"
	ComplexityHigh = "high"
)

// Invoker is the interface consumed by the rest of the engine. Tests supply
// fakes; production uses *Router.
type Invoker interface {
	Invoke(ctx context.Context, messages []Message, taskType, complexity string) (string, error)
}

// Router selects a model role per (task type, complexity), creates clients
// lazily per role, and falls back once on failure.
type Router struct {
	registry *config.LLMRegistry

	mu      sync.Mutex
	clients map[string]*roleClient
}

// NewRouter creates a router over the interface-config registry.
func NewRouter(registry *config.LLMRegistry) *Router {
	return &Router{
		registry: registry,
		clients:  make(map[string]*roleClient),
	}
}

// roleFor maps a task to its model role.
func (r *Router) roleFor(taskType, complexity string) string {
	switch taskType {
	case TaskChatReply:
		return config.RoleIntent
	case TaskPlanning:
		return config.RoleStrategy
	case TaskEvaluation:
		return config.RoleEvaluation
	case TaskAnalysis:
		return config.RoleAnalysis
	case TaskNarrative:
		if r.registry.HasRole(config.RoleNarrative) {
			return config.RoleNarrative
		}
		return config.RoleIntent
	}
	if complexity == ComplexityHigh {
		return config.RoleStrategy
	}
	return config.RoleIntent
}

// fallbackFor returns the opposite of strategy/intent for the one-shot
// failure fallback.
func fallbackFor(role string) string {
	if role == config.RoleStrategy {
		return config.RoleIntent
	}
	return config.RoleStrategy
}

// Invoke sends the messages to the role selected for (taskType, complexity).
// On any error from the primary role it falls back once to the opposite of
// strategy/intent and logs; a fallback failure propagates.
func (r *Router) Invoke(ctx context.Context, messages []Message, taskType, complexity string) (string, error) {
	primary := r.roleFor(taskType, complexity)

	text, err := r.invokeRole(ctx, primary, messages)
	if err == nil {
		return text, nil
	}

	fallback := fallbackFor(primary)
	slog.Warn("LLM primary role failed, falling back",
		"task_type", taskType, "primary", primary, "fallback", fallback, "error", err)

	text, ferr := r.invokeRole(ctx, fallback, messages)
	if ferr != nil {
		return "", ferr
	}
	return text, nil
}

func (r *Router) invokeRole(ctx context.Context, role string, messages []Message) (string, error) {
	client, err := r.clientFor(role)
	if err != nil {
		return "", err
	}
	return client.complete(ctx, messages)
}

// clientFor returns the cached client for a role, constructing it on first
// use. Construction errors (missing key, unknown role) propagate to the
// caller with a descriptive message.
func (r *Router) clientFor(role string) (*roleClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[role]; ok {
		return client, nil
	}
	client, err := newRoleClient(r.registry, role)
	if err != nil {
		return nil, err
	}
	r.clients[role] = client
	return client, nil
}
