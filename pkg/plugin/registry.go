package plugin

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/deepthink-ai/deepthink/pkg/config"
	"github.com/deepthink-ai/deepthink/pkg/models"
)

// Increment is the field-wise state delta a workflow returns. The
// orchestrator merges Analysis, sets Content when non-empty, and appends
// UsedTags.
type Increment struct {
	Analysis map[string]any
	Content  string
	UsedTags []string
}

// Workflow is one compiled sub-graph the orchestrator can invoke by step
// name.
type Workflow interface {
	Run(ctx context.Context, state *models.MetaState) (*Increment, error)
}

// WorkflowFunc adapts a function to the Workflow interface.
type WorkflowFunc func(ctx context.Context, state *models.MetaState) (*Increment, error)

// Run implements Workflow.
func (f WorkflowFunc) Run(ctx context.Context, state *models.MetaState) (*Increment, error) {
	return f(ctx, state)
}

// Builder compiles one workflow from configuration.
type Builder func(cfg *config.Config) (Workflow, error)

// Registry is the single-instance registry of composable sub-workflow
// builders and their compiled graphs. It complements the Center: the Center
// exposes capability calls, the Registry exposes compiled sub-graphs.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
	compiled map[string]Workflow
}

// NewRegistry creates an empty workflow registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]Builder),
		compiled: make(map[string]Workflow),
	}
}

// RegisterWorkflow records a builder under a step name. Expected only during
// startup.
func (r *Registry) RegisterWorkflow(name string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
}

// InitWorkflows invokes each registered builder once and caches the compiled
// graph. A builder failure logs and is skipped; partial registration is
// acceptable.
func (r *Registry) InitWorkflows(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, builder := range r.builders {
		if _, done := r.compiled[name]; done {
			continue
		}
		wf, err := builder(cfg)
		if err != nil {
			slog.Error("Workflow builder failed, skipping", "workflow", name, "error", err)
			continue
		}
		r.compiled[name] = wf
	}
	slog.Info("Workflow registry initialized", "compiled", len(r.compiled))
}

// Workflow returns the compiled graph for the step name, or ok=false.
func (r *Registry) Workflow(name string) (Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.compiled[name]
	return wf, ok
}

// WorkflowNames returns the compiled workflow step names, sorted. The
// planner advertises these as plannable steps.
func (r *Registry) WorkflowNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.compiled))
	for name := range r.compiled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
