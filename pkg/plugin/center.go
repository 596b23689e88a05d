// Package plugin provides the per-brain plugin centers, their refresh
// scheduler, the startup loader, and the compiled-workflow registry.
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Kind classifies a plugin's lifecycle.
type Kind string

const (
	KindRealtime  Kind = "realtime"
	KindScheduled Kind = "scheduled"
	KindWorkflow  Kind = "workflow"
	KindSkill     Kind = "skill"
)

// GetOutputFunc executes a plugin against the caller's execution context and
// returns its result mapping.
type GetOutputFunc func(ctx context.Context, execCtx map[string]any) (map[string]any, error)

// RefreshFunc refreshes a scheduled plugin's cached output.
type RefreshFunc func(ctx context.Context) error

// ScheduleConfig configures a scheduled plugin's cadence.
type ScheduleConfig struct {
	Interval time.Duration
}

// Hooks are the callable surface a plugin registers.
type Hooks struct {
	GetOutput GetOutputFunc
	Refresh   RefreshFunc
	Schedule  ScheduleConfig
}

// descriptor is the center's record of one registered plugin.
type descriptor struct {
	name  string
	kind  Kind
	hooks Hooks
}

// Center is a plugin registry scoped to one brain (analysis, generation,
// strategy, …). Registration is expected only during startup; GetOutput is
// safe in steady state.
type Center struct {
	brain string

	mu      sync.RWMutex
	plugins map[string]*descriptor

	scheduler *scheduler
}

// NewCenter creates an empty center for the named brain.
func NewCenter(brain string) *Center {
	c := &Center{
		brain:   brain,
		plugins: make(map[string]*descriptor),
	}
	c.scheduler = newScheduler(c)
	return c
}

// Brain returns the brain name this center is scoped to.
func (c *Center) Brain() string { return c.brain }

// Register records a plugin. Invariant: scheduled plugins must carry a
// Refresh hook and a positive interval.
func (c *Center) Register(name string, kind Kind, hooks Hooks) error {
	if name == "" {
		return fmt.Errorf("plugin name required")
	}
	if hooks.GetOutput == nil {
		return fmt.Errorf("plugin %s: get_output hook required", name)
	}
	if kind == KindScheduled {
		if hooks.Refresh == nil {
			return fmt.Errorf("plugin %s: scheduled plugins require a refresh hook", name)
		}
		if hooks.Schedule.Interval <= 0 {
			return fmt.Errorf("plugin %s: scheduled plugins require a positive interval", name)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.plugins[name]; exists {
		return fmt.Errorf("plugin %s already registered in brain %s", name, c.brain)
	}
	c.plugins[name] = &descriptor{name: name, kind: kind, hooks: hooks}
	slog.Info("Plugin registered", "brain", c.brain, "plugin", name, "kind", kind)
	return nil
}

// Has reports whether the named plugin is registered.
func (c *Center) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.plugins[name]
	return ok
}

// List returns the sorted names of all registered plugins.
func (c *Center) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.plugins))
	for name := range c.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetOutput executes the named plugin. A missing plugin returns an empty
// map; any plugin error or panic is caught, logged, and returns an empty
// map. The caller merges the result by the analysis-merge convention.
func (c *Center) GetOutput(ctx context.Context, name string, execCtx map[string]any) map[string]any {
	c.mu.RLock()
	desc, ok := c.plugins[name]
	c.mu.RUnlock()

	if !ok {
		slog.Warn("Plugin not registered", "brain", c.brain, "plugin", name)
		return map[string]any{}
	}

	result, err := c.safeGetOutput(ctx, desc, execCtx)
	if err != nil {
		slog.Error("Plugin execution failed",
			"brain", c.brain, "plugin", name, "error", err)
		return map[string]any{}
	}
	if result == nil {
		return map[string]any{}
	}
	return result
}

func (c *Center) safeGetOutput(ctx context.Context, desc *descriptor, execCtx map[string]any) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("plugin panicked: %v", r)
		}
	}()
	return desc.hooks.GetOutput(ctx, execCtx)
}

// scheduledPlugins returns descriptors of all scheduled plugins.
func (c *Center) scheduledPlugins() []*descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*descriptor, 0)
	for _, desc := range c.plugins {
		if desc.kind == KindScheduled {
			out = append(out, desc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// StartScheduledTasks launches the periodic refresher for every scheduled
// plugin. Safe to call once per center.
func (c *Center) StartScheduledTasks(ctx context.Context) {
	c.scheduler.start(ctx)
}

// RunInitialRefresh primes each scheduled plugin's cache once without
// blocking the caller. First requests may legitimately observe an empty
// cache while the initial refresh is in flight.
func (c *Center) RunInitialRefresh(ctx context.Context) {
	c.scheduler.runInitialRefresh(ctx)
}

// StopScheduledTasks stops the refresher. Idempotent; in-flight refreshes
// finish their current iteration and are not re-enqueued.
func (c *Center) StopScheduledTasks() {
	c.scheduler.stop()
}
