// Package bus implements the in-process plugin event bus: registration-
// ordered fan-out with failure isolation and bounded recursive chains.
package bus

import (
	"log/slog"
	"sync"

	"github.com/deepthink-ai/deepthink/pkg/models"
)

// maxChainDepth caps recursive publishes triggered by handler follow-up
// events. At the cap the chain is dropped and logged.
const maxChainDepth = 32

// Handler is one bus plugin. CanHandle filters; Handle may return a
// follow-up event to publish.
type Handler interface {
	Name() string
	CanHandle(event models.PluginEvent) bool
	Handle(event models.PluginEvent) (*models.PluginEvent, error)
}

// Bus is the process-wide plugin event bus. Register is expected only during
// startup; Publish is safe for concurrent use in steady state.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Register appends a handler. Fan-out preserves registration order.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
	slog.Info("Bus handler registered", "handler", h.Name())
}

// Handlers returns a snapshot of the registered handlers.
func (b *Bus) Handlers() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, len(b.handlers))
	copy(out, b.handlers)
	return out
}

// Publish fans the event out to every registered handler in registration
// order. A handler's panic or error skips that handler only. Follow-up
// events returned by handlers are published recursively up to the chain
// depth cap.
//
// Per-event fan-out is sequential; concurrent publishers may interleave and
// must not assume global ordering across events.
func (b *Bus) Publish(event models.PluginEvent) {
	b.publish(event, 0)
}

func (b *Bus) publish(event models.PluginEvent, depth int) {
	if depth >= maxChainDepth {
		slog.Warn("Bus chain depth cap reached, dropping follow-up",
			"event_type", event.EventType, "source", event.Source, "depth", depth)
		return
	}

	for _, h := range b.Handlers() {
		if !b.canHandle(h, event) {
			continue
		}
		followUp := b.handle(h, event)
		if followUp != nil {
			b.publish(*followUp, depth+1)
		}
	}
}

// canHandle calls CanHandle under a panic barrier; errors skip the handler.
func (b *Bus) canHandle(h Handler, event models.PluginEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Bus handler panicked in CanHandle",
				"handler", h.Name(), "event_type", event.EventType, "panic", r)
			ok = false
		}
	}()
	return h.CanHandle(event)
}

// handle calls Handle under the same barrier.
func (b *Bus) handle(h Handler, event models.PluginEvent) (followUp *models.PluginEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Bus handler panicked in Handle",
				"handler", h.Name(), "event_type", event.EventType, "panic", r)
			followUp = nil
		}
	}()
	out, err := h.Handle(event)
	if err != nil {
		slog.Warn("Bus handler failed",
			"handler", h.Name(), "event_type", event.EventType, "error", err)
		return nil
	}
	return out
}
