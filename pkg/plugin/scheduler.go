package plugin

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// scheduler runs each scheduled plugin's refresh on its own cadence. It owns
// no persistent state; each refresh hook persists to the smart cache itself.
type scheduler struct {
	center *Center

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func newScheduler(center *Center) *scheduler {
	return &scheduler{center: center}
}

// start launches one refresh loop per scheduled plugin. Duplicate starts are
// no-ops.
func (s *scheduler) start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		slog.Warn("Scheduler already started, ignoring duplicate start", "brain", s.center.brain)
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	plugins := s.center.scheduledPlugins()
	var wg sync.WaitGroup
	for _, desc := range plugins {
		wg.Add(1)
		go func(desc *descriptor) {
			defer wg.Done()
			s.runLoop(ctx, desc)
		}(desc)
	}

	go func() {
		wg.Wait()
		close(s.done)
	}()

	slog.Info("Plugin scheduler started",
		"brain", s.center.brain, "scheduled_plugins", len(plugins))
}

// runLoop refreshes one plugin at its configured interval until cancelled.
// Refresh failures log and do not disturb other jobs; a refresh in flight at
// cancellation finishes its iteration and is not re-enqueued.
func (s *scheduler) runLoop(ctx context.Context, desc *descriptor) {
	ticker := time.NewTicker(desc.hooks.Schedule.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(desc)
		}
	}
}

// refresh runs one refresh iteration. Background refreshes ignore caller
// cancellation and run to completion, logging their own errors.
func (s *scheduler) refresh(desc *descriptor) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Plugin refresh panicked",
				"brain", s.center.brain, "plugin", desc.name, "panic", r)
		}
	}()
	if err := desc.hooks.Refresh(context.Background()); err != nil {
		slog.Error("Plugin refresh failed",
			"brain", s.center.brain, "plugin", desc.name, "error", err)
	}
}

// runInitialRefresh fires one refresh per scheduled plugin without awaiting
// completion. Called after startup is ready so priming never blocks lifespan.
func (s *scheduler) runInitialRefresh(_ context.Context) {
	for _, desc := range s.center.scheduledPlugins() {
		go s.refresh(desc)
	}
}

// stop cancels the loops and waits for them to exit. Idempotent: a second
// stop yields no error and no duplicate shutdown.
func (s *scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.cancel()
	<-s.done
	slog.Info("Plugin scheduler stopped", "brain", s.center.brain)
}
