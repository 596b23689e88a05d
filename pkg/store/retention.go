package store

import (
	"context"
	"log/slog"
	"time"
)

// RetentionService periodically deletes session documents past their
// retention window. Deletions are idempotent and safe to run from multiple
// processes.
type RetentionService struct {
	documents DocumentStore
	retention time.Duration
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetentionService creates the sweeper. Zero durations fall back to
// 24h retention and a 1h sweep interval.
func NewRetentionService(documents DocumentStore, retention, interval time.Duration) *RetentionService {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionService{
		documents: documents,
		retention: retention,
		interval:  interval,
	}
}

// Start launches the background sweep loop.
func (s *RetentionService) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Retention service started",
		"retention", s.retention, "interval", s.interval)
}

// Stop signals the sweep loop to exit and waits for it to finish. Safe to
// call more than once.
func (s *RetentionService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	slog.Info("Retention service stopped")
}

func (s *RetentionService) run(ctx context.Context) {
	defer close(s.done)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *RetentionService) sweep() {
	count, err := s.documents.DeleteExpired(context.Background(), s.retention)
	if err != nil {
		slog.Error("Retention: expired document cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted expired session documents", "count", count)
	}
}
