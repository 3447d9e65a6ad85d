// Package refresh keeps the in-memory RAG index in sync with the database.
package refresh

import (
	"context"
	"log/slog"
	"time"
)

// Reloader rebuilds the RAG index from its backing store.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// Service periodically reloads the RAG index so entries added or disabled
// out of band (seeding scripts, admin edits) become visible without a
// restart. Reload is idempotent and safe to run from multiple replicas.
type Service struct {
	interval time.Duration
	reloader Reloader
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a refresh service. interval <= 0 defaults to one hour.
func NewService(interval time.Duration, reloader Reloader, logger *slog.Logger) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		interval: interval,
		reloader: reloader,
		logger:   logger,
	}
}

// Start launches the background refresh loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("RAG refresh service started", "interval", s.interval)
}

// Stop signals the refresh loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("RAG refresh service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reload(ctx)
		}
	}
}

func (s *Service) reload(ctx context.Context) {
	count, err := s.reloader.Reload(ctx)
	if err != nil {
		s.logger.Error("Scheduled RAG reload failed", "error", err)
		return
	}
	s.logger.Debug("Scheduled RAG reload complete", "entries", count)
}
