package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/credfort/credfort-backend/internal/repository"
)

// CleanupService sweeps expired session rows in the background. The login
// ledger is never touched: it is append-only and retention is an operator
// concern.
type CleanupService struct {
	sessions repository.SessionRepository
	interval time.Duration
	log      *slog.Logger
	stopCh   chan struct{}
}

// NewCleanupService creates a cleanup service. Zero interval defaults to one
// hour.
func NewCleanupService(sessions repository.SessionRepository, interval time.Duration, log *slog.Logger) *CleanupService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &CleanupService{
		sessions: sessions,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the background sweep goroutine.
func (s *CleanupService) Start(ctx context.Context) {
	s.log.Info("Starting session cleanup", "interval", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Run immediately on start
		s.runCleanup(ctx)

		for {
			select {
			case <-ticker.C:
				s.runCleanup(ctx)
			case <-s.stopCh:
				s.log.Info("Session cleanup stopped")
				return
			case <-ctx.Done():
				s.log.Info("Session cleanup context cancelled")
				return
			}
		}
	}()
}

// Stop stops the cleanup service.
func (s *CleanupService) Stop() {
	close(s.stopCh)
}

func (s *CleanupService) runCleanup(ctx context.Context) {
	start := time.Now()
	if err := s.sessions.DeleteExpiredSessions(ctx, time.Now()); err != nil {
		s.log.Error("Session sweep failed", "error", err)
		return
	}
	s.log.Debug("Session sweep completed", "duration_ms", time.Since(start).Milliseconds())
}
