package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 15 * time.Minute
)

// CleanupService periodically clears one-time codes that expired unused.
type CleanupService struct {
	users    *UserRepository
	interval time.Duration
	now      func() time.Time
}

func NewCleanupService(users *UserRepository) *CleanupService {
	return &CleanupService{
		users:    users,
		interval: DefaultCleanupInterval,
		now:      time.Now,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting otp cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping otp cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) {
	cleared, err := s.users.ClearExpiredOTPs(ctx, s.now())
	if err != nil {
		slog.Error("error clearing expired otps", "component", "cleanup", "error", err)
	} else if cleared > 0 {
		slog.Info("cleared expired otps", "component", "cleanup", "count", cleared)
	}
}
