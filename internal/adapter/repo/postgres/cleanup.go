package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type retentionDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService handles data retention for failed interviews.
type CleanupService struct {
	Repo          retentionDeleter
	RetentionDays int
	now           func() time.Time
}

// NewCleanupService creates a cleanup service. retentionDays <= 0 disables it.
func NewCleanupService(repo retentionDeleter, retentionDays int) *CleanupService {
	return &CleanupService{Repo: repo, RetentionDays: retentionDays, now: time.Now}
}

// Enabled reports whether retention cleanup runs at all.
func (s *CleanupService) Enabled() bool { return s != nil && s.RetentionDays > 0 }

// CleanupOldData removes data older than the retention period.
func (s *CleanupService) CleanupOldData(ctx context.Context) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -s.RetentionDays)
	n, err := s.Repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=cleanup.run: %w", err)
	}
	slog.Info("data cleanup completed",
		slog.Int64("deleted_interviews", n),
		slog.Time("cutoff", cutoff),
	)
	return n, nil
}

// RunPeriodic starts a periodic cleanup job
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if !s.Enabled() {
		return
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if _, err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
