package trainer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron"
)

// ArchiveStale archives every record not completed within the archive window.
func (s *Service) ArchiveStale(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.workouts.ArchiveStale(ctx, now.Add(-s.archiveAfter), now)
	if err != nil {
		return 0, fmt.Errorf("archive stale workouts: %w", err)
	}
	s.logger.InfoContext(ctx, "archived stale workouts",
		slog.Int64("count", n),
		slog.Duration("after", s.archiveAfter))
	return n, nil
}

// ScheduleArchive registers the archive sweep on c under spec, e.g. "@daily".
func (s *Service) ScheduleArchive(c *cron.Cron, spec string) error {
	err := c.AddFunc(spec, func() {
		if _, err := s.ArchiveStale(context.Background()); err != nil {
			s.logger.Error("archive sweep failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule archive %q: %w", spec, err)
	}
	return nil
}
