package core

// monitor.go reports datasets stuck in validating.
//
// A dataset can stay in validating if its worker died mid-run or a queued job
// was lost. There is no cancellation or automatic recovery for that, so the
// monitor only logs a warning per dataset for an operator to act on.

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/robodata/internal/config"
)

// StartStaleMonitor checks for stale validations immediately, then every
// CheckInterval, until ctx is cancelled.
func (s *Service) StartStaleMonitor(ctx context.Context, cfg config.MonitorConfig) {
	slog.Info("stale validation monitor started",
		"stale_after", cfg.StaleAfter,
		"check_interval", cfg.CheckInterval,
	)

	s.runStaleCheck(ctx, cfg.StaleAfter)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stale validation monitor stopped")
			return
		case <-ticker.C:
			s.runStaleCheck(ctx, cfg.StaleAfter)
		}
	}
}

// runStaleCheck logs every dataset validating since before now-staleAfter and
// returns how many it found.
func (s *Service) runStaleCheck(ctx context.Context, staleAfter time.Duration) int {
	start := time.Now()
	cutoff := s.now().Add(-staleAfter)
	filter := ListFilter{Status: StatusValidating, UpdatedBefore: cutoff}

	found := 0
	for page := 1; ; page++ {
		list, err := s.repo.List(ctx, filter, Pagination{Page: page, PageSize: MaxPageSize})
		if err != nil {
			slog.Error("stale validation check failed", "error", err)
			return found
		}
		for _, d := range list.Items {
			found++
			slog.Warn("dataset stuck in validating",
				"dataset_id", d.ID,
				"name", d.Name,
				"validating_since", d.UpdatedAt,
				"stale_for", s.now().Sub(d.UpdatedAt).Round(time.Second),
			)
		}
		if len(list.Items) < MaxPageSize || page*MaxPageSize >= list.Total {
			break
		}
	}

	slog.Debug("stale validation check completed",
		"stale", found,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return found
}
