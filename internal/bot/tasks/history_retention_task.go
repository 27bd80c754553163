package tasks

import (
	"context"
	"fmt"
	"time"
)

// newHistoryRetentionTask deletes stored messages older than the configured
// retention window. A zero window keeps everything.
func newHistoryRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	return newHistoryRetentionTaskAt(deps, time.Now)
}

func newHistoryRetentionTaskAt(deps TaskDeps, now func() time.Time) ScheduledTaskFunc {
	log := deps.Logger.With("task", "history_retention")

	return func(ctx context.Context) error {
		days := deps.Config.Database.RetentionDays
		if days <= 0 {
			log.DebugContext(ctx, "History retention disabled, nothing to do")
			return nil
		}

		cutoff := now().AddDate(0, 0, -days)
		ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		n, err := deps.Store.DeleteMessagesBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Failed to delete old messages", "error", err, "cutoff", cutoff)
			return fmt.Errorf("history retention failed: %w", err)
		}

		log.InfoContext(ctx, "Deleted old messages", "count", n, "cutoff", cutoff, "retention_days", days)
		return nil
	}
}
