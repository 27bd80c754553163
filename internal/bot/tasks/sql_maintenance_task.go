package tasks

import (
	"context"
	"fmt"
	"time"
)

const maintenanceTimeout = 2 * time.Minute

// newSQLMaintenanceTask vacuums and analyzes the database.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled SQL maintenance task...")
		startTime := time.Now()

		ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		err := deps.Store.RunSQLMaintenance(ctx)
		duration := time.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", duration)
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled SQL maintenance task completed", "duration", duration)
		return nil
	}
}
