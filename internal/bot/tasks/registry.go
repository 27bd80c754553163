package tasks

import "context"

// ScheduledTaskFunc is the signature of every scheduled task. The context is
// cancelled when the scheduler shuts down.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns every task keyed by the name used in the
// scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		"sql_maintenance":   newSQLMaintenanceTask(deps),
		"history_retention": newHistoryRetentionTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
