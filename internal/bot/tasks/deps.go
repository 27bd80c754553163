// Package tasks holds the scheduled housekeeping jobs: database maintenance
// and message history retention.
package tasks

import (
	"log/slog"

	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/database"
)

// TaskDeps contains the dependencies shared by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
