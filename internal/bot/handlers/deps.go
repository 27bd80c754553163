package handlers

import (
	"log/slog"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/database"
)

// HandlerDeps provides dependencies for message and command handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Store   database.Store
	Strikes *bym.StrikeRegistry
}
