package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/bymbot/internal/telegram"
)

// RegisterAllCommands returns every Telegram command keyed by its name.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.RegisteredHandler {
	handlers := make(map[string]telegram.RegisteredHandler)

	handlers["/start"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}

	handlers["/bym_strikes"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "bym_strikes",
		Handler:     NewStrikesHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}
	handlers["/bym_reset_strikes"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "bym_reset_strikes",
		Handler:     NewResetStrikesHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}

	return handlers
}
