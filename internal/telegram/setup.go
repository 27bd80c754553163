// Package telegram runs the engine in Telegram groups through go-telegram/bot.
package telegram

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
)

// RegisteredHandler is a command handler with its match rules and middleware.
type RegisteredHandler struct {
	HandlerType bot.HandlerType
	Pattern     string
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
	MatchType   bot.MatchType
}

// NewTelegramBot creates a go-telegram/bot instance.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, errors.New("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	log.Info("Telegram bot instance created", "token_prefix", prefix+"...")
	return b, nil
}

// applyMiddleware wraps handler so that mw[0] is the outermost layer.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers command handlers with b, applying each one's middleware.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registered map[string]RegisteredHandler) error {
	if b == nil {
		return errors.New("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(registered) == 0 {
		log.Warn("No handlers provided for registration")
		return nil
	}

	for name, h := range registered {
		if h.Handler == nil {
			log.Warn("Skipping registration for nil handler", "command", name)
			continue
		}
		b.RegisterHandler(h.HandlerType, h.Pattern, h.MatchType, applyMiddleware(h.Handler, h.Middleware))
		log.Debug("Registered handler", "command", name, "match_type", h.MatchType, "middleware_count", len(h.Middleware))
	}

	log.Info("Registered Telegram handlers", "count", len(registered))
	return nil
}
