// Package logger provides structured logging for bymbot.
// It uses Go's slog package with configurable levels and formats.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewLogger creates a new slog Logger with the specified level and format.
// If jsonOutput is true, logs will be formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	return newLogger(os.Stdout, levelStr, jsonOutput)
}

// Discard returns a logger that drops everything. Used where a nil logger is passed.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLogger(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(levelStr),
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Middleware creates a logging middleware for the Telegram host.
// It logs each incoming update with a short preview of its text.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()

			logEntry := log.With("update_id", update.ID)

			updateType := "other"
			if msg := update.Message; msg != nil {
				updateType = "message"
				var userID int64
				if msg.From != nil {
					userID = msg.From.ID
				}
				text := msg.Text
				if text == "" {
					text = msg.Caption
				}
				logEntry = logEntry.With(
					"message_id", msg.ID,
					"chat_id", msg.Chat.ID,
					"chat_type", msg.Chat.Type,
					"user_id", userID,
					"text_preview", Truncate(text, 50),
					"photos", len(msg.Photo),
				)
			}
			logEntry = logEntry.With("update_type", updateType)

			logEntry.DebugContext(ctx, "Processing update")

			next(ctx, b, update)

			logEntry.DebugContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
