// Package handlers turns host events into engine input and serves the
// Telegram admin commands.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const unauthorizedMessage = "你没有权限使用这个命令。"

// AdminOnly lets only the configured Telegram admin through.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			userID := update.Message.From.ID
			adminID := deps.Config.Telegram.AdminUserID
			if adminID == 0 || userID != adminID {
				chatID := update.Message.Chat.ID
				log := deps.Logger.With("middleware", "AdminOnly")
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", chatID)
				_, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: unauthorizedMessage})
				if err != nil {
					log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", chatID)
				}
				return
			}
			next(ctx, bot, update)
		}
	}
}
