package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const welcomeMessage = "你好，我是%s。把我拉进群里，我会偶尔加入你们的聊天；想找我的话，直接叫我的名字或者 @我。"

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID, "user_id", update.Message.From.ID)

	name := "小助手"
	if labels := h.deps.Config.Engine.Labels; len(labels) > 0 {
		name = labels[0]
	}
	text := fmt.Sprintf(welcomeMessage, name)
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", chatID)
	}
}
