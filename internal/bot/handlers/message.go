package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/onebot"
	"github.com/edgard/bymbot/internal/telegram"
)

// Engine consumes group messages.
type Engine interface {
	Handle(ctx context.Context, msg *bym.Message)
}

// NewOneBotHandler returns the OneBot event handler: every group message is
// recorded, then handed to the engine. The client already runs each event on
// its own goroutine.
func NewOneBotHandler(deps HandlerDeps, host *onebot.Host, engine Engine) onebot.Handler {
	log := deps.Logger.With("handler", "onebot_message")
	return func(ctx context.Context, evt *onebot.Event) {
		msg := host.Message(ctx, evt)
		log.DebugContext(ctx, "Group message received", "chat_id", msg.GroupID, "user_id", msg.SenderID, "at_me", msg.AtMe)
		RecordInbound(ctx, deps, msg)
		engine.Handle(ctx, msg)
	}
}

// NewGroupMessageHandler returns the Telegram default handler. Commands have
// their own handlers; everything else posted in a group goes to the engine.
func NewGroupMessageHandler(deps HandlerDeps, host *telegram.Host, engine Engine) bot.HandlerFunc {
	log := deps.Logger.With("handler", "telegram_message")
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		m := update.Message
		if m == nil || m.From == nil || m.From.IsBot || !telegram.IsGroup(m) {
			return
		}
		if m.Text == "" && m.Caption == "" && len(m.Photo) == 0 {
			log.DebugContext(ctx, "Ignoring message without text or photo", "update_id", update.ID)
			return
		}

		msg := host.Message(ctx, m)
		RecordInbound(ctx, deps, msg)
		// Replies are paced over several seconds; keep the update loop free.
		go engine.Handle(ctx, msg)
	}
}
