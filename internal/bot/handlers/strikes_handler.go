package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStrikesHandler returns a handler for /bym_strikes, listing the users
// currently flagged for role-override attempts.
func NewStrikesHandler(deps HandlerDeps) bot.HandlerFunc {
	return strikesHandler{deps}.Handle
}

type strikesHandler struct {
	deps HandlerDeps
}

func (h strikesHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "strikes")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	text := FormatStrikes(h.deps.Strikes.Snapshot())
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send strikes list", "error", err, "chat_id", chatID)
	}
}

// FormatStrikes renders a strike snapshot ordered by count, then user id.
func FormatStrikes(snapshot map[int64]int) string {
	if len(snapshot) == 0 {
		return "当前没有被标记的用户。"
	}
	ids := make([]int64, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b int64) int {
		if snapshot[a] != snapshot[b] {
			return snapshot[b] - snapshot[a]
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})

	var sb strings.Builder
	sb.WriteString("被标记的用户：")
	for _, id := range ids {
		fmt.Fprintf(&sb, "\n%d：%d 次", id, snapshot[id])
	}
	return sb.String()
}

// NewResetStrikesHandler returns a handler for /bym_reset_strikes.
func NewResetStrikesHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetStrikesHandler{deps}.Handle
}

type resetStrikesHandler struct {
	deps HandlerDeps
}

func (h resetStrikesHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "reset_strikes")
	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Reset handler called with nil Message or From", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID

	n := h.deps.Strikes.Reset()
	log.InfoContext(ctx, "Strikes reset by admin", "chat_id", chatID, "user_id", update.Message.From.ID, "cleared", n)

	text := fmt.Sprintf("已清除 %d 个用户的标记。", n)
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send reset confirmation", "error", err, "chat_id", chatID)
	}
}
