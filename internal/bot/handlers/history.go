package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/database"
	"github.com/edgard/bymbot/internal/face"
)

const (
	dbSaveTimeout  = 5 * time.Second
	saveMaxRetries = 3
)

// StoreHistory serves the engine's history port from the messages table.
type StoreHistory struct {
	Store database.Store
}

// RecentHistory returns up to count stored messages of groupID, newest first.
func (h StoreHistory) RecentHistory(ctx context.Context, groupID int64, count int) ([]bym.HistoryEntry, error) {
	msgs, err := h.Store.GetRecentMessagesInChat(ctx, groupID, count)
	if err != nil {
		return nil, err
	}
	entries := make([]bym.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, bym.HistoryEntry{
			SenderID:    m.UserID,
			DisplayName: m.DisplayName,
			Role:        bym.Role(m.Role),
			Title:       m.Title,
			Time:        m.Timestamp,
			Text:        m.Content,
			MessageID:   m.PlatformMessageID,
		})
	}
	return entries, nil
}

// RecordInbound stores an inbound group message. Picture-only messages are
// stored with placeholder text so they still show up in history.
func RecordInbound(ctx context.Context, deps HandlerDeps, msg *bym.Message) {
	content := msg.Text
	if content == "" && len(msg.Images) > 0 {
		content = deps.Config.Engine.ImagePlaceholder
	}
	if content == "" {
		return
	}
	SaveMessageWithRetry(ctx, deps.Store, deps.Logger, &database.Message{
		ChatID:            msg.GroupID,
		UserID:            msg.SenderID,
		PlatformMessageID: msg.ID,
		DisplayName:       msg.SenderName,
		Role:              string(msg.SenderRole),
		Title:             msg.SenderTitle,
		Content:           content,
		Timestamp:         msg.Time,
	}, "incoming message")
}

// RecordingReplier stores every segment the bot sends so its own replies
// appear in later history.
type RecordingReplier struct {
	Next    bym.Replier
	Store   database.Store
	Logger  *slog.Logger
	// BotID returns the bot's own user id; 0 while it is still unknown.
	BotID   func() int64
	BotName string
	Now     func() time.Time
}

// Reply sends parts through Next and records them as a bot message once the
// send succeeds.
func (r *RecordingReplier) Reply(ctx context.Context, msg *bym.Message, parts []face.Part, opts bym.ReplyOptions) error {
	if err := r.Next.Reply(ctx, msg, parts, opts); err != nil {
		return err
	}

	botID := r.BotID()
	if botID == 0 {
		r.Logger.WarnContext(ctx, "Bot id unknown, skipping reply record", "chat_id", msg.GroupID)
		return nil
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	SaveMessageWithRetry(ctx, r.Store, r.Logger, &database.Message{
		ChatID:      msg.GroupID,
		UserID:      botID,
		DisplayName: r.BotName,
		Role:        string(msg.BotRole),
		Content:     face.Plain(parts),
		Timestamp:   now(),
	}, "bot reply")
	return nil
}

// SaveMessageWithRetry saves msg, retrying with a growing delay. Failures are
// logged, never returned.
func SaveMessageWithRetry(ctx context.Context, store database.Store, log *slog.Logger, msg *database.Message, msgType string) {
	var err error
	for i := range saveMaxRetries {
		if ctx.Err() != nil {
			log.WarnContext(ctx, fmt.Sprintf("Context cancelled, aborting %s save attempts", msgType),
				"error", ctx.Err(), "chat_id", msg.ChatID, "attempt", i+1)
			return
		}

		dbCtx, cancel := context.WithTimeout(ctx, dbSaveTimeout)
		err = store.SaveMessage(dbCtx, msg)
		cancel()
		if err == nil {
			log.DebugContext(ctx, fmt.Sprintf("%s saved", msgType), "db_message_id", msg.ID, "chat_id", msg.ChatID)
			return
		}

		log.WarnContext(ctx, fmt.Sprintf("Failed to save %s, retrying", msgType), "error", err, "chat_id", msg.ChatID, "attempt", i+1)
		if i < saveMaxRetries-1 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(500*(i+1)) * time.Millisecond):
			}
		}
	}
	log.ErrorContext(ctx, fmt.Sprintf("Failed to save %s after %d attempts", msgType, saveMaxRetries), "error", err, "chat_id", msg.ChatID)
}
