package bym

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/llm"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// Assembled is the output of context assembly, handed to the prompt guard.
type Assembled struct {
	History  string
	UserText string
	Image    *llm.Image
	Persona  Persona
}

// assembleOutcome tells the engine how to continue after assembly.
type assembleOutcome uint8

const (
	assembleReady assembleOutcome = iota
	assembleEmpty
	assembleReenter
)

// Assembler fetches and renders the history window and prepares the user turn.
type Assembler struct {
	cfg     *config.EngineConfig
	history History
	images  ImageFetcher
	loc     *time.Location
	log     *slog.Logger
}

// NewAssembler builds an assembler. images may be nil, in which case image
// messages are sent to the model as placeholder text only.
func NewAssembler(cfg *config.EngineConfig, history History, images ImageFetcher, log *slog.Logger) *Assembler {
	return &Assembler{
		cfg:     cfg,
		history: history,
		images:  images,
		loc:     cfg.Location(),
		log:     log,
	}
}

// Assemble prepares the context for msg. When the message has neither text
// nor image it reports assembleReenter for addressed messages that have not
// been re-entered yet, and assembleEmpty otherwise.
func (a *Assembler) Assemble(ctx context.Context, msg *Message, eff *EffectiveContext) (*Assembled, assembleOutcome, error) {
	out := &Assembled{
		UserText: msg.Text,
		Persona:  SelectPersona(a.cfg.AutoImageDescription, msg),
	}

	if strings.TrimSpace(msg.Text) == "" {
		if len(msg.Images) == 0 {
			if eff.IsAtBot && !msg.reentered {
				return nil, assembleReenter, nil
			}
			return nil, assembleEmpty, nil
		}
		out.UserText = a.cfg.ImagePlaceholder
	}
	if len(msg.Images) > 0 && a.images != nil {
		img, err := a.images.FetchImage(ctx, msg.Images[0])
		if err != nil {
			a.log.WarnContext(ctx, "Failed to fetch image, continuing without it",
				"error", err, "chat_id", msg.GroupID, "image", msg.Images[0])
		} else {
			out.Image = img
		}
	}

	if out.Persona == PersonaImageDescription {
		return out, assembleReady, nil
	}

	entries, err := a.history.RecentHistory(ctx, msg.GroupID, eff.ChatsList)
	if err != nil {
		return nil, assembleReady, fmt.Errorf("failed to fetch history for group %d: %w", msg.GroupID, err)
	}
	out.History = a.RenderHistory(entries)
	return out, assembleReady, nil
}

// RenderHistory drops blacklisted senders, sorts by time ascending and renders
// one line per entry.
func (a *Assembler) RenderHistory(entries []HistoryEntry) string {
	kept := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if a.cfg.IsBlacklisted(e.SenderID) {
			continue
		}
		kept = append(kept, e)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Time.Before(kept[j].Time)
	})

	lines := make([]string, 0, len(kept))
	for _, e := range kept {
		lines = append(lines, renderHistoryLine(e, a.loc))
	}
	return strings.Join(lines, "\n")
}

func renderHistoryLine(e HistoryEntry, loc *time.Location) string {
	title := e.Title
	if title == "" {
		title = "无"
	}
	return fmt.Sprintf("【%s】(qq：%d, %s, 群头衔：%s, 时间：%s, messageId: %s) 说：%s",
		e.DisplayName, e.SenderID, e.Role.Label(), title,
		e.Time.In(loc).Format(historyTimeLayout), e.MessageID, e.Text)
}
