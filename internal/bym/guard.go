package bym

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgard/bymbot/internal/config"
)

// GuardedPrompt is what the model receives.
type GuardedPrompt struct {
	System   string
	UserText string
	// Recall asks the dispatcher to retract sent segments after a delay.
	Recall bool
	// Warnings lists the injected warning lines, in order.
	Warnings []string
}

// Guard applies substitutions and anti-override safeguards, then composes the
// system prompt.
type Guard struct {
	cfg     *config.EngineConfig
	strikes *StrikeRegistry
	loc     *time.Location
	log     *slog.Logger
}

// NewGuard builds a guard that records strikes in strikes.
func NewGuard(cfg *config.EngineConfig, strikes *StrikeRegistry, log *slog.Logger) *Guard {
	return &Guard{cfg: cfg, strikes: strikes, loc: cfg.Location(), log: log}
}

// Build composes the guarded prompt for msg.
func (g *Guard) Build(ctx context.Context, msg *Message, eff *EffectiveContext, a *Assembled, now time.Time) *GuardedPrompt {
	out := &GuardedPrompt{UserText: a.UserText}
	text := a.UserText

	if eff.IsAtBot {
		for _, s := range g.cfg.Substitutions {
			text = strings.ReplaceAll(text, s.From, s.To)
		}
		out.UserText = text
	}

	if containsAny(text, g.cfg.BlockedPhrases) {
		for range blockedWarningRepeat {
			out.Warnings = append(out.Warnings, BlockedPhraseWarning)
		}
		out.UserText = g.cfg.BlockedPlaceholder
		g.log.InfoContext(ctx, "Blocked phrase intercepted", "chat_id", msg.GroupID, "user_id", msg.SenderID)
	}

	preset := g.cfg.Preset
	if eff.IsAtBot && containsAny(text, g.cfg.AbuseTriggers) {
		preset += g.cfg.FightBackPrompt
		out.Recall = true
	}

	if eff.IsAtBot {
		if utf8.RuneCountInString(text) >= eff.MaxText && !containsAny(text, g.cfg.BenignLongMarkers) {
			n := g.strikes.Strike(msg.SenderID)
			out.Warnings = append(out.Warnings, RoleOverrideWarning)
			g.log.InfoContext(ctx, "Suspected role override", "chat_id", msg.GroupID, "user_id", msg.SenderID, "strikes", n)
		} else {
			g.strikes.Decay(msg.SenderID)
		}
	}

	in := personaInput{
		Label:       g.label(),
		GroupID:     msg.GroupID,
		SpeakerName: msg.SenderName,
		SpeakerID:   msg.SenderID,
		Preset:      preset,
		History:     a.History,
		Now:         now.In(g.loc),
	}
	if su, ok := g.cfg.SpecialUser(msg.SenderID); ok {
		in.SpecialNotice = formatSpecialNotice(su)
	}

	system := a.Persona.render(in)
	if len(out.Warnings) > 0 {
		system += "\n" + strings.Join(out.Warnings, "\n")
	}
	out.System = system
	return out
}

func (g *Guard) label() string {
	if len(g.cfg.Labels) == 0 {
		return ""
	}
	return g.cfg.Labels[0]
}

func formatSpecialNotice(su config.SpecialUser) string {
	return fmt.Sprintf(SpecialUserNoticeFormat, su.ID, su.Name)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}
