// Package bot wires the chat hosts and the scheduler together and runs them
// until shutdown.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/bymbot/internal/onebot"
)

// Bot runs every configured host alongside the scheduler.
type Bot struct {
	logger        *slog.Logger
	oneBot        *onebot.Client
	oneBotHandler onebot.Handler
	tgBot         *tgbot.Bot
	scheduler     *Scheduler
}

// Option attaches a host to the bot.
type Option func(*Bot)

// WithOneBot runs a OneBot connection delivering events to handler.
func WithOneBot(client *onebot.Client, handler onebot.Handler) Option {
	return func(b *Bot) {
		b.oneBot = client
		b.oneBotHandler = handler
	}
}

// WithTelegram runs a Telegram long-polling listener.
func WithTelegram(tg *tgbot.Bot) Option {
	return func(b *Bot) {
		b.tgBot = tg
	}
}

// NewBot creates the orchestrator. At least one host must be attached.
func NewBot(logger *slog.Logger, scheduler *Scheduler, opts ...Option) (*Bot, error) {
	b := &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		scheduler: scheduler,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.oneBot == nil && b.tgBot == nil {
		return nil, errors.New("no chat host configured")
	}
	return b, nil
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	if b.oneBot != nil {
		g.Go(func() error {
			b.logger.Info("Starting OneBot connection...")
			err := b.oneBot.Run(gCtx, b.oneBotHandler)
			b.logger.Info("OneBot connection stopped.")
			if err != nil && gCtx.Err() == nil {
				return fmt.Errorf("onebot connection failed: %w", err)
			}
			return nil
		})
	}

	if b.tgBot != nil {
		g.Go(func() error {
			b.logger.Info("Starting Telegram bot listener...")
			b.tgBot.Start(gCtx)
			b.logger.Info("Telegram bot listener stopped.")

			if gCtx.Err() == nil {
				b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
				return errors.New("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	if b.scheduler != nil {
		g.Go(func() error {
			b.logger.Info("Starting scheduler...")
			if err := b.scheduler.Start(gCtx); err != nil {
				b.logger.Error("Failed to start scheduler", "error", err)
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			b.logger.Info("Shutdown signal received, stopping scheduler...")

			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
