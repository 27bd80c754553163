// Package main is the entrypoint of the group chat bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/bymbot/internal/bot"
	"github.com/edgard/bymbot/internal/bot/handlers"
	"github.com/edgard/bymbot/internal/bot/tasks"
	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/database"
	"github.com/edgard/bymbot/internal/gemini"
	"github.com/edgard/bymbot/internal/llm"
	"github.com/edgard/bymbot/internal/logger"
	"github.com/edgard/bymbot/internal/onebot"
	"github.com/edgard/bymbot/internal/openai"
	"github.com/edgard/bymbot/internal/telegram"
	"github.com/edgard/bymbot/internal/tools"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	model, err := newModel(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize model backend", "provider", cfg.AI.Provider, "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:  log,
		Config:  cfg,
		Store:   store,
		Strikes: bym.NewStrikeRegistry(),
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	var opts []bot.Option

	if cfg.OneBot.Enabled {
		client, err := onebot.NewClient(cfg.OneBot, log)
		if err != nil {
			log.Error("Failed to create OneBot client", "error", err)
			return 1
		}
		host := onebot.NewHost(client, cfg.OneBot, nil, log)
		engine, err := newEngine(cfg, hDeps, model, host, client.SelfID, log.With("host", "onebot"))
		if err != nil {
			log.Error("Failed to create response engine", "host", "onebot", "error", err)
			return 1
		}
		opts = append(opts, bot.WithOneBot(client, handlers.NewOneBotHandler(hDeps, host, engine)))
	}

	if cfg.Telegram.Enabled {
		// The default handler needs the host, and the host needs the bot.
		var onMessage tgbot.HandlerFunc
		tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log,
			tgbot.WithMiddlewares(logger.Middleware(log)),
			tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
				onMessage(ctx, b, update)
			}),
		)
		if err != nil {
			log.Error("Failed to create Telegram bot", "error", err)
			return 1
		}

		cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
		if err != nil {
			log.Error("Failed to get bot info", "error", err)
			return 1
		}
		log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

		host := telegram.NewHost(tg, cfg.Telegram.Token, cfg.Telegram.BotInfo, store, log)
		botID := cfg.Telegram.BotInfo.ID
		engine, err := newEngine(cfg, hDeps, model, host, func() int64 { return botID }, log.With("host", "telegram"))
		if err != nil {
			log.Error("Failed to create response engine", "host", "telegram", "error", err)
			return 1
		}
		onMessage = handlers.NewGroupMessageHandler(hDeps, host, engine)

		if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
			log.Error("Failed to register Telegram handlers", "error", err)
			return 1
		}
		opts = append(opts, bot.WithTelegram(tg))
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app, err := bot.NewBot(log, sched, opts...)
	if err != nil {
		log.Error("Failed to create bot", "error", err)
		return 1
	}

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

func newModel(ctx context.Context, cfg *config.Config, log *slog.Logger) (llm.Model, error) {
	switch cfg.AI.Provider {
	case "gemini":
		return gemini.NewClient(ctx, cfg.Gemini, cfg.AI.MaxToolRounds, log)
	case "openai":
		return openai.New(&cfg.OpenAI, cfg.AI.MaxToolRounds, log)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
}

// chatHost is what one chat platform offers the engine and its tools.
type chatHost interface {
	bym.Replier
	bym.MemberDirectory
	bym.ImageFetcher
	tools.GroupAdmin
}

func newEngine(
	cfg *config.Config,
	hDeps handlers.HandlerDeps,
	model llm.Model,
	host chatHost,
	botID func() int64,
	log *slog.Logger,
) (*bym.Engine, error) {
	catalog := tools.Catalog(tools.Deps{
		Config:     cfg.Tools,
		Summarizer: model,
		Admin:      host,
		Stickers:   hDeps.Store,
		Logger:     log,
	})
	return bym.NewEngine(&cfg.Engine, bym.Deps{
		History: handlers.StoreHistory{Store: hDeps.Store},
		Replier: &handlers.RecordingReplier{
			Next:    host,
			Store:   hDeps.Store,
			Logger:  log,
			BotID:   botID,
			BotName: cfg.Engine.Labels[0],
		},
		Model:      model,
		Members:    host,
		Images:     host,
		Tools:      catalog,
		ImageNamer: tools.NewImageNamerFactory(hDeps.Store, host, log),
		Strikes:    hDeps.Strikes,
		Logger:     log,
	})
}
