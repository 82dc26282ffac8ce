// Package main is the entrypoint for the digest bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/mfields/digestbot/internal/ai"
	"github.com/mfields/digestbot/internal/bot"
	"github.com/mfields/digestbot/internal/bot/tasks"
	"github.com/mfields/digestbot/internal/classifier"
	"github.com/mfields/digestbot/internal/config"
	"github.com/mfields/digestbot/internal/database"
	"github.com/mfields/digestbot/internal/discord"
	"github.com/mfields/digestbot/internal/ingest"
	"github.com/mfields/digestbot/internal/logger"
	"github.com/mfields/digestbot/internal/pacer"
	"github.com/mfields/digestbot/internal/profile"
	"github.com/mfields/digestbot/internal/quota"
	"github.com/mfields/digestbot/internal/summarize"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components, starts the orchestrator, and returns
// the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	provider, err := ai.New(ctx, cfg.AI, log)
	if err != nil {
		log.Error("Failed to initialize AI provider", "provider", cfg.AI.Provider, "error", err)
		return 1
	}

	var sink profile.Sink = profile.NopSink{}
	if cfg.Profile.BaseURL != "" {
		sink = profile.NewHTTPSink(cfg.Profile.BaseURL, cfg.Profile.Timeout, log)
	}

	clock := clockwork.NewRealClock()
	guard := quota.New(store, cfg.Quota.TrialMessageLimit, log)
	intro := classifier.New(provider, log)

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		log.Error("Failed to create Discord session", "error", err)
		return 1
	}

	pipeline := ingest.NewPipeline(
		store,
		guard,
		intro,
		provider,
		sink,
		discord.NewHistorySource(session),
		pacer.NewInterval(clock, cfg.Ingest.MessageDelay),
		pacer.NewInterval(clock, cfg.Ingest.PageDelay),
		cfg.Ingest.PageSize,
		log,
	)

	summarizer := summarize.New(
		store,
		provider,
		pacer.NewInterval(clock, cfg.Summary.BatchDelay),
		summarize.Config{BatchSize: cfg.Summary.BatchSize, Window: cfg.Summary.Window},
		log,
	)

	discordBot := discord.NewBot(session, pipeline, summarizer, store, guard, provider, cfg, log)

	taskDeps := tasks.TaskDeps{
		Logger:     log,
		Store:      store,
		Summarizer: summarizer,
	}
	scheduler, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(taskDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.New(log, discordBot, scheduler)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
