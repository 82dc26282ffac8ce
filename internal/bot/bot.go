// Package bot manages the lifecycle of the application's long-running
// components: the Discord gateway listener and the task scheduler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mfields/digestbot/internal/discord"
)

// Bot orchestrates the gateway listener and the scheduler.
type Bot struct {
	logger    *slog.Logger
	discord   *discord.Bot
	scheduler *Scheduler
}

// New creates the orchestrator.
func New(logger *slog.Logger, discordBot *discord.Bot, scheduler *Scheduler) *Bot {
	return &Bot{
		logger:    logger.With("component", "orchestrator"),
		discord:   discordBot,
		scheduler: scheduler,
	}
}

// Run starts all components and blocks until ctx is cancelled or a
// component fails. Shutdown is graceful: the scheduler waits for
// running jobs.
func (b *Bot) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Discord listener...")
		err := b.discord.Run(gCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("discord listener failed: %w", err)
		}
		return err
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()

		b.logger.Info("Stopping scheduler...")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return gCtx.Err()
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
