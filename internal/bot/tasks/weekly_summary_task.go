package tasks

import (
	"context"
	"fmt"
	"time"
)

// newWeeklySummaryTask creates the task that generates a fresh digest
// for every tracked guild. Per-guild failures are logged and do not
// stop the remaining guilds.
func newWeeklySummaryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "weekly_summary")

	return func(ctx context.Context) error {
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()

		guilds, err := deps.Store.ListGuilds(runCtx)
		if err != nil {
			return fmt.Errorf("failed to list guilds: %w", err)
		}

		var failed int
		for _, guild := range guilds {
			if runCtx.Err() != nil {
				return runCtx.Err()
			}

			summary, err := deps.Summarizer.Run(runCtx, guild.ID)
			if err != nil {
				log.ErrorContext(runCtx, "Guild summary failed", "guild_id", guild.ID, "error", err)
				failed++
				continue
			}
			if summary == nil {
				log.InfoContext(runCtx, "No new content for guild", "guild_id", guild.ID)
			}
		}

		if failed > 0 {
			return fmt.Errorf("summary failed for %d of %d guilds", failed, len(guilds))
		}
		return nil
	}
}
