// Package quota implements per-guild admission control: guilds with an
// active subscription process freely, others are held to a fixed trial
// message limit.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mfields/digestbot/internal/database"
)

// TrialLimitMessage is sent to users once a guild exhausts its trial.
const TrialLimitMessage = "⚠️ Trial limit reached! Please purchase a subscription to continue using the bot. " +
	"Contact the bot owner for subscription details."

// GuildStore is the slice of the store the guard needs.
type GuildStore interface {
	GetGuild(ctx context.Context, guildID string) (*database.Guild, error)
	IncrementMessagesProcessed(ctx context.Context, guildID string) error
}

// Guard makes admission decisions and records usage for guilds.
type Guard struct {
	store GuildStore
	limit int64
	log   *slog.Logger
}

// New creates a Guard with the given trial message limit.
func New(store GuildStore, trialLimit int64, log *slog.Logger) *Guard {
	return &Guard{
		store: store,
		limit: trialLimit,
		log:   log.With("component", "quota_guard"),
	}
}

// CanProcess reports whether the guild may have a message processed:
// true with an active subscription or while under the trial limit.
// Unknown guilds are denied (fail closed).
func (g *Guard) CanProcess(ctx context.Context, guildID string) (bool, error) {
	guild, err := g.store.GetGuild(ctx, guildID)
	if errors.Is(err, database.ErrGuildNotFound) {
		g.log.DebugContext(ctx, "Unknown guild, denying admission", "guild_id", guildID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load guild for admission check: %w", err)
	}

	if guild.HasActiveSubscription {
		return true, nil
	}
	return guild.MessagesProcessed < g.limit, nil
}

// RecordProcessed increments the guild's lifetime processed counter by
// exactly one and refreshes its last-active timestamp. Must be called
// only after the message has been durably stored so the count never
// exceeds actual stored messages. Unknown guilds are a no-op.
func (g *Guard) RecordProcessed(ctx context.Context, guildID string) error {
	if err := g.store.IncrementMessagesProcessed(ctx, guildID); err != nil {
		return fmt.Errorf("failed to record processed message: %w", err)
	}
	return nil
}

// StatusMessage returns a user-facing warning once the trial limit is
// reached without an active subscription; otherwise an empty string.
func (g *Guard) StatusMessage(ctx context.Context, guildID string) (string, error) {
	guild, err := g.store.GetGuild(ctx, guildID)
	if errors.Is(err, database.ErrGuildNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load guild for status message: %w", err)
	}

	if guild.HasActiveSubscription || guild.MessagesProcessed < g.limit {
		return "", nil
	}
	return TrialLimitMessage, nil
}
