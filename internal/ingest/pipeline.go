// Package ingest implements the per-message ingestion pipeline and the
// rate-limited historical backfill that drives it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfields/digestbot/internal/database"
	"github.com/mfields/digestbot/internal/pacer"
	"github.com/mfields/digestbot/internal/profile"
)

// MessageStore is the slice of the store the pipeline writes to.
type MessageStore interface {
	MessageExists(ctx context.Context, guildID, messageID string) (bool, error)
	SaveMessage(ctx context.Context, message *database.Message) error
	TouchGuildActivity(ctx context.Context, guildID string) error
}

// QuotaGuard makes admission decisions and records usage.
type QuotaGuard interface {
	CanProcess(ctx context.Context, guildID string) (bool, error)
	RecordProcessed(ctx context.Context, guildID string) error
}

// Classifier decides whether a message is a self-introduction.
type Classifier interface {
	Classify(ctx context.Context, content string) (bool, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Pipeline orchestrates dedupe, quota, classification, embedding,
// persistence, and introduction forwarding for each message.
type Pipeline struct {
	store        MessageStore
	guard        QuotaGuard
	classifier   Classifier
	embedder     Embedder
	sink         profile.Sink
	source       Source
	messagePacer pacer.Pacer
	pagePacer    pacer.Pacer
	pageSize     int
	log          *slog.Logger
}

// NewPipeline wires the pipeline's collaborators together.
func NewPipeline(
	store MessageStore,
	guard QuotaGuard,
	classifier Classifier,
	embedder Embedder,
	sink profile.Sink,
	source Source,
	messagePacer, pagePacer pacer.Pacer,
	pageSize int,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:        store,
		guard:        guard,
		classifier:   classifier,
		embedder:     embedder,
		sink:         sink,
		source:       source,
		messagePacer: messagePacer,
		pagePacer:    pagePacer,
		pageSize:     pageSize,
		log:          log.With("component", "ingest_pipeline"),
	}
}

// ProcessMessage runs one message through the full ingestion path.
// Duplicates and quota denials return nil: the event is handled, the
// message simply isn't stored. An embedding or persistence failure
// aborts the message and propagates; the usage counter is only
// incremented after the message is durably stored.
func (p *Pipeline) ProcessMessage(ctx context.Context, msg InboundMessage) error {
	exists, err := p.store.MessageExists(ctx, msg.GuildID, msg.ID)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate message %s: %w", msg.ID, err)
	}
	if exists {
		p.log.DebugContext(ctx, "Skipping duplicate message", "guild_id", msg.GuildID, "message_id", msg.ID)
		return nil
	}

	allowed, err := p.guard.CanProcess(ctx, msg.GuildID)
	if err != nil {
		return fmt.Errorf("admission check failed for guild %s: %w", msg.GuildID, err)
	}
	if !allowed {
		p.log.InfoContext(ctx, "Skipping message, guild quota exhausted", "guild_id", msg.GuildID, "message_id", msg.ID)
		return nil
	}

	// Classification failure downgrades to "not an introduction" rather
	// than aborting the message.
	isIntro, err := p.classifier.Classify(ctx, msg.Content)
	if err != nil {
		p.log.WarnContext(ctx, "Classification failed, treating message as regular", "message_id", msg.ID, "error", err)
		isIntro = false
	}

	// Embedding is required for storage, so a failure here aborts.
	embedding, err := p.embedder.GenerateEmbedding(ctx, msg.Content)
	if err != nil {
		return fmt.Errorf("embedding failed for message %s: %w", msg.ID, err)
	}

	record := &database.Message{
		ID:             msg.ID,
		GuildID:        msg.GuildID,
		UserID:         msg.AuthorID,
		Username:       msg.AuthorName,
		Content:        msg.Content,
		ChannelID:      msg.ChannelID,
		CreatedAt:      msg.CreatedAt,
		CreatedAtLocal: time.Now().UTC(),
		Embedding:      database.EncodeEmbedding(embedding),
		IsIntroduction: isIntro,
	}

	if err := p.store.SaveMessage(ctx, record); err != nil {
		if errors.Is(err, database.ErrDuplicateMessage) {
			// Lost the race with another writer; the row exists, which
			// is all we wanted.
			return nil
		}
		return fmt.Errorf("failed to persist message %s: %w", msg.ID, err)
	}

	if err := p.store.TouchGuildActivity(ctx, msg.GuildID); err != nil {
		p.log.WarnContext(ctx, "Failed to refresh guild activity", "guild_id", msg.GuildID, "error", err)
	}

	if err := p.guard.RecordProcessed(ctx, msg.GuildID); err != nil {
		return fmt.Errorf("failed to record usage for guild %s: %w", msg.GuildID, err)
	}

	if isIntro {
		if err := p.sink.Submit(ctx, profile.Submission{Name: msg.AuthorName, Bio: msg.Content}); err != nil {
			p.log.ErrorContext(ctx, "Failed to forward introduction to profile sink", "message_id", msg.ID, "error", err)
		}
	}

	return nil
}

// Backfill ingests a channel's history in newest-first pages, feeding
// each non-bot message through ProcessMessage. Per-message errors are
// logged and skipped; pagination stops at the first empty page. Returns
// the number of successfully processed messages.
func (p *Pipeline) Backfill(ctx context.Context, guildID, channelID string) (int, error) {
	var beforeID string
	processed := 0

	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		page, err := p.source.FetchPage(ctx, channelID, p.pageSize, beforeID)
		if err != nil {
			return processed, fmt.Errorf("failed to fetch page before %q: %w", beforeID, err)
		}
		if len(page) == 0 {
			break
		}

		for _, msg := range page {
			if msg.IsBot {
				continue
			}
			if err := ctx.Err(); err != nil {
				return processed, err
			}

			if err := p.ProcessMessage(ctx, msg); err != nil {
				p.log.ErrorContext(ctx, "Failed to process historical message", "message_id", msg.ID, "error", err)
				continue
			}
			processed++

			if err := p.messagePacer.Wait(ctx); err != nil {
				return processed, err
			}
		}

		// Pages are newest-first, so the last entry is the oldest and
		// anchors the next fetch.
		beforeID = page[len(page)-1].ID
		p.log.InfoContext(ctx, "Backfill progress", "channel_id", channelID, "processed", processed)

		if err := p.pagePacer.Wait(ctx); err != nil {
			return processed, err
		}
	}

	p.log.InfoContext(ctx, "Backfill finished", "channel_id", channelID, "processed", processed)
	return processed, nil
}
