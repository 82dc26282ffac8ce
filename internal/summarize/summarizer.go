// Package summarize turns a window of stored guild messages into one
// narrative summary via a two-stage map-reduce over the generation
// backend.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfields/digestbot/internal/database"
	"github.com/mfields/digestbot/internal/pacer"
)

// emptyBatchSentinel is the contract between the batch prompt and the
// reducer: a batch summary equal to this phrase (case-insensitive,
// trimmed) carries no content and is dropped.
const emptyBatchSentinel = "no meaningful content found"

// SummaryStore is the slice of the store the summarizer uses.
type SummaryStore interface {
	GetMessagesInWindow(ctx context.Context, guildID string, after, until time.Time) ([]*database.Message, error)
	GetLatestSummary(ctx context.Context, guildID string) (*database.Summary, error)
	SaveSummary(ctx context.Context, summary *database.Summary) error
}

// Generator is the slice of the AI provider the summarizer needs.
type Generator interface {
	GenerateResponse(ctx context.Context, prompt, contextText string) (string, error)
}

// Config holds the summarizer batching values.
type Config struct {
	// BatchSize is the number of messages per map-stage batch.
	BatchSize int
	// Window is how far back the first summary for a guild reaches.
	Window time.Duration
}

// Summarizer runs the map-reduce summarization for one guild at a time.
type Summarizer struct {
	store      SummaryStore
	generator  Generator
	batchPacer pacer.Pacer
	cfg        Config
	log        *slog.Logger
}

// New creates a Summarizer.
func New(store SummaryStore, generator Generator, batchPacer pacer.Pacer, cfg Config, log *slog.Logger) *Summarizer {
	return &Summarizer{
		store:      store,
		generator:  generator,
		batchPacer: batchPacer,
		cfg:        cfg,
		log:        log.With("component", "summarizer"),
	}
}

// Run summarizes the guild's messages since the prior summary's window
// end (or the configured window if none exists) and persists a new
// summary row. Any generation failure aborts the run with nothing
// committed, so the caller may retry the whole run. Returns nil, nil
// when the window holds no messages or no meaningful content.
func (s *Summarizer) Run(ctx context.Context, guildID string) (*database.Summary, error) {
	now := time.Now().UTC()

	prior, err := s.store.GetLatestSummary(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior summary for guild %s: %w", guildID, err)
	}

	start := now.Add(-s.cfg.Window)
	if prior != nil {
		start = prior.EndDate
	}

	messages, err := s.store.GetMessagesInWindow(ctx, guildID, start, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages for guild %s: %w", guildID, err)
	}
	if len(messages) == 0 {
		s.log.InfoContext(ctx, "No messages in window, skipping summary", "guild_id", guildID, "start", start)
		return nil, nil
	}

	batchSummaries, err := s.mapBatches(ctx, messages)
	if err != nil {
		return nil, err
	}
	if len(batchSummaries) == 0 {
		s.log.InfoContext(ctx, "All batches empty, skipping summary", "guild_id", guildID)
		return nil, nil
	}

	final, err := s.reduce(ctx, batchSummaries, prior)
	if err != nil {
		return nil, err
	}

	summary := &database.Summary{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		StartDate: start,
		EndDate:   now,
		Summary:   final,
		CreatedAt: now,
	}
	if err := s.store.SaveSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to persist summary for guild %s: %w", guildID, err)
	}

	s.log.InfoContext(ctx, "Summary generated", "guild_id", guildID, "messages", len(messages), "batches", len(batchSummaries))
	return summary, nil
}

// mapBatches summarizes fixed-size batches of messages in chronological
// order, dropping batches the model reports as empty.
func (s *Summarizer) mapBatches(ctx context.Context, messages []*database.Message) ([]string, error) {
	var summaries []string

	for i := 0; i < len(messages); i += s.cfg.BatchSize {
		end := i + s.cfg.BatchSize
		if end > len(messages) {
			end = len(messages)
		}

		var lines strings.Builder
		for _, m := range messages[i:end] {
			lines.WriteString(m.Username)
			lines.WriteString(": ")
			lines.WriteString(m.Content)
			lines.WriteString("\n")
		}

		prompt := fmt.Sprintf(batchPrompt, lines.String())
		batchSummary, err := s.generator.GenerateResponse(ctx, prompt, "")
		if err != nil {
			return nil, fmt.Errorf("batch summary generation failed: %w", err)
		}

		if !strings.EqualFold(strings.TrimSpace(batchSummary), emptyBatchSentinel) {
			summaries = append(summaries, batchSummary)
		}

		if end < len(messages) {
			if err := s.batchPacer.Wait(ctx); err != nil {
				return nil, err
			}
		}
	}

	return summaries, nil
}

// reduce consolidates the surviving batch summaries, merging with the
// prior summary's narrative when one exists.
func (s *Summarizer) reduce(ctx context.Context, batchSummaries []string, prior *database.Summary) (string, error) {
	joined := strings.Join(batchSummaries, "\n\n")

	var prompt string
	if prior != nil {
		prompt = fmt.Sprintf(continuationPrompt, prior.Summary, joined)
	} else {
		prompt = fmt.Sprintf(finalPrompt, joined)
	}

	final, err := s.generator.GenerateResponse(ctx, prompt, "")
	if err != nil {
		return "", fmt.Errorf("final summary generation failed: %w", err)
	}
	return final, nil
}
