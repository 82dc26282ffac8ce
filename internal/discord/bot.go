package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mfields/digestbot/internal/ai"
	"github.com/mfields/digestbot/internal/config"
	"github.com/mfields/digestbot/internal/database"
	"github.com/mfields/digestbot/internal/ingest"
	"github.com/mfields/digestbot/internal/quota"
	"github.com/mfields/digestbot/internal/summarize"
)

// Discord rejects messages above this length.
const maxMessageLength = 2000

// Bot registers gateway handlers and serves the chat commands.
type Bot struct {
	session    *discordgo.Session
	pipeline   *ingest.Pipeline
	summarizer *summarize.Summarizer
	store      database.Store
	guard      *quota.Guard
	provider   ai.Provider
	cfg        *config.Config
	log        *slog.Logger
}

// NewBot wires the handlers onto the session.
func NewBot(
	session *discordgo.Session,
	pipeline *ingest.Pipeline,
	summarizer *summarize.Summarizer,
	store database.Store,
	guard *quota.Guard,
	provider ai.Provider,
	cfg *config.Config,
	log *slog.Logger,
) *Bot {
	b := &Bot{
		session:    session,
		pipeline:   pipeline,
		summarizer: summarizer,
		store:      store,
		guard:      guard,
		provider:   provider,
		cfg:        cfg,
		log:        log.With("component", "discord_bot"),
	}

	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onMessageCreate)

	return b
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	b.log.Info("Discord gateway connected")

	<-ctx.Done()

	b.log.Info("Closing Discord gateway...")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord gateway: %w", err)
	}
	return ctx.Err()
}

func (b *Bot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	guild := &database.Guild{ID: g.ID, Name: g.Name}
	if err := b.store.UpsertGuild(ctx, guild); err != nil {
		b.log.ErrorContext(ctx, "Failed to track guild", "guild_id", g.ID, "error", err)
		return
	}
	b.log.InfoContext(ctx, "Guild tracked", "guild_id", g.ID, "guild_name", g.Name)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	prefix := b.cfg.Discord.CommandPrefix
	if strings.HasPrefix(m.Content, prefix) {
		b.handleCommand(ctx, m, strings.TrimPrefix(m.Content, prefix))
		return
	}

	if err := b.pipeline.ProcessMessage(ctx, toInbound(m.Message)); err != nil {
		b.log.ErrorContext(ctx, "Failed to ingest message", "guild_id", m.GuildID, "message_id", m.ID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, m *discordgo.MessageCreate, command string) {
	name, arg, _ := strings.Cut(command, " ")
	log := b.log.With("command", name, "guild_id", m.GuildID)

	switch name {
	case "digest":
		b.handleDigest(ctx, m, log)
	case "backfill":
		b.handleBackfill(ctx, m, log)
	case "ask":
		b.handleAsk(ctx, m, strings.TrimSpace(arg), log)
	default:
		log.DebugContext(ctx, "Ignoring unknown command")
	}
}

func (b *Bot) handleDigest(ctx context.Context, m *discordgo.MessageCreate, log *slog.Logger) {
	summary, err := b.summarizer.Run(ctx, m.GuildID)
	if err != nil {
		log.ErrorContext(ctx, "Summary run failed", "error", err)
		b.reply(m.ChannelID, "❌ Could not generate a summary right now. Please try again later.")
		return
	}

	if summary == nil {
		b.reply(m.ChannelID, "Nothing new to summarize yet.")
	} else {
		b.reply(m.ChannelID, summary.Summary)
	}

	status, err := b.guard.StatusMessage(ctx, m.GuildID)
	if err != nil {
		log.WarnContext(ctx, "Failed to check quota status", "error", err)
		return
	}
	if status != "" {
		b.reply(m.ChannelID, status)
	}
}

func (b *Bot) handleBackfill(ctx context.Context, m *discordgo.MessageCreate, log *slog.Logger) {
	if b.cfg.Discord.AdminUserID == "" || m.Author.ID != b.cfg.Discord.AdminUserID {
		b.reply(m.ChannelID, "🚫 Only the bot admin can start a backfill.")
		return
	}

	b.reply(m.ChannelID, "Starting historical backfill for this channel...")

	count, err := b.pipeline.Backfill(ctx, m.GuildID, m.ChannelID)
	if err != nil {
		log.ErrorContext(ctx, "Backfill aborted", "processed", count, "error", err)
		b.reply(m.ChannelID, fmt.Sprintf("⚠️ Backfill stopped early after %d messages.", count))
		return
	}

	b.reply(m.ChannelID, fmt.Sprintf("✅ Backfill finished: %d messages processed.", count))
}

func (b *Bot) handleAsk(ctx context.Context, m *discordgo.MessageCreate, question string, log *slog.Logger) {
	if question == "" {
		b.reply(m.ChannelID, "ℹ️ Usage: ask <question>")
		return
	}

	embedding, err := b.provider.GenerateEmbedding(ctx, question)
	if err != nil {
		log.ErrorContext(ctx, "Failed to embed question", "error", err)
		b.reply(m.ChannelID, "❌ Could not process the question right now.")
		return
	}

	matches, err := b.store.SearchSimilar(ctx, m.GuildID, embedding,
		b.cfg.Search.MatchThreshold, b.cfg.Search.MatchCount)
	if err != nil {
		log.ErrorContext(ctx, "Similarity search failed", "error", err)
		b.reply(m.ChannelID, "❌ Could not process the question right now.")
		return
	}
	if len(matches) == 0 {
		b.reply(m.ChannelID, "I couldn't find anything relevant in this server's history.")
		return
	}

	var contextText strings.Builder
	for _, match := range matches {
		contextText.WriteString(match.Username)
		contextText.WriteString(": ")
		contextText.WriteString(match.Content)
		contextText.WriteString("\n")
	}

	answer, err := b.provider.GenerateResponse(ctx, question, contextText.String())
	if err != nil {
		log.ErrorContext(ctx, "Answer generation failed", "error", err)
		b.reply(m.ChannelID, "❌ Could not generate an answer right now.")
		return
	}

	b.reply(m.ChannelID, answer)
}

func (b *Bot) reply(channelID, content string) {
	if len(content) > maxMessageLength {
		content = content[:maxMessageLength-3] + "..."
	}
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		b.log.Error("Failed to send message", "channel_id", channelID, "error", err)
	}
}
