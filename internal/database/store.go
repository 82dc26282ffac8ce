package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrDuplicateMessage is returned by SaveMessage when a message with
	// the same (guild_id, id) already exists.
	ErrDuplicateMessage = errors.New("duplicate message")

	// ErrGuildNotFound is returned by GetGuild for unknown guild IDs.
	ErrGuildNotFound = errors.New("guild not found")
)

// Store defines the data access contract used by the pipeline, quota
// guard, and summarizer. Methods accept context.Context for cancellation
// and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// MessageExists reports whether a message with the given ID has
	// already been stored for the guild.
	MessageExists(ctx context.Context, guildID, messageID string) (bool, error)

	// SaveMessage inserts a new message record. Returns
	// ErrDuplicateMessage if a row with the same (guild_id, id) exists.
	SaveMessage(ctx context.Context, message *Message) error

	// GetMessagesInWindow retrieves all guild messages with
	// after < created_at <= until, ordered by created_at ascending.
	GetMessagesInWindow(ctx context.Context, guildID string, after, until time.Time) ([]*Message, error)

	// SearchSimilar returns up to limit stored messages whose embedding
	// cosine similarity with vec is at least threshold, best first.
	SearchSimilar(ctx context.Context, guildID string, vec []float32, threshold float64, limit int) ([]*Message, error)

	// GetGuild retrieves a guild by ID. Returns ErrGuildNotFound if the
	// guild is unknown.
	GetGuild(ctx context.Context, guildID string) (*Guild, error)

	// UpsertGuild inserts the guild or, if it already exists, refreshes
	// its name and last-active timestamp.
	UpsertGuild(ctx context.Context, guild *Guild) error

	// ListGuilds retrieves all tracked guilds.
	ListGuilds(ctx context.Context) ([]*Guild, error)

	// TouchGuildActivity refreshes the guild's last-active timestamp.
	// Unknown guilds are a no-op.
	TouchGuildActivity(ctx context.Context, guildID string) error

	// IncrementMessagesProcessed atomically increments the guild's
	// processed-message counter and refreshes its last-active timestamp.
	// Unknown guilds are a no-op.
	IncrementMessagesProcessed(ctx context.Context, guildID string) error

	// UpdateGuildSubscription sets the guild's subscription state.
	// Called by the billing collaborator on subscription changes.
	UpdateGuildSubscription(ctx context.Context, guildID string, active bool, expiry time.Time) error

	// GetLatestSummary retrieves the guild summary with the most recent
	// end date. Returns nil, nil when the guild has no summary yet.
	GetLatestSummary(ctx context.Context, guildID string) (*Summary, error)

	// SaveSummary inserts a new summary record.
	SaveSummary(ctx context.Context, summary *Summary) error

	// RunSQLMaintenance performs database maintenance such as VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) MessageExists(ctx context.Context, guildID, messageID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM messages WHERE guild_id = ? AND id = ?`, guildID, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to check message existence (guild %s, message %s): %w", guildID, messageID, err)
	}
	return count > 0, nil
}

func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ID == "" || message.GuildID == "" {
		return fmt.Errorf("message must have non-empty id and guild_id")
	}
	if message.CreatedAtLocal.IsZero() {
		message.CreatedAtLocal = time.Now().UTC()
	}

	// INSERT OR IGNORE keeps the write idempotent under retry; zero rows
	// affected means the (guild_id, id) row already existed.
	query := `
        INSERT OR IGNORE INTO messages
            (id, guild_id, user_id, username, content, channel_id, created_at, created_at_local, embedding, is_introduction)
        VALUES
            (:id, :guild_id, :user_id, :username, :content, :channel_id, :created_at, :created_at_local, :embedding, :is_introduction);
    `

	result, err := s.db.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "guild_id", message.GuildID, "message_id", message.ID, "error", err)
		return fmt.Errorf("failed to save message (guild %s, message %s): %w", message.GuildID, message.ID, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrDuplicateMessage
	}

	s.logger.DebugContext(ctx, "Message saved", "guild_id", message.GuildID, "message_id", message.ID)
	return nil
}

func (s *sqlxStore) GetMessagesInWindow(ctx context.Context, guildID string, after, until time.Time) ([]*Message, error) {
	var messages []*Message
	query := `
        SELECT id, guild_id, user_id, username, content, channel_id, created_at, created_at_local, embedding, is_introduction
        FROM messages
        WHERE guild_id = ? AND created_at > ? AND created_at <= ?
        ORDER BY created_at ASC;
    `
	if err := s.db.SelectContext(ctx, &messages, query, guildID, after, until); err != nil {
		return nil, fmt.Errorf("failed to get messages in window for guild %s: %w", guildID, err)
	}
	return messages, nil
}

func (s *sqlxStore) SearchSimilar(ctx context.Context, guildID string, vec []float32, threshold float64, limit int) ([]*Message, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("search vector is empty")
	}
	if limit <= 0 {
		limit = 4
	}

	var messages []*Message
	query := `
        SELECT id, guild_id, user_id, username, content, channel_id, created_at, created_at_local, embedding, is_introduction
        FROM messages
        WHERE guild_id = ? AND embedding IS NOT NULL;
    `
	if err := s.db.SelectContext(ctx, &messages, query, guildID); err != nil {
		return nil, fmt.Errorf("failed to load embeddings for guild %s: %w", guildID, err)
	}

	type scored struct {
		msg   *Message
		score float64
	}
	matches := make([]scored, 0, len(messages))
	for _, m := range messages {
		emb := DecodeEmbedding(m.Embedding)
		if len(emb) != len(vec) {
			continue
		}
		score := cosineSimilarity(vec, emb)
		if score >= threshold {
			matches = append(matches, scored{msg: m, score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	result := make([]*Message, len(matches))
	for i, m := range matches {
		result[i] = m.msg
	}
	s.logger.DebugContext(ctx, "Similarity search finished", "guild_id", guildID, "candidates", len(messages), "matches", len(result))
	return result, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (s *sqlxStore) GetGuild(ctx context.Context, guildID string) (*Guild, error) {
	var guild Guild
	query := `
        SELECT id, name, joined_at, last_active_at, has_active_subscription, subscription_expiry_date, messages_processed
        FROM guilds WHERE id = ?;
    `
	err := s.db.GetContext(ctx, &guild, query, guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGuildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild %s: %w", guildID, err)
	}
	return &guild, nil
}

func (s *sqlxStore) UpsertGuild(ctx context.Context, guild *Guild) error {
	if guild == nil || guild.ID == "" {
		return fmt.Errorf("guild must have a non-empty id")
	}

	now := time.Now().UTC()
	if guild.JoinedAt.IsZero() {
		guild.JoinedAt = now
	}
	guild.LastActiveAt = now

	query := `
        INSERT INTO guilds (id, name, joined_at, last_active_at, has_active_subscription, subscription_expiry_date, messages_processed)
        VALUES (:id, :name, :joined_at, :last_active_at, :has_active_subscription, :subscription_expiry_date, :messages_processed)
        ON CONFLICT (id) DO UPDATE SET name = excluded.name, last_active_at = excluded.last_active_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, guild); err != nil {
		return fmt.Errorf("failed to upsert guild %s: %w", guild.ID, err)
	}
	return nil
}

func (s *sqlxStore) ListGuilds(ctx context.Context) ([]*Guild, error) {
	var guilds []*Guild
	query := `
        SELECT id, name, joined_at, last_active_at, has_active_subscription, subscription_expiry_date, messages_processed
        FROM guilds ORDER BY id;
    `
	if err := s.db.SelectContext(ctx, &guilds, query); err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	return guilds, nil
}

func (s *sqlxStore) TouchGuildActivity(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE guilds SET last_active_at = ? WHERE id = ?`, time.Now().UTC(), guildID)
	if err != nil {
		return fmt.Errorf("failed to touch guild activity for %s: %w", guildID, err)
	}
	return nil
}

func (s *sqlxStore) IncrementMessagesProcessed(ctx context.Context, guildID string) error {
	// Single-statement increment; serialized by SQLite so concurrent
	// bursts never lose updates.
	_, err := s.db.ExecContext(ctx,
		`UPDATE guilds SET messages_processed = messages_processed + 1, last_active_at = ? WHERE id = ?`,
		time.Now().UTC(), guildID)
	if err != nil {
		return fmt.Errorf("failed to increment processed count for guild %s: %w", guildID, err)
	}
	return nil
}

func (s *sqlxStore) UpdateGuildSubscription(ctx context.Context, guildID string, active bool, expiry time.Time) error {
	expiryVal := sql.NullTime{Time: expiry, Valid: !expiry.IsZero()}
	_, err := s.db.ExecContext(ctx,
		`UPDATE guilds SET has_active_subscription = ?, subscription_expiry_date = ? WHERE id = ?`,
		active, expiryVal, guildID)
	if err != nil {
		return fmt.Errorf("failed to update subscription for guild %s: %w", guildID, err)
	}
	s.logger.InfoContext(ctx, "Guild subscription updated", "guild_id", guildID, "active", active)
	return nil
}

func (s *sqlxStore) GetLatestSummary(ctx context.Context, guildID string) (*Summary, error) {
	var summary Summary
	query := `
        SELECT id, guild_id, start_date, end_date, summary, created_at
        FROM summaries
        WHERE guild_id = ?
        ORDER BY end_date DESC
        LIMIT 1;
    `
	err := s.db.GetContext(ctx, &summary, query, guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest summary for guild %s: %w", guildID, err)
	}
	return &summary, nil
}

func (s *sqlxStore) SaveSummary(ctx context.Context, summary *Summary) error {
	if summary == nil || summary.ID == "" || summary.GuildID == "" {
		return fmt.Errorf("summary must have non-empty id and guild_id")
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO summaries (id, guild_id, start_date, end_date, summary, created_at)
        VALUES (:id, :guild_id, :start_date, :end_date, :summary, :created_at);
    `
	if _, err := s.db.NamedExecContext(ctx, query, summary); err != nil {
		return fmt.Errorf("failed to save summary for guild %s: %w", summary.GuildID, err)
	}
	s.logger.InfoContext(ctx, "Summary saved", "guild_id", summary.GuildID, "start", summary.StartDate, "end", summary.EndDate)
	return nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	for _, stmt := range []string{"VACUUM;", "ANALYZE;"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("maintenance statement %q failed: %w", stmt, err)
		}
	}
	s.logger.InfoContext(ctx, "SQL maintenance finished")
	return nil
}
