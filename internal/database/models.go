package database

import (
	"database/sql"
	"encoding/binary"
	"math"
	"time"
)

// Message is one ingested chat message. Rows are written once by the
// ingestion pipeline and never updated; (guild_id, id) is the primary key
// so duplicate submissions collide instead of duplicating.
type Message struct {
	ID             string    `db:"id"`
	GuildID        string    `db:"guild_id"`
	UserID         string    `db:"user_id"`
	Username       string    `db:"username"`
	Content        string    `db:"content"`
	ChannelID      string    `db:"channel_id"`
	CreatedAt      time.Time `db:"created_at"`
	CreatedAtLocal time.Time `db:"created_at_local"`
	Embedding      []byte    `db:"embedding"`
	IsIntroduction bool      `db:"is_introduction"`
}

// Guild tracks a Discord guild's subscription and trial usage state.
// MessagesProcessed only ever grows, and only via the atomic increment
// in the store.
type Guild struct {
	ID                     string       `db:"id"`
	Name                   string       `db:"name"`
	JoinedAt               time.Time    `db:"joined_at"`
	LastActiveAt           time.Time    `db:"last_active_at"`
	HasActiveSubscription  bool         `db:"has_active_subscription"`
	SubscriptionExpiryDate sql.NullTime `db:"subscription_expiry_date"`
	MessagesProcessed      int64        `db:"messages_processed"`
}

// Summary is a narrative digest of a guild's messages over a time
// window. Summaries are immutable; later runs supersede earlier ones.
type Summary struct {
	ID        string    `db:"id"`
	GuildID   string    `db:"guild_id"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	Summary   string    `db:"summary"`
	CreatedAt time.Time `db:"created_at"`
}

// EncodeEmbedding packs an embedding vector into a little-endian float32
// blob for storage.
func EncodeEmbedding(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeEmbedding unpacks a stored embedding blob. Returns nil for
// empty or malformed blobs.
func DecodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
