package ingest

import (
	"context"
	"time"
)

// InboundMessage is one message event delivered by the source stream.
type InboundMessage struct {
	ID         string
	AuthorID   string
	AuthorName string
	Content    string
	ChannelID  string
	GuildID    string
	CreatedAt  time.Time
	IsBot      bool
}

// Source exposes paged access to a channel's history, newest first.
// An empty beforeID starts at the most recent message.
type Source interface {
	FetchPage(ctx context.Context, channelID string, limit int, beforeID string) ([]InboundMessage, error)
}
