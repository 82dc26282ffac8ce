package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/mfields/digestbot/internal/ingest"
)

// HistorySource implements ingest.Source over the Discord REST API.
// Pages come back newest first, which matches the backfill contract.
type HistorySource struct {
	session *discordgo.Session
}

// NewHistorySource creates a HistorySource for the session.
func NewHistorySource(session *discordgo.Session) *HistorySource {
	return &HistorySource{session: session}
}

// FetchPage retrieves up to limit messages posted before beforeID.
func (s *HistorySource) FetchPage(ctx context.Context, channelID string, limit int, beforeID string) ([]ingest.InboundMessage, error) {
	msgs, err := s.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel messages: %w", err)
	}

	page := make([]ingest.InboundMessage, 0, len(msgs))
	for _, m := range msgs {
		page = append(page, toInbound(m))
	}
	return page, nil
}

func toInbound(m *discordgo.Message) ingest.InboundMessage {
	msg := ingest.InboundMessage{
		ID:        m.ID,
		Content:   m.Content,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		msg.IsBot = m.Author.Bot
	}
	return msg
}
