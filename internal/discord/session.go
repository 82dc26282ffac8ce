// Package discord adapts the Discord gateway to the ingestion pipeline:
// live message events, guild tracking, chat commands, and the paged
// history source used by backfill.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// NewSession creates a configured Discord session. The session is not
// opened; the Bot owns its lifecycle.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return session, nil
}
