package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// maxMessageLength is Discord's limit on message content, in characters.
const maxMessageLength = 2000

// Guild performs REST actions against a single guild. It works on a session
// with or without an open gateway connection.
type Guild struct {
	session   *discordgo.Session
	guildID   string
	channelID string
}

// NewGuild targets guildID. When channelID is empty, messages go to the
// first text channel of the guild.
func NewGuild(session *discordgo.Session, guildID, channelID string) *Guild {
	return &Guild{
		session:   session,
		guildID:   guildID,
		channelID: channelID,
	}
}

// NewRESTGuild creates a session for REST calls only, without opening the gateway.
func NewRESTGuild(botToken, guildID, channelID string) (*Guild, error) {
	dg, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, err
	}
	return NewGuild(dg, guildID, channelID), nil
}

// targetChannel returns the configured channel, or the first available text
// channel in the guild.
func (g *Guild) targetChannel(ctx context.Context) (string, error) {
	if g.channelID != "" {
		return g.channelID, nil
	}

	channels, err := g.session.GuildChannels(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to retrieve channels for guild %s: %w", g.guildID, err)
	}

	for _, channel := range channels {
		if channel.Type == discordgo.ChannelTypeGuildText {
			return channel.ID, nil
		}
	}
	return "", fmt.Errorf("no text channel found in guild %s", g.guildID)
}

// SendMessage posts content to the target channel, split into as many
// messages as the length limit requires.
func (g *Guild) SendMessage(ctx context.Context, content string) error {
	channelID, err := g.targetChannel(ctx)
	if err != nil {
		return err
	}

	for i, chunk := range splitMessage(content, maxMessageLength) {
		_, err := g.session.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to send message part %d to channel %s: %w", i+1, channelID, err)
		}
	}

	slog.Info("message sent", "guild", g.guildID, "channel", channelID, "length", len(content))
	return nil
}

// SendEmbed posts an embed to the target channel.
func (g *Guild) SendEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error {
	channelID, err := g.targetChannel(ctx)
	if err != nil {
		return err
	}

	_, err = g.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send embed to channel %s: %w", channelID, err)
	}
	slog.Info("embed sent", "guild", g.guildID, "channel", channelID)
	return nil
}

// RemoveMember kicks a member from the guild. The reason shows in the audit log.
func (g *Guild) RemoveMember(ctx context.Context, userID, reason string) error {
	if userID == "" {
		return errors.New("empty user id")
	}
	err := g.session.GuildMemberDeleteWithReason(g.guildID, userID, reason, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to remove member %s from guild %s: %w", userID, g.guildID, err)
	}
	slog.Info("member removed", "guild", g.guildID, "user_id", userID)
	return nil
}

// splitMessage breaks content into chunks of at most limit characters,
// preferring line boundaries. Lines longer than limit are cut.
func splitMessage(content string, limit int) []string {
	if utf8.RuneCountInString(content) <= limit {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.SplitAfter(content, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen > limit {
			flush()
		}
		for lineLen > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			lineLen -= limit
		}
		current.WriteString(line)
		currentLen += lineLen
	}
	flush()

	return chunks
}
