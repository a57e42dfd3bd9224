// Package gateway abstracts the outbound Discord operations the bot
// performs. This file implements the Gateway interface over a discordgo
// session.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Gateway over a live discordgo session.
type Discord struct {
	Session *discordgo.Session
}

// NewDiscord wraps an established discordgo session.
func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{Session: s}
}

var _ Gateway = (*Discord)(nil)

// SendMessage posts a message to a channel and returns its identity.
func (d *Discord) SendMessage(ctx context.Context, channelID int64, msg Message) (SentMessage, error) {
	sent, err := d.Session.ChannelMessageSendComplex(formatID(channelID), &discordgo.MessageSend{
		Content:    msg.Content,
		Embed:      msg.Embed,
		Components: msg.Components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return SentMessage{}, wrapDiscordErr(err)
	}
	return toSentMessage(sent)
}

// EditMessage replaces the content, embed, and components of a message.
func (d *Discord) EditMessage(ctx context.Context, channelID, messageID int64, msg Message) error {
	edit := discordgo.NewMessageEdit(formatID(channelID), formatID(messageID))
	edit.SetContent(msg.Content)
	if msg.Embed != nil {
		edit.SetEmbed(msg.Embed)
	}
	edit.Components = &msg.Components
	if _, err := d.Session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return wrapDiscordErr(err)
	}
	return nil
}

// DeleteMessage removes a message.
func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	err := d.Session.ChannelMessageDelete(formatID(channelID), formatID(messageID), discordgo.WithContext(ctx))
	if err != nil {
		return wrapDiscordErr(err)
	}
	return nil
}

// GetMessage fetches a message, mapping a 404 response onto
// ErrMessageNotFound so callers can detect deleted messages.
func (d *Discord) GetMessage(ctx context.Context, channelID, messageID int64) (SentMessage, error) {
	m, err := d.Session.ChannelMessage(formatID(channelID), formatID(messageID), discordgo.WithContext(ctx))
	if err != nil {
		return SentMessage{}, wrapDiscordErr(err)
	}
	return toSentMessage(m)
}

// wrapDiscordErr maps a discordgo REST error onto the gateway error
// taxonomy: HTTP 404 becomes ErrMessageNotFound, everything else is
// passed through.
func wrapDiscordErr(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrMessageNotFound, err)
	}
	return err
}

// formatID renders a numeric snowflake as the string form discordgo expects.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// parseID parses a snowflake string back into its numeric form.
func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func toSentMessage(m *discordgo.Message) (SentMessage, error) {
	id, err := parseID(m.ID)
	if err != nil {
		return SentMessage{}, fmt.Errorf("parse message id %q: %w", m.ID, err)
	}
	ch, err := parseID(m.ChannelID)
	if err != nil {
		return SentMessage{}, fmt.Errorf("parse channel id %q: %w", m.ChannelID, err)
	}
	var guild int64
	if m.GuildID != "" {
		if guild, err = parseID(m.GuildID); err != nil {
			return SentMessage{}, fmt.Errorf("parse guild id %q: %w", m.GuildID, err)
		}
	}
	return SentMessage{ID: id, ChannelID: ch, GuildID: guild}, nil
}
