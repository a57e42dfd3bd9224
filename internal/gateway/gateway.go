// Package gateway abstracts the outbound Discord operations the bot
// performs: sending, editing, fetching, and deleting messages. The core
// services depend only on the Gateway interface so they can be exercised
// against an in-memory fake; the production implementation wraps a
// discordgo session.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Message is the payload the render engine produces and the gateway ships:
// plain content, an optional embed, and interactive components.
type Message struct {
	Content    string
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// SentMessage identifies a message the gateway created or fetched.
type SentMessage struct {
	ID        int64
	ChannelID int64
	GuildID   int64
}

// Link returns the canonical jump URL for the message.
func (m SentMessage) Link() string {
	guild := "@me"
	if m.GuildID != 0 {
		guild = fmt.Sprintf("%d", m.GuildID)
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%d/%d", guild, m.ChannelID, m.ID)
}

// ErrMessageNotFound reports that Discord no longer knows the referenced
// message or channel. Callers use it to distinguish "the tracked message
// was deleted" from transient failures.
var ErrMessageNotFound = errors.New("message not found")

// IsNotFound reports whether err denotes a missing message or channel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound)
}

// Gateway is the set of outbound chat operations the services consume.
// All calls are blocking and honor the supplied context.
type Gateway interface {
	// SendMessage posts a message to a channel and returns its identity.
	SendMessage(ctx context.Context, channelID int64, msg Message) (SentMessage, error)
	// EditMessage replaces the content, embed, and components of an
	// existing message in place.
	EditMessage(ctx context.Context, channelID, messageID int64, msg Message) error
	// DeleteMessage removes a message.
	DeleteMessage(ctx context.Context, channelID, messageID int64) error
	// GetMessage fetches a message, returning an error satisfying
	// IsNotFound when it no longer exists.
	GetMessage(ctx context.Context, channelID, messageID int64) (SentMessage, error)
}
