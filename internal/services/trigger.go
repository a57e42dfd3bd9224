// Package services – archive trigger contexts
//
// The lifecycle engine is invoked from three places: a user completing
// tasks through a component interaction, the expiration sweep, and the
// schedule poster. What differs between them is which channel the archive
// rule is resolved against and how the original message is acknowledged,
// removed, or edited. That difference is captured by the Trigger interface
// with one implementation per caller kind, instead of optional parameters
// threaded through the engine.
package services

import (
	"context"

	"github.com/tbourn/go-request-bot/internal/domain"
	"github.com/tbourn/go-request-bot/internal/gateway"
)

// Trigger is the context an archive attempt runs under.
type Trigger interface {
	// ChannelID is the channel the triggering event occurred in; the
	// archive rule is resolved against it.
	ChannelID() int64

	// AckArchived delivers a user-facing confirmation that the request
	// moved to an archive channel. Background triggers have nobody to
	// acknowledge and implement this as a no-op.
	AckArchived(ctx context.Context, link string) error

	// RemoveOriginal removes the message that represented the request
	// before archiving.
	RemoveOriginal(ctx context.Context, req *domain.Request) error

	// EditOriginal replaces the message that represents the request with
	// a fresh rendering, in place.
	EditOriginal(ctx context.Context, req *domain.Request, msg gateway.Message) error
}

// SweepTrigger is the Trigger used by background sweeps: no live
// interaction exists, so the request's stored channel drives rule
// resolution and all message mutation goes directly through the gateway.
type SweepTrigger struct {
	Gateway gateway.Gateway
	// Channel is the request's stored channel id (zero when the request
	// has none, in which case no rule will match).
	Channel int64
}

var _ Trigger = SweepTrigger{}

// ChannelID returns the request's stored channel.
func (t SweepTrigger) ChannelID() int64 { return t.Channel }

// AckArchived is a no-op: a sweep has no invoking user.
func (t SweepTrigger) AckArchived(context.Context, string) error { return nil }

// RemoveOriginal deletes the request's message directly.
func (t SweepTrigger) RemoveOriginal(ctx context.Context, req *domain.Request) error {
	if req.DiscordChannelID == nil || req.DiscordMessageID == nil {
		return nil
	}
	return t.Gateway.DeleteMessage(ctx, *req.DiscordChannelID, *req.DiscordMessageID)
}

// EditOriginal edits the request's message directly.
func (t SweepTrigger) EditOriginal(ctx context.Context, req *domain.Request, msg gateway.Message) error {
	if req.DiscordChannelID == nil || req.DiscordMessageID == nil {
		return nil
	}
	return t.Gateway.EditMessage(ctx, *req.DiscordChannelID, *req.DiscordMessageID, msg)
}
