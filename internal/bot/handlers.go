// Package bot connects the service layer to Discord. This file holds the
// per-interaction handlers and the interaction-backed archive trigger.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	naturaldate "github.com/tj/go-naturaldate"

	"github.com/tbourn/go-request-bot/internal/domain"
	"github.com/tbourn/go-request-bot/internal/gateway"
	"github.com/tbourn/go-request-bot/internal/metrics"
	"github.com/tbourn/go-request-bot/internal/render"
	"github.com/tbourn/go-request-bot/internal/services"
)

// handleMakeRequest implements /request: parse the options, create the
// request, answer the interaction with the rendered message, and attach
// the resulting message id to the request.
func (b *Bot) handleMakeRequest(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID, err := interactionUserID(i)
	if err != nil {
		b.fail(i, "make_request", err)
		return
	}
	channelID, err := interactionChannelID(i)
	if err != nil {
		b.fail(i, "make_request", err)
		return
	}

	in := services.MakeRequestInput{
		DiscordUserID: userID,
		ChannelID:     &channelID,
		Title:         optionString(data, "title"),
		TaskSpec:      optionString(data, "tasks"),
	}
	if thumb := optionString(data, "thumbnail"); thumb != "" {
		in.ThumbnailURL = &thumb
	}
	if expires := optionString(data, "expires"); expires != "" {
		at, err := parseExpiration(expires, time.Now().UTC())
		if err != nil {
			b.replyEphemeral(i, fmt.Sprintf("Could not understand expiration %q — try something like \"2 hours\".", expires))
			return
		}
		in.ExpiresOn = &at
	}

	req, tasks, err := b.Requests.Make(ctx, in)
	if err != nil {
		b.fail(i, "make_request", err)
		return
	}

	rendered := render.Request(req, tasks)
	if err := b.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(rendered),
	}); err != nil {
		b.Log.Error().Err(err).Str("request_id", req.ID).Msg("respond to /request")
		metrics.InteractionErrors.WithLabelValues("make_request").Inc()
		return
	}

	// The message id only exists now that the response has been created.
	msg, err := b.Session.InteractionResponse(i.Interaction)
	if err != nil {
		b.Log.Error().Err(err).Str("request_id", req.ID).Msg("fetch /request response message")
		metrics.InteractionErrors.WithLabelValues("make_request").Inc()
		return
	}
	msgID, err := parseSnowflake(msg.ID)
	if err != nil {
		b.Log.Error().Err(err).Str("request_id", req.ID).Msg("parse /request response message id")
		return
	}
	if err := b.Requests.AttachMessage(ctx, req.ID, msgID); err != nil {
		b.Log.Error().Err(err).Str("request_id", req.ID).Msg("attach message to request")
	}
}

// handleTaskStatus implements the claim/unclaim/complete select menus.
func (b *Bot) handleTaskStatus(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData, action services.TaskAction) {
	userID, err := interactionUserID(i)
	if err != nil {
		b.fail(i, "task_status", err)
		return
	}
	channelID, err := interactionChannelID(i)
	if err != nil {
		b.fail(i, "task_status", err)
		return
	}
	trig := &interactionTrigger{bot: b, interaction: i, channel: channelID}
	outcome, err := b.Requests.UpdateTaskStatus(ctx, data.Values, userID, action, trig)
	if err != nil {
		b.fail(i, "task_status", err)
		return
	}
	b.Log.Info().
		Int64("user", userID).
		Strs("tasks", data.Values).
		Stringer("outcome", outcome).
		Msg("task status updated")
}

// handleRepeat implements the Repeat button: clone the finished request
// into its channel and acknowledge with a link.
func (b *Bot) handleRepeat(ctx context.Context, i *discordgo.InteractionCreate) {
	userID, err := interactionUserID(i)
	if err != nil {
		b.fail(i, "repeat_request", err)
		return
	}
	msgID, err := parseSnowflake(i.Message.ID)
	if err != nil {
		b.fail(i, "repeat_request", err)
		return
	}
	_, sent, err := b.Requests.Repeat(ctx, msgID, userID)
	if err != nil {
		b.fail(i, "repeat_request", err)
		return
	}
	b.replyEphemeral(i, fmt.Sprintf("Request has been repeated, see %s", sent.Link()))
}

// handleDelivery implements /delivery.
func (b *Bot) handleDelivery(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID, err := interactionUserID(i)
	if err != nil {
		b.fail(i, "delivery", err)
		return
	}
	d, err := b.Deliveries.Log(ctx, userID, optionString(data, "items"))
	if err != nil {
		b.fail(i, "delivery", err)
		return
	}

	var lines []string
	for _, it := range d.Items {
		lines = append(lines, fmt.Sprintf("%s × %d", it.ItemName, it.Amount))
	}
	content := fmt.Sprintf("Delivery by <@%d>:\n%s", userID, strings.Join(lines, "\n"))
	if err := b.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	}); err != nil {
		b.Log.Error().Err(err).Str("delivery_id", d.ID).Msg("respond to /delivery")
		metrics.InteractionErrors.WithLabelValues("delivery").Inc()
		return
	}
	if msg, err := b.Session.InteractionResponse(i.Interaction); err == nil {
		if msgID, perr := parseSnowflake(msg.ID); perr == nil {
			if aerr := b.Deliveries.AttachMessage(ctx, d.ID, msgID); aerr != nil {
				b.Log.Error().Err(aerr).Str("delivery_id", d.ID).Msg("attach message to delivery")
			}
		}
	}
}

// handleSchedule implements /schedule.
func (b *Bot) handleSchedule(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID, err := interactionUserID(i)
	if err != nil {
		b.fail(i, "schedule", err)
		return
	}
	channelID, err := interactionChannelID(i)
	if err != nil {
		b.fail(i, "schedule", err)
		return
	}
	everyStr := optionString(data, "every")
	every, err := parseCadence(everyStr, time.Now().UTC())
	if err != nil {
		b.replyEphemeral(i, fmt.Sprintf("Could not understand cadence %q — try something like \"24 hours\".", everyStr))
		return
	}
	in := services.CreateScheduleInput{
		DiscordUserID: userID,
		ChannelID:     channelID,
		Title:         optionString(data, "title"),
		TaskSpec:      optionString(data, "tasks"),
		Every:         every,
	}
	if thumb := optionString(data, "thumbnail"); thumb != "" {
		in.ThumbnailURL = &thumb
	}
	sched, err := b.Schedules.Create(ctx, in)
	if err != nil {
		b.fail(i, "schedule", err)
		return
	}
	b.replyEphemeral(i, fmt.Sprintf("Schedule created — %q will be posted here every %s.", sched.Title, every))
}

// fail reports a handler error to the user (ephemeral) and to the logs.
// Known user-input errors keep their message; everything else is masked.
func (b *Bot) fail(i *discordgo.InteractionCreate, handler string, err error) {
	b.Log.Error().Err(err).Str("handler", handler).Msg("interaction failed")
	metrics.InteractionErrors.WithLabelValues(handler).Inc()
	b.replyEphemeral(i, userMessage(err))
}

// replyEphemeral answers the interaction with an ephemeral message.
func (b *Bot) replyEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.Log.Error().Err(err).Msg("send ephemeral response")
	}
}

// parseExpiration resolves a human expiration phrase ("2 hours",
// "tomorrow at noon") into an absolute time after now.
func parseExpiration(s string, now time.Time) (time.Time, error) {
	at, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Future))
	if err != nil {
		return time.Time{}, err
	}
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("expiration %q is not in the future", s)
	}
	return at, nil
}

// parseCadence resolves a human cadence phrase into a duration.
func parseCadence(s string, now time.Time) (time.Duration, error) {
	at, err := parseExpiration(s, now)
	if err != nil {
		return 0, err
	}
	return at.Sub(now), nil
}

// interactionTrigger is the services.Trigger for component interactions:
// rule resolution uses the interaction's channel, the archive confirmation
// is an ephemeral interaction response, the original message delete goes
// through the followup endpoint (which does not require channel
// permissions), and in-place refreshes use the component update response.
type interactionTrigger struct {
	bot         *Bot
	interaction *discordgo.InteractionCreate
	channel     int64
	responded   bool
}

var _ services.Trigger = (*interactionTrigger)(nil)

// ChannelID returns the channel the interaction occurred in.
func (t *interactionTrigger) ChannelID() int64 { return t.channel }

// AckArchived sends the ephemeral confirmation with the archive link.
func (t *interactionTrigger) AckArchived(_ context.Context, link string) error {
	t.responded = true
	return t.bot.Session.InteractionRespond(t.interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("Request has been archived, see %s", link),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// RemoveOriginal deletes the message the component lives on. The
// interaction message counts as a followup of the ack response, so the
// followup endpoint can delete it without channel-level permissions.
func (t *interactionTrigger) RemoveOriginal(_ context.Context, req *domain.Request) error {
	return t.bot.Session.FollowupMessageDelete(t.interaction.Interaction, t.interaction.Message.ID)
}

// EditOriginal updates the component's message in place via the component
// update response, or the message edit endpoint when the response was
// already consumed by an ack.
func (t *interactionTrigger) EditOriginal(ctx context.Context, req *domain.Request, msg gateway.Message) error {
	if t.responded {
		if req.DiscordChannelID == nil || req.DiscordMessageID == nil {
			return nil
		}
		return gateway.NewDiscord(t.bot.Session).EditMessage(ctx, *req.DiscordChannelID, *req.DiscordMessageID, msg)
	}
	t.responded = true
	return t.bot.Session.InteractionRespond(t.interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: responseData(msg),
	})
}

// responseData converts a gateway message into interaction response data.
func responseData(msg gateway.Message) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:    msg.Content,
		Components: msg.Components,
	}
	if msg.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{msg.Embed}
	}
	return data
}
