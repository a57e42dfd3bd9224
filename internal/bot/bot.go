// Package bot connects the service layer to Discord: it registers the
// slash commands, dispatches interaction events to the matching handler,
// and translates interaction plumbing (options, snowflakes, responses)
// into service calls. All user-input failures are answered as ephemeral
// messages; nothing in this package is fatal to the process.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-request-bot/internal/render"
	"github.com/tbourn/go-request-bot/internal/services"
	"github.com/tbourn/go-request-bot/internal/taskspec"
)

// Bot holds the Discord session and the services the handlers call into.
type Bot struct {
	Session    *discordgo.Session
	Requests   *services.RequestService
	Deliveries *services.DeliveryService
	Schedules  *services.ScheduleService
	Log        zerolog.Logger
}

// commands are the application commands the bot registers at startup.
var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "request",
		Description: "Make a new request",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "A summary of the request",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "tasks",
				Description: "One or more tasks to be completed, separated by `;`",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "expires",
				Description: "Optional expiration, e.g. \"2 hours\"",
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "thumbnail",
				Description: "Optional thumbnail URL",
			},
		},
	},
	{
		Name:        "delivery",
		Description: "Log a delivery of items",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "items",
				Description: "Items as `name:amount` pairs separated by `;`",
				Required:    true,
			},
		},
	},
	{
		Name:        "schedule",
		Description: "Post a request in this channel on a fixed cadence",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "A summary of the recurring request",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "tasks",
				Description: "Tasks separated by `;`",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "every",
				Description: "Cadence, e.g. \"24 hours\"",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "thumbnail",
				Description: "Optional thumbnail URL",
			},
		},
	},
}

// RegisterCommands overwrites the bot's global application commands.
// One-time bootstrap, called from main after the session is open.
func (b *Bot) RegisterCommands(appID int64) error {
	_, err := b.Session.ApplicationCommandBulkOverwrite(strconv.FormatInt(appID, 10), "", commands)
	if err != nil {
		return fmt.Errorf("register application commands: %w", err)
	}
	return nil
}

// Attach installs the interaction dispatcher on the session.
func (b *Bot) Attach() {
	b.Session.AddHandler(b.onInteraction)
}

// onInteraction routes an interaction event to its handler.
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case "request":
			b.handleMakeRequest(ctx, i, data)
		case "delivery":
			b.handleDelivery(ctx, i, data)
		case "schedule":
			b.handleSchedule(ctx, i, data)
		default:
			b.Log.Warn().Str("command", data.Name).Msg("unknown application command")
		}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		switch data.CustomID {
		case render.CustomIDClaimTask:
			b.handleTaskStatus(ctx, i, data, services.ActionClaim)
		case render.CustomIDUnclaimTask:
			b.handleTaskStatus(ctx, i, data, services.ActionUnclaim)
		case render.CustomIDCompleteTask:
			b.handleTaskStatus(ctx, i, data, services.ActionComplete)
		case render.CustomIDRepeatRequest:
			b.handleRepeat(ctx, i)
		default:
			b.Log.Warn().Str("custom_id", data.CustomID).Msg("unknown message component")
		}
	}
}

// interactionUserID extracts the acting user's snowflake, which lives in a
// different place for guild and DM interactions.
func interactionUserID(i *discordgo.InteractionCreate) (int64, error) {
	var raw string
	switch {
	case i.Member != nil && i.Member.User != nil:
		raw = i.Member.User.ID
	case i.User != nil:
		raw = i.User.ID
	default:
		return 0, fmt.Errorf("interaction carries no user")
	}
	return strconv.ParseInt(raw, 10, 64)
}

// interactionChannelID extracts the channel the interaction occurred in.
func interactionChannelID(i *discordgo.InteractionCreate) (int64, error) {
	return strconv.ParseInt(i.ChannelID, 10, 64)
}

// optionString returns a named string option, or "" when absent.
func optionString(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

// parseSnowflake parses a Discord snowflake id string.
func parseSnowflake(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// userMessage maps an error onto the text shown to the invoking user.
// Input errors keep their detail; internal failures are masked.
func userMessage(err error) string {
	var malformed *taskspec.MalformedSpecError
	switch {
	case errors.As(err, &malformed):
		return fmt.Sprintf("Could not parse tasks: %v.", malformed)
	case errors.Is(err, services.ErrMalformedDelivery),
		errors.Is(err, services.ErrNoTasks),
		errors.Is(err, services.ErrEmptyTitle),
		errors.Is(err, services.ErrNoChannel):
		return fmt.Sprintf("That didn't work: %v.", err)
	case errors.Is(err, services.ErrRequestNotFound), errors.Is(err, services.ErrTaskNotFound):
		return "That request no longer exists."
	default:
		return "Something went wrong, please try again."
	}
}
