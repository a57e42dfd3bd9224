// Package render turns a request snapshot into the Discord message that
// represents it: body content, a task embed, and the interactive controls.
// Rendering is pure: the same snapshot always produces the same payload, so
// the message can be regenerated from database state at any point in the
// request's life.
package render

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tbourn/go-request-bot/internal/domain"
	"github.com/tbourn/go-request-bot/internal/gateway"
)

// Component custom ids. The interaction dispatcher routes component events
// back to the matching handler by these values.
const (
	CustomIDClaimTask     = "claim-task"
	CustomIDUnclaimTask   = "unclaim-task"
	CustomIDCompleteTask  = "complete-task"
	CustomIDRepeatRequest = "repeat-request"
)

// quips is the fixed footer table. The entry is picked by hashing the
// request id, so a given request always carries the same quip.
var quips = []string{
	"Many hands make light work.",
	"No task too small.",
	"The list remembers.",
	"One thing at a time.",
	"Claimed is halfway done.",
	"It won't finish itself.",
	"Check it off, feel the glow.",
	"Somebody has to do it.",
}

// Request renders a request and its tasks into a sendable message. Tasks
// must be supplied in display order (ascending weight) with assignees
// preloaded; the renderer performs no queries.
func Request(req *domain.Request, tasks []domain.Task) gateway.Message {
	return gateway.Message{
		Content:    content(req),
		Embed:      embed(req, tasks),
		Components: components(req, tasks),
	}
}

func content(req *domain.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request by <@%d>: %s", req.Creator.DiscordUserID, req.Title)
	if req.ArchivedOn != nil {
		fmt.Fprintf(&b, "\nArchived at <t:%d>", req.ArchivedOn.Unix())
	}
	if req.ExpiresOn != nil {
		fmt.Fprintf(&b, "\nExpires at <t:%d> (<t:%d:R>)", req.ExpiresOn.Unix(), req.ExpiresOn.Unix())
	}
	return b.String()
}

func embed(req *domain.Request, tasks []domain.Task) *discordgo.MessageEmbed {
	var desc strings.Builder
	for _, t := range tasks {
		strike := ""
		if t.Completed() {
			strike = "~~"
		}
		fmt.Fprintf(&desc, "%d. %s%s%s", t.Weight, strike, t.Text, strike)

		state, ts := "", t.CompletedAt
		switch {
		case t.CompletedAt != nil:
			state = "completed"
		case t.StartedAt != nil:
			state, ts = "claimed", t.StartedAt
		}
		if state != "" {
			fmt.Fprintf(&desc, ", %s at <t:%d> (<t:%d:R>)", state, ts.Unix(), ts.Unix())
			if t.Assignee != nil {
				fmt.Fprintf(&desc, " by <@%d>", t.Assignee.DiscordUserID)
			}
		}
		desc.WriteByte('\n')
	}

	e := &discordgo.MessageEmbed{
		Title:       "Tasks",
		Description: desc.String(),
		Footer:      &discordgo.MessageEmbedFooter{Text: quipFor(req.ID)},
	}
	if req.ThumbnailURL != nil {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: *req.ThumbnailURL}
	}
	return e
}

func components(req *domain.Request, tasks []domain.Task) []discordgo.MessageComponent {
	// An archived request is frozen: no controls at all.
	if req.Archived() {
		return nil
	}

	var uncompleted, claimed, unclaimed []domain.Task
	for _, t := range tasks {
		if t.Completed() {
			continue
		}
		uncompleted = append(uncompleted, t)
		if t.StartedAt != nil {
			claimed = append(claimed, t)
		} else {
			unclaimed = append(unclaimed, t)
		}
	}

	var rows []discordgo.MessageComponent
	if len(claimed) > 0 {
		rows = append(rows, selectRow(CustomIDUnclaimTask, "Unclaim task", claimed))
	}
	if len(unclaimed) > 0 {
		rows = append(rows, selectRow(CustomIDClaimTask, "Claim task", unclaimed))
	}
	if len(uncompleted) > 0 {
		rows = append(rows, selectRow(CustomIDCompleteTask, "Mark task as completed", uncompleted))
	}
	if len(uncompleted) == 0 && req.DiscordChannelID != nil {
		rows = append(rows, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					CustomID: CustomIDRepeatRequest,
					Label:    "Repeat",
					Style:    discordgo.SecondaryButton,
				},
			},
		})
	}
	return rows
}

func selectRow(customID, placeholder string, tasks []domain.Task) discordgo.MessageComponent {
	opts := make([]discordgo.SelectMenuOption, len(tasks))
	for i, t := range tasks {
		opts[i] = discordgo.SelectMenuOption{
			Value: t.ID,
			Label: fmt.Sprintf("%d. %s", t.Weight, t.Text),
		}
	}
	max := len(opts)
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    customID,
				Placeholder: placeholder,
				MaxValues:   max,
				Options:     opts,
			},
		},
	}
}

// quipFor deterministically selects the footer quip for a request id.
func quipFor(requestID string) string {
	h := fnv.New32a()
	h.Write([]byte(requestID))
	return quips[h.Sum32()%uint32(len(quips))]
}
