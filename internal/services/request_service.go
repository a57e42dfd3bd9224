// Package services – RequestService
//
// This file implements the request operations behind the slash command and
// the message components: creating a request from a task spec, repeating a
// finished one, and applying claim/unclaim/complete actions to task
// batches. Task status changes feed straight into the lifecycle engine,
// using the interaction's channel as the triggering channel; when the
// request is not (or no longer) archivable by this change, the message is
// re-rendered in place so it always reflects database state.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-request-bot/internal/domain"
	"github.com/tbourn/go-request-bot/internal/gateway"
	"github.com/tbourn/go-request-bot/internal/metrics"
	"github.com/tbourn/go-request-bot/internal/render"
	"github.com/tbourn/go-request-bot/internal/repo"
	"github.com/tbourn/go-request-bot/internal/taskspec"
)

// TaskAction is the status change applied to a batch of tasks.
type TaskAction int

const (
	// ActionClaim assigns the tasks to the acting user and stamps the
	// claim time.
	ActionClaim TaskAction = iota
	// ActionUnclaim clears assignee and claim time of non-completed tasks.
	ActionUnclaim
	// ActionComplete stamps completion (and the assignee, so completing
	// without a prior claim still attributes the work).
	ActionComplete
)

// MakeRequestInput carries the validated arguments of a new request.
type MakeRequestInput struct {
	DiscordUserID int64
	ChannelID     *int64
	Title         string
	TaskSpec      string
	ThumbnailURL  *string
	ExpiresOn     *time.Time
}

// RequestService provides the request-level operations: create, repeat,
// task status changes, and rendering.
type RequestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Gateway performs outbound message operations.
	Gateway gateway.Gateway
	// Lifecycle decides and performs archival.
	Lifecycle *LifecycleService
}

// NewRequestService constructs a RequestService sharing the lifecycle
// engine's clock and gateway.
func NewRequestService(db *gorm.DB, gw gateway.Gateway, lc *LifecycleService) *RequestService {
	return &RequestService{DB: db, Gateway: gw, Lifecycle: lc}
}

// Make parses the task spec and creates the request with its tasks. The
// caller is responsible for posting the rendered message and attaching the
// resulting message id (the id is unknown until the message exists).
// Returns the created request and its tasks in display order.
func (s *RequestService) Make(ctx context.Context, in MakeRequestInput) (*domain.Request, []domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, nil, ErrEmptyTitle
	}
	texts, err := taskspec.Parse(in.TaskSpec)
	if err != nil {
		return nil, nil, err
	}
	if len(texts) == 0 {
		return nil, nil, ErrNoTasks
	}

	user, err := repo.UpsertUserByDiscordID(ctx, s.DB, in.DiscordUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("upsert user %d: %w", in.DiscordUserID, err)
	}
	req, err := repo.CreateRequest(ctx, s.DB, repo.NewRequest{
		Title:            title,
		CreatedBy:        user.ID,
		DiscordChannelID: in.ChannelID,
		ThumbnailURL:     in.ThumbnailURL,
		ExpiresOn:        in.ExpiresOn,
	}, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	metrics.RequestsCreated.WithLabelValues("command").Inc()

	req.Creator = *user
	tasks, err := repo.ListTasksByRequest(ctx, s.DB, req.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks of request %s: %w", req.ID, err)
	}
	return req, tasks, nil
}

// AttachMessage records the message id now representing the request.
func (s *RequestService) AttachMessage(ctx context.Context, requestID string, messageID int64) error {
	if err := repo.SetRequestMessage(ctx, s.DB, requestID, messageID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("attach message to request %s: %w", requestID, err)
	}
	return nil
}

// Render loads a request with its tasks and produces the message that
// represents its current state.
func (s *RequestService) Render(ctx context.Context, requestID string) (gateway.Message, error) {
	req, err := repo.GetRequest(ctx, s.DB, requestID)
	if errors.Is(err, repo.ErrNotFound) {
		return gateway.Message{}, ErrRequestNotFound
	}
	if err != nil {
		return gateway.Message{}, fmt.Errorf("load request %s: %w", requestID, err)
	}
	tasks, err := repo.ListTasksByRequest(ctx, s.DB, requestID)
	if err != nil {
		return gateway.Message{}, fmt.Errorf("load tasks of request %s: %w", requestID, err)
	}
	return render.Request(req, tasks), nil
}

// Repeat clones the request currently represented by messageID into a new
// open request in the original's channel, posts it, and records the new
// message id. The acting user becomes the creator of the clone.
func (s *RequestService) Repeat(ctx context.Context, messageID int64, discordUserID int64) (*domain.Request, gateway.SentMessage, error) {
	original, err := repo.GetRequestByMessageID(ctx, s.DB, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, gateway.SentMessage{}, ErrRequestNotFound
	}
	if err != nil {
		return nil, gateway.SentMessage{}, fmt.Errorf("load request by message %d: %w", messageID, err)
	}
	if original.DiscordChannelID == nil {
		return nil, gateway.SentMessage{}, ErrNoChannel
	}
	tasks, err := repo.ListTasksByRequest(ctx, s.DB, original.ID)
	if err != nil {
		return nil, gateway.SentMessage{}, fmt.Errorf("load tasks of request %s: %w", original.ID, err)
	}
	texts := make([]string, len(tasks))
	for i, t := range tasks {
		texts[i] = t.Text
	}

	user, err := repo.UpsertUserByDiscordID(ctx, s.DB, discordUserID)
	if err != nil {
		return nil, gateway.SentMessage{}, fmt.Errorf("upsert user %d: %w", discordUserID, err)
	}
	clone, err := repo.CreateRequest(ctx, s.DB, repo.NewRequest{
		Title:            original.Title,
		CreatedBy:        user.ID,
		DiscordChannelID: original.DiscordChannelID,
		ThumbnailURL:     original.ThumbnailURL,
	}, texts)
	if err != nil {
		return nil, gateway.SentMessage{}, fmt.Errorf("clone request %s: %w", original.ID, err)
	}
	metrics.RequestsCreated.WithLabelValues("repeat").Inc()
	clone.Creator = *user

	cloneTasks, err := repo.ListTasksByRequest(ctx, s.DB, clone.ID)
	if err != nil {
		return nil, gateway.SentMessage{}, fmt.Errorf("load tasks of request %s: %w", clone.ID, err)
	}
	sent, err := s.Gateway.SendMessage(ctx, *original.DiscordChannelID, render.Request(clone, cloneTasks))
	if err != nil {
		return nil, gateway.SentMessage{}, fmt.Errorf("send repeated request %s: %w", clone.ID, err)
	}
	if err := repo.SetRequestMessage(ctx, s.DB, clone.ID, sent.ID); err != nil {
		return nil, gateway.SentMessage{}, fmt.Errorf("store message id of request %s: %w", clone.ID, err)
	}
	return clone, sent, nil
}

// UpdateTaskStatus applies a claim, unclaim, or complete action to the
// given tasks on behalf of a Discord user, then runs the lifecycle engine
// with the supplied trigger. Unless this very call archived the request,
// the representing message is re-rendered and edited in place — which also
// resyncs a message left stale by a crashed or concurrent archiver.
func (s *RequestService) UpdateTaskStatus(ctx context.Context, taskIDs []string, discordUserID int64, action TaskAction, trig Trigger) (Outcome, error) {
	user, err := repo.UpsertUserByDiscordID(ctx, s.DB, discordUserID)
	if err != nil {
		return NotReady, fmt.Errorf("upsert user %d: %w", discordUserID, err)
	}

	now := s.Lifecycle.now()
	var upd repo.TaskUpdate
	switch action {
	case ActionClaim:
		upd = repo.TaskUpdate{
			AssignedTo: &user.ID, SetAssignedTo: true,
			StartedAt: &now, SetStartedAt: true,
		}
	case ActionUnclaim:
		upd = repo.TaskUpdate{
			SetAssignedTo:   true,
			SetStartedAt:    true,
			OnlyUncompleted: true,
		}
	case ActionComplete:
		upd = repo.TaskUpdate{
			AssignedTo: &user.ID, SetAssignedTo: true,
			CompletedAt: &now, SetCompletedAt: true,
		}
	default:
		return NotReady, fmt.Errorf("unknown task action %d", action)
	}

	tasks, err := repo.UpdateTasksByIDs(ctx, s.DB, taskIDs, upd)
	if errors.Is(err, repo.ErrNotFound) {
		return NotReady, ErrTaskNotFound
	}
	if err != nil {
		return NotReady, fmt.Errorf("update tasks: %w", err)
	}
	requestID := tasks[0].RequestID

	outcome, err := s.Lifecycle.MaybeArchive(ctx, requestID, trig)
	if err != nil {
		return outcome, err
	}
	if outcome == Archived {
		// The archive flow already reshaped the message.
		return outcome, nil
	}

	req, err := repo.GetRequest(ctx, s.DB, requestID)
	if err != nil {
		return outcome, fmt.Errorf("load request %s: %w", requestID, err)
	}
	all, err := repo.ListTasksByRequest(ctx, s.DB, requestID)
	if err != nil {
		return outcome, fmt.Errorf("load tasks of request %s: %w", requestID, err)
	}
	if err := trig.EditOriginal(ctx, req, render.Request(req, all)); err != nil {
		return outcome, fmt.Errorf("refresh message of request %s: %w", requestID, err)
	}
	return outcome, nil
}
