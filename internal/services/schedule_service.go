// Package services – ScheduleService
//
// This file implements recurring requests: schedule templates that generate
// a fresh request once their cadence elapses. A schedule tracks the message
// of the last request it posted; if Discord reports that message gone the
// schedule is permanently disabled, on the assumption the channel no longer
// wants it.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-request-bot/internal/domain"
	"github.com/tbourn/go-request-bot/internal/gateway"
	"github.com/tbourn/go-request-bot/internal/metrics"
	"github.com/tbourn/go-request-bot/internal/render"
	"github.com/tbourn/go-request-bot/internal/repo"
	"github.com/tbourn/go-request-bot/internal/taskspec"
)

// CreateScheduleInput carries the validated arguments of a new schedule.
type CreateScheduleInput struct {
	DiscordUserID int64
	ChannelID     int64
	Title         string
	TaskSpec      string
	Every         time.Duration
	ThumbnailURL  *string
}

// ScheduleService manages recurring request schedules.
type ScheduleService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Gateway posts generated requests and probes tracked messages.
	Gateway gateway.Gateway

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(db *gorm.DB, gw gateway.Gateway) *ScheduleService {
	return &ScheduleService{DB: db, Gateway: gw}
}

func (s *ScheduleService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create registers a new schedule. The first request is generated by the
// next sweep once the cadence has elapsed from creation.
func (s *ScheduleService) Create(ctx context.Context, in CreateScheduleInput) (*domain.RequestSchedule, error) {
	texts, err := taskspec.Parse(in.TaskSpec)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, ErrNoTasks
	}
	if in.Every <= 0 {
		return nil, fmt.Errorf("cadence must be positive")
	}
	user, err := repo.UpsertUserByDiscordID(ctx, s.DB, in.DiscordUserID)
	if err != nil {
		return nil, fmt.Errorf("upsert user %d: %w", in.DiscordUserID, err)
	}
	sched, err := repo.CreateSchedule(ctx, s.DB, repo.NewSchedule{
		CreatedBy:              user.ID,
		DiscordChannelID:       in.ChannelID,
		SecondsBetweenRequests: int(in.Every / time.Second),
		Title:                  in.Title,
		Tasks:                  texts,
		ThumbnailURL:           in.ThumbnailURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return sched, nil
}

// PostDue generates and posts a request for every schedule whose cadence
// has elapsed. Per-schedule failures are returned but do not stop the
// remaining schedules; the aggregate error joins them.
func (s *ScheduleService) PostDue(ctx context.Context) error {
	due, err := repo.ListDueSchedules(ctx, s.DB, s.now())
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}
	var errs []error
	for i := range due {
		if err := s.post(ctx, &due[i]); err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: %w", due[i].ID, err))
		}
	}
	return errors.Join(errs...)
}

// post handles a single due schedule: verify the tracked message still
// exists (a missing message disables the schedule for good), then
// instantiate the template and post the new request.
func (s *ScheduleService) post(ctx context.Context, sched *domain.RequestSchedule) error {
	if sched.DiscordMessageID != nil {
		_, err := s.Gateway.GetMessage(ctx, sched.DiscordChannelID, *sched.DiscordMessageID)
		if gateway.IsNotFound(err) {
			if derr := repo.DisableSchedule(ctx, s.DB, sched.ID, s.now()); derr != nil {
				return fmt.Errorf("disable after message loss: %w", derr)
			}
			metrics.SchedulesDisabled.Inc()
			return nil
		}
		if err != nil {
			return fmt.Errorf("probe tracked message %d: %w", *sched.DiscordMessageID, err)
		}
	}

	channel := sched.DiscordChannelID
	req, err := repo.CreateRequest(ctx, s.DB, repo.NewRequest{
		Title:            sched.Title,
		CreatedBy:        sched.CreatedBy,
		DiscordChannelID: &channel,
		ThumbnailURL:     sched.ThumbnailURL,
		ScheduleID:       &sched.ID,
		CreatedAt:        s.now(),
	}, sched.Tasks)
	if err != nil {
		return fmt.Errorf("instantiate request: %w", err)
	}
	metrics.RequestsCreated.WithLabelValues("schedule").Inc()

	creator, err := repo.GetUser(ctx, s.DB, sched.CreatedBy)
	if err != nil {
		return fmt.Errorf("load schedule creator: %w", err)
	}
	req.Creator = *creator
	tasks, err := repo.ListTasksByRequest(ctx, s.DB, req.ID)
	if err != nil {
		return fmt.Errorf("load tasks of request %s: %w", req.ID, err)
	}
	sent, err := s.Gateway.SendMessage(ctx, channel, render.Request(req, tasks))
	if err != nil {
		return fmt.Errorf("send request %s: %w", req.ID, err)
	}
	if err := repo.SetRequestMessage(ctx, s.DB, req.ID, sent.ID); err != nil {
		return fmt.Errorf("store message id of request %s: %w", req.ID, err)
	}
	if err := repo.SetScheduleMessage(ctx, s.DB, sched.ID, sent.ID); err != nil {
		return fmt.Errorf("track message on schedule: %w", err)
	}
	return nil
}
