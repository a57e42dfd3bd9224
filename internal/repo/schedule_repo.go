// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for recurring
// request schedules.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-request-bot/internal/domain"
)

// NewSchedule describes the fields of a schedule to be inserted.
type NewSchedule struct {
	CreatedBy              string
	DiscordChannelID       int64
	SecondsBetweenRequests int
	Title                  string
	Tasks                  []string
	ThumbnailURL           *string
}

// CreateSchedule inserts a new recurring request schedule.
func CreateSchedule(ctx context.Context, db *gorm.DB, ns NewSchedule) (*domain.RequestSchedule, error) {
	s := &domain.RequestSchedule{
		ID:                     uuid.NewString(),
		CreatedBy:              ns.CreatedBy,
		DiscordChannelID:       ns.DiscordChannelID,
		SecondsBetweenRequests: ns.SecondsBetweenRequests,
		Title:                  ns.Title,
		Tasks:                  ns.Tasks,
		ThumbnailURL:           ns.ThumbnailURL,
		CreatedAt:              time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// ListDueSchedules returns all enabled schedules whose cadence has elapsed:
// more than seconds_between_requests have passed since the later of the
// schedule's creation and the creation of the newest request generated from
// it. The comparison is done against the supplied now so the sweep and its
// tests share one clock. The elapsed-time arithmetic is pushed into the
// query as epoch seconds to stay independent of timestamp string formats.
func ListDueSchedules(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.RequestSchedule, error) {
	lastGenerated := db.Model(&domain.Request{}).
		Select("MAX(requests.created_at)").
		Where("requests.created_by_schedule_id = request_schedules.id")

	var out []domain.RequestSchedule
	err := db.WithContext(ctx).
		Where("disabled_at IS NULL").
		Where("CAST(strftime('%s', MAX(request_schedules.created_at, COALESCE((?), request_schedules.created_at))) AS INTEGER) + request_schedules.seconds_between_requests < ?",
			lastGenerated, now.UTC().Unix()).
		Find(&out).Error
	return out, err
}

// SetScheduleMessage records the message id of the latest request generated
// by the schedule. Returns ErrNotFound if the schedule does not exist.
func SetScheduleMessage(ctx context.Context, db *gorm.DB, id string, messageID int64) error {
	res := db.WithContext(ctx).
		Model(&domain.RequestSchedule{}).
		Where("id = ?", id).
		Update("discord_message_id", messageID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DisableSchedule permanently disables a schedule by stamping disabled_at.
// The stamp is conditional on the schedule still being enabled, so repeated
// disables are no-ops. Returns ErrNotFound if the schedule does not exist
// and was not already disabled.
func DisableSchedule(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.RequestSchedule{}).
		Where("id = ? AND disabled_at IS NULL", id).
		Update("disabled_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
