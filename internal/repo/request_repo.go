// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Request
// model, including the conditional archive commit the lifecycle engine
// depends on.
//
// Error semantics:
//   - When a request is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-request-bot/internal/domain"
)

// NewRequest describes the fields of a request to be inserted.
type NewRequest struct {
	Title            string
	CreatedBy        string
	DiscordChannelID *int64
	ThumbnailURL     *string
	ExpiresOn        *time.Time
	ScheduleID       *string
	// CreatedAt stamps the request and its tasks; zero means time.Now().
	// Schedule-generated requests pass the service clock so the cadence
	// computation and the reset stamp agree.
	CreatedAt time.Time
}

// CreateRequest inserts a new Request row together with its tasks in a
// single transaction. Task weights are assigned sequentially from 1 in the
// order given. It returns the persisted request.
func CreateRequest(ctx context.Context, db *gorm.DB, nr NewRequest, taskTexts []string) (*domain.Request, error) {
	created := nr.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	r := &domain.Request{
		ID:                  uuid.NewString(),
		Title:               nr.Title,
		CreatedBy:           nr.CreatedBy,
		DiscordChannelID:    nr.DiscordChannelID,
		ThumbnailURL:        nr.ThumbnailURL,
		ExpiresOn:           nr.ExpiresOn,
		CreatedByScheduleID: nr.ScheduleID,
		CreatedAt:           created,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		if len(taskTexts) == 0 {
			return nil
		}
		tasks := make([]domain.Task, len(taskTexts))
		for i, text := range taskTexts {
			tasks[i] = domain.Task{
				ID:        uuid.NewString(),
				RequestID: r.ID,
				Weight:    i + 1,
				Text:      text,
				CreatedAt: created,
			}
		}
		return tx.Create(&tasks).Error
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetRequest fetches a request by id, or ErrNotFound if missing.
func GetRequest(ctx context.Context, db *gorm.DB, id string) (*domain.Request, error) {
	var r domain.Request
	if err := db.WithContext(ctx).Preload("Creator").Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRequestByMessageID fetches the request currently represented by the
// given Discord message, or ErrNotFound if none is.
func GetRequestByMessageID(ctx context.Context, db *gorm.DB, messageID int64) (*domain.Request, error) {
	var r domain.Request
	err := db.WithContext(ctx).
		Preload("Creator").
		Where("discord_message_id = ?", messageID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SetRequestMessage records the Discord message id currently representing
// the request. Returns ErrNotFound if the request does not exist.
func SetRequestMessage(ctx context.Context, db *gorm.DB, id string, messageID int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Request{}).
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

// MarkRequestArchived stamps archived_on, but only if the request is still
// open. It reports whether this caller won the transition: false means some
// other trigger archived the request first (or the id does not exist), and
// the caller must treat the request as already archived.
func MarkRequestArchived(ctx context.Context, db *gorm.DB, id string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Request{}).
		Where("id = ? AND archived_on IS NULL", id).
		Update("archived_on", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListExpiredRequests returns all open requests whose expiration has passed
// relative to now, oldest expiration first.
func ListExpiredRequests(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Request, error) {
	var out []domain.Request
	err := db.WithContext(ctx).
		Where("archived_on IS NULL AND expires_on IS NOT NULL AND expires_on < ?", now).
		Order("expires_on asc").
		Find(&out).Error
	return out, err
}

// ListOpenRequests returns all non-archived requests, newest first. Used by
// the admin listing endpoint.
func ListOpenRequests(ctx context.Context, db *gorm.DB) ([]domain.Request, error) {
	var out []domain.Request
	err := db.WithContext(ctx).
		Where("archived_on IS NULL").
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
