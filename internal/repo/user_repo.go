// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-request-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertUserByDiscordID inserts a user row for the given Discord user id if
// none exists, and returns the row either way. The insert uses an ON CONFLICT
// DO NOTHING clause keyed on discord_user_id, so concurrent first interactions
// of the same user resolve to a single row.
func UpsertUserByDiscordID(ctx context.Context, db *gorm.DB, discordUserID int64) (*domain.User, error) {
	u := &domain.User{
		ID:            uuid.NewString(),
		DiscordUserID: discordUserID,
		CreatedAt:     time.Now().UTC(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "discord_user_id"}},
			DoNothing: true,
		}).
		Create(u)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Conflict path: the row already existed, re-read it.
		var existing domain.User
		if err := db.WithContext(ctx).
			Where("discord_user_id = ?", discordUserID).
			First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return u, nil
}

// GetUser fetches a user by primary key, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
