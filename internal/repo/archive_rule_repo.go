// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for archive rules.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-request-bot/internal/domain"
)

// GetArchiveRule fetches the archive rule for a source channel, or
// ErrNotFound if the channel has no rule. Callers treat the absence of a
// rule as "archive in place", not as a failure.
func GetArchiveRule(ctx context.Context, db *gorm.DB, fromChannelID int64) (*domain.ArchiveRule, error) {
	var rule domain.ArchiveRule
	err := db.WithContext(ctx).
		Where("from_channel_id = ?", fromChannelID).
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// PutArchiveRule creates or replaces the rule for a source channel.
func PutArchiveRule(ctx context.Context, db *gorm.DB, fromChannelID, toChannelID int64) error {
	rule := &domain.ArchiveRule{
		FromChannelID: fromChannelID,
		ToChannelID:   toChannelID,
		CreatedAt:     time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"to_channel_id"}),
		}).
		Create(rule).Error
}
