// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for deliveries.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-request-bot/internal/domain"
)

// DeliveryItemInput is one item/amount pair of a delivery to be recorded.
type DeliveryItemInput struct {
	ItemName string
	Amount   int
}

// CreateDelivery inserts a delivery and its items in a single transaction.
// Deliveries are write-once; there are no update functions.
func CreateDelivery(ctx context.Context, db *gorm.DB, createdBy string, items []DeliveryItemInput) (*domain.Delivery, error) {
	d := &domain.Delivery{
		ID:        uuid.NewString(),
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(d).Error; err != nil {
			return err
		}
		rows := make([]domain.DeliveryItem, len(items))
		for i, it := range items {
			rows[i] = domain.DeliveryItem{
				ID:         uuid.NewString(),
				DeliveryID: d.ID,
				ItemName:   it.ItemName,
				Amount:     it.Amount,
			}
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		d.Items = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SetDeliveryMessage records the Discord message id acknowledging the
// delivery. Returns ErrNotFound if the delivery does not exist.
func SetDeliveryMessage(ctx context.Context, db *gorm.DB, id string, messageID int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Delivery{}).
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
