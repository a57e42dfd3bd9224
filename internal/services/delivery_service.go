// Package services – DeliveryService
//
// This file implements delivery logging: ad-hoc "item:amount" records
// submitted by members. Deliveries are write-once and have no lifecycle,
// so the service is creation plus spec parsing only.
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-request-bot/internal/domain"
	"github.com/tbourn/go-request-bot/internal/repo"
)

// DeliveryService records deliveries submitted through the /delivery
// command.
type DeliveryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewDeliveryService constructs a DeliveryService.
func NewDeliveryService(db *gorm.DB) *DeliveryService {
	return &DeliveryService{DB: db}
}

// Log parses an "item:amount;item:amount" spec and records the delivery on
// behalf of the Discord user. Amounts must be positive integers; a spec
// expanding to zero items is malformed.
func (s *DeliveryService) Log(ctx context.Context, discordUserID int64, spec string) (*domain.Delivery, error) {
	items, err := parseDeliverySpec(spec)
	if err != nil {
		return nil, err
	}
	user, err := repo.UpsertUserByDiscordID(ctx, s.DB, discordUserID)
	if err != nil {
		return nil, fmt.Errorf("upsert user %d: %w", discordUserID, err)
	}
	d, err := repo.CreateDelivery(ctx, s.DB, user.ID, items)
	if err != nil {
		return nil, fmt.Errorf("create delivery: %w", err)
	}
	return d, nil
}

// AttachMessage records the message id acknowledging the delivery.
func (s *DeliveryService) AttachMessage(ctx context.Context, deliveryID string, messageID int64) error {
	if err := repo.SetDeliveryMessage(ctx, s.DB, deliveryID, messageID); err != nil {
		return fmt.Errorf("attach message to delivery %s: %w", deliveryID, err)
	}
	return nil
}

// parseDeliverySpec splits "item:amount" pairs on ';'. Empty segments are
// dropped; anything else must be a name, a colon, and a positive integer.
func parseDeliverySpec(spec string) ([]repo.DeliveryItemInput, error) {
	var out []repo.DeliveryItemInput
	for _, seg := range strings.Split(spec, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		name, amountStr, ok := strings.Cut(seg, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q has no amount", ErrMalformedDelivery, seg)
		}
		name = strings.TrimSpace(name)
		amount, err := strconv.Atoi(strings.TrimSpace(amountStr))
		if err != nil || amount <= 0 || name == "" {
			return nil, fmt.Errorf("%w: bad pair %q", ErrMalformedDelivery, seg)
		}
		out = append(out, repo.DeliveryItemInput{ItemName: name, Amount: amount})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrMalformedDelivery)
	}
	return out, nil
}
