package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-request-bot/internal/repo"
)

func TestDeliveryLog(t *testing.T) {
	db := newTestDB(t)
	svc := NewDeliveryService(db)
	ctx := context.Background()

	d, err := svc.Log(ctx, 42, " iron : 64 ; coal:32 ;")
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(d.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(d.Items))
	}
	if d.Items[0].ItemName != "iron" || d.Items[0].Amount != 64 {
		t.Fatalf("whitespace not trimmed: %+v", d.Items[0])
	}
	if d.Items[1].ItemName != "coal" || d.Items[1].Amount != 32 {
		t.Fatalf("unexpected second item: %+v", d.Items[1])
	}

	if err := svc.AttachMessage(ctx, d.ID, 9001); err != nil {
		t.Fatalf("AttachMessage: %v", err)
	}
}

func TestDeliveryLog_Malformed(t *testing.T) {
	svc := NewDeliveryService(newTestDB(t))
	ctx := context.Background()

	for _, spec := range []string{
		"",
		";;",
		"iron",
		"iron:abc",
		"iron:0",
		"iron:-3",
		":5",
	} {
		if _, err := svc.Log(ctx, 42, spec); !errors.Is(err, ErrMalformedDelivery) {
			t.Fatalf("spec %q: expected ErrMalformedDelivery, got %v", spec, err)
		}
	}
}

func TestDeliveryLog_ReusesExistingUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewDeliveryService(db)
	ctx := context.Background()

	u, err := repo.UpsertUserByDiscordID(ctx, db, 42)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	d, err := svc.Log(ctx, 42, "iron:1")
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if d.CreatedBy != u.ID {
		t.Fatalf("delivery should reference the existing user, got %q want %q", d.CreatedBy, u.ID)
	}
}
