package services

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-request-bot/internal/domain"
	"github.com/tbourn/go-request-bot/internal/gateway"
	"github.com/tbourn/go-request-bot/internal/repo"
)

// newTestDB opens a fresh in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// newFixture wires a request service onto a fresh database and fake
// gateway.
func newFixture(t *testing.T) (*gorm.DB, *gateway.Fake, *RequestService) {
	t.Helper()
	db := newTestDB(t)
	gw := gateway.NewFake()
	lc := NewLifecycleService(db, gw)
	return db, gw, NewRequestService(db, gw, lc)
}

// postRequest creates a request through the service, posts its rendering
// to the fake gateway, and attaches the resulting message id, mirroring
// the interaction handler's flow.
func postRequest(t *testing.T, svc *RequestService, gw *gateway.Fake, channelID int64, in MakeRequestInput) (*domain.Request, []domain.Task, gateway.SentMessage) {
	t.Helper()
	ctx := context.Background()
	if in.ChannelID == nil {
		in.ChannelID = &channelID
	}
	req, tasks, err := svc.Make(ctx, in)
	if err != nil {
		t.Fatalf("make request: %v", err)
	}
	sent, err := gw.SendMessage(ctx, channelID, renderRequest(t, svc, req.ID))
	if err != nil {
		t.Fatalf("post request: %v", err)
	}
	if err := svc.AttachMessage(ctx, req.ID, sent.ID); err != nil {
		t.Fatalf("attach message: %v", err)
	}
	req.DiscordMessageID = &sent.ID
	return req, tasks, sent
}

func renderRequest(t *testing.T, svc *RequestService, requestID string) gateway.Message {
	t.Helper()
	msg, err := svc.Render(context.Background(), requestID)
	if err != nil {
		t.Fatalf("render request: %v", err)
	}
	return msg
}

func taskIDs(tasks []domain.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}
