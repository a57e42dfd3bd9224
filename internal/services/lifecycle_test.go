package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-request-bot/internal/repo"
)

func TestMaybeArchive_NotReadyWhileTasksOpen(t *testing.T) {
	db, gw, svc := newFixture(t)
	req, tasks, _ := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "stock up", TaskSpec: "a;b",
	})

	now := time.Now().UTC()
	if _, err := repo.UpdateTasksByIDs(context.Background(), db, []string{tasks[0].ID}, repo.TaskUpdate{
		CompletedAt: &now, SetCompletedAt: true,
	}); err != nil {
		t.Fatalf("complete first task: %v", err)
	}

	out, err := svc.Lifecycle.MaybeArchive(context.Background(), req.ID, SweepTrigger{Gateway: gw, Channel: 10})
	if err != nil {
		t.Fatalf("MaybeArchive: %v", err)
	}
	if out != NotReady {
		t.Fatalf("expected NotReady, got %v", out)
	}
	reloaded, err := repo.GetRequest(context.Background(), db, req.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ArchivedOn != nil {
		t.Fatalf("request should not be archived: %v", reloaded.ArchivedOn)
	}
}

func TestMaybeArchive_InPlaceWithoutRule(t *testing.T) {
	db, gw, svc := newFixture(t)
	req, tasks, sent := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "stock up", TaskSpec: "a;b",
	})

	now := time.Now().UTC()
	if _, err := repo.UpdateTasksByIDs(context.Background(), db, taskIDs(tasks), repo.TaskUpdate{
		CompletedAt: &now, SetCompletedAt: true,
	}); err != nil {
		t.Fatalf("complete tasks: %v", err)
	}

	trig := SweepTrigger{Gateway: gw, Channel: 10}
	out, err := svc.Lifecycle.MaybeArchive(context.Background(), req.ID, trig)
	if err != nil {
		t.Fatalf("MaybeArchive: %v", err)
	}
	if out != Archived {
		t.Fatalf("expected Archived, got %v", out)
	}

	msg := gw.Message(sent.ID)
	if msg == nil || msg.Deleted {
		t.Fatalf("in-place archive must keep the original message")
	}
	if msg.Payload.Components != nil {
		t.Fatalf("archived message should carry no controls: %+v", msg.Payload.Components)
	}

	reloaded, err := repo.GetRequest(context.Background(), db, req.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ArchivedOn == nil {
		t.Fatalf("archived_on not stamped")
	}

	// The transition is terminal.
	out, err = svc.Lifecycle.MaybeArchive(context.Background(), req.ID, trig)
	if err != nil {
		t.Fatalf("second MaybeArchive: %v", err)
	}
	if out != AlreadyArchived {
		t.Fatalf("expected AlreadyArchived, got %v", out)
	}
}

func TestMaybeArchive_MovesMessageWithRule(t *testing.T) {
	db, gw, svc := newFixture(t)
	if err := repo.PutArchiveRule(context.Background(), db, 10, 20); err != nil {
		t.Fatalf("put rule: %v", err)
	}
	req, tasks, sent := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "stock up", TaskSpec: "a",
	})

	now := time.Now().UTC()
	if _, err := repo.UpdateTasksByIDs(context.Background(), db, taskIDs(tasks), repo.TaskUpdate{
		CompletedAt: &now, SetCompletedAt: true,
	}); err != nil {
		t.Fatalf("complete tasks: %v", err)
	}

	out, err := svc.Lifecycle.MaybeArchive(context.Background(), req.ID, SweepTrigger{Gateway: gw, Channel: 10})
	if err != nil {
		t.Fatalf("MaybeArchive: %v", err)
	}
	if out != Archived {
		t.Fatalf("expected Archived, got %v", out)
	}

	if m := gw.Message(sent.ID); m == nil || !m.Deleted {
		t.Fatalf("original message should be deleted")
	}
	reloaded, err := repo.GetRequest(context.Background(), db, req.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.DiscordMessageID == nil || *reloaded.DiscordMessageID == sent.ID {
		t.Fatalf("message id should point at the archive copy: %v", reloaded.DiscordMessageID)
	}
	moved := gw.Message(*reloaded.DiscordMessageID)
	if moved == nil || moved.ChannelID != 20 {
		t.Fatalf("archive copy should live in channel 20: %+v", moved)
	}
	if moved.Payload.Components != nil {
		t.Fatalf("archive copy should carry no controls")
	}
}

func TestMaybeArchive_ExpirationWithOpenTasks(t *testing.T) {
	db, gw, svc := newFixture(t)
	past := time.Now().UTC().Add(-time.Hour)
	req, _, sent := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "stock up", TaskSpec: "a;b", ExpiresOn: &past,
	})

	out, err := svc.Lifecycle.MaybeArchive(context.Background(), req.ID, SweepTrigger{Gateway: gw, Channel: 10})
	if err != nil {
		t.Fatalf("MaybeArchive: %v", err)
	}
	if out != Archived {
		t.Fatalf("expected Archived for an expired request, got %v", out)
	}
	reloaded, err := repo.GetRequest(context.Background(), db, req.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ArchivedOn == nil {
		t.Fatalf("archived_on not stamped")
	}
	if m := gw.Message(sent.ID); m == nil || m.Deleted {
		t.Fatalf("without a rule the message must stay in place")
	}
}

func TestMaybeArchive_MissingRequest(t *testing.T) {
	_, gw, svc := newFixture(t)
	_, err := svc.Lifecycle.MaybeArchive(context.Background(), "missing", SweepTrigger{Gateway: gw, Channel: 10})
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

// raceTrigger archives the row out from under the engine while it resolves
// the archive rule, simulating a concurrent trigger winning the commit.
type raceTrigger struct {
	SweepTrigger
	onChannelID func()
}

var _ Trigger = raceTrigger{}

func (t raceTrigger) ChannelID() int64 {
	if t.onChannelID != nil {
		t.onChannelID()
	}
	return t.SweepTrigger.ChannelID()
}

func TestMaybeArchive_ConcurrentCommitRace(t *testing.T) {
	db, gw, svc := newFixture(t)
	req, tasks, sent := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "stock up", TaskSpec: "a",
	})

	now := time.Now().UTC()
	if _, err := repo.UpdateTasksByIDs(context.Background(), db, taskIDs(tasks), repo.TaskUpdate{
		CompletedAt: &now, SetCompletedAt: true,
	}); err != nil {
		t.Fatalf("complete tasks: %v", err)
	}

	rival := now.Add(-time.Second)
	trig := raceTrigger{
		SweepTrigger: SweepTrigger{Gateway: gw, Channel: 10},
		onChannelID: func() {
			won, err := repo.MarkRequestArchived(context.Background(), db, req.ID, rival)
			if err != nil || !won {
				t.Fatalf("rival archive failed: won=%v err=%v", won, err)
			}
		},
	}

	out, err := svc.Lifecycle.MaybeArchive(context.Background(), req.ID, trig)
	if err != nil {
		t.Fatalf("MaybeArchive: %v", err)
	}
	if out != AlreadyArchived {
		t.Fatalf("losing the commit must report AlreadyArchived, got %v", out)
	}

	// The loser performs no message mutation and does not restamp the row.
	if m := gw.Message(sent.ID); m == nil || m.Deleted {
		t.Fatalf("loser must not touch the message")
	}
	reloaded, err := repo.GetRequest(context.Background(), db, req.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ArchivedOn == nil || !reloaded.ArchivedOn.Equal(rival) {
		t.Fatalf("archived_on should keep the rival's stamp: %v", reloaded.ArchivedOn)
	}
}

func TestReady_VacuousForZeroTasks(t *testing.T) {
	db, _, svc := newFixture(t)
	u, err := repo.UpsertUserByDiscordID(context.Background(), db, 1)
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	req, err := repo.CreateRequest(context.Background(), db, repo.NewRequest{
		Title: "empty", CreatedBy: u.ID,
	}, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	ready, err := svc.Lifecycle.Ready(context.Background(), req)
	if err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if !ready {
		t.Fatalf("a request with no tasks is trivially complete")
	}
}

func TestOutcomeString(t *testing.T) {
	cases := map[Outcome]string{
		NotReady:        "not_ready",
		Archived:        "archived",
		AlreadyArchived: "already_archived",
		Outcome(9):      "outcome(9)",
	}
	for o, want := range cases {
		if got := o.String(); got != want {
			t.Fatalf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}

