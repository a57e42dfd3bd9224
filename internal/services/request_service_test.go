package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-request-bot/internal/repo"
	"github.com/tbourn/go-request-bot/internal/taskspec"
)

func TestMake_Validation(t *testing.T) {
	_, _, svc := newFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Make(ctx, MakeRequestInput{DiscordUserID: 1, Title: "   ", TaskSpec: "a"}); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("blank title: expected ErrEmptyTitle, got %v", err)
	}
	if _, _, err := svc.Make(ctx, MakeRequestInput{DiscordUserID: 1, Title: "t", TaskSpec: " ; ;"}); !errors.Is(err, ErrNoTasks) {
		t.Fatalf("empty spec: expected ErrNoTasks, got %v", err)
	}
	var malformed *taskspec.MalformedSpecError
	if _, _, err := svc.Make(ctx, MakeRequestInput{DiscordUserID: 1, Title: "t", TaskSpec: "{99999999999999999999x}a"}); !errors.As(err, &malformed) {
		t.Fatalf("overflowing multiplier: expected MalformedSpecError, got %v", err)
	}
}

func TestMake_ExpandsSpecAndAttributesCreator(t *testing.T) {
	_, _, svc := newFixture(t)

	req, tasks, err := svc.Make(context.Background(), MakeRequestInput{
		DiscordUserID: 42, Title: "  restock  ", TaskSpec: "iron;{2x}coal",
	})
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if req.Title != "restock" {
		t.Fatalf("title not trimmed: %q", req.Title)
	}
	if req.Creator.DiscordUserID != 42 {
		t.Fatalf("creator not attached: %+v", req.Creator)
	}
	want := []string{"iron", "coal", "coal"}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, task := range tasks {
		if task.Text != want[i] || task.Weight != i+1 {
			t.Fatalf("task %d = %+v, want text %q weight %d", i, task, want[i], i+1)
		}
	}
}

func TestUpdateTaskStatus_ClaimRefreshesMessage(t *testing.T) {
	_, gw, svc := newFixture(t)
	_, tasks, sent := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "restock", TaskSpec: "iron;coal",
	})

	out, err := svc.UpdateTaskStatus(context.Background(), []string{tasks[0].ID}, 7, ActionClaim, SweepTrigger{Gateway: gw, Channel: 10})
	if err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if out != NotReady {
		t.Fatalf("a claim must not archive, got %v", out)
	}

	msg := gw.Message(sent.ID)
	if msg == nil {
		t.Fatalf("message vanished")
	}
	desc := msg.Payload.Embed.Description
	if !strings.Contains(desc, "claimed at") || !strings.Contains(desc, "by <@7>") {
		t.Fatalf("claim not rendered: %q", desc)
	}
}

func TestUpdateTaskStatus_CompleteLastTaskArchives(t *testing.T) {
	db, gw, svc := newFixture(t)
	if err := repo.PutArchiveRule(context.Background(), db, 10, 20); err != nil {
		t.Fatalf("put rule: %v", err)
	}
	req, tasks, sent := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "restock", TaskSpec: "iron;coal",
	})

	trig := SweepTrigger{Gateway: gw, Channel: 10}
	out, err := svc.UpdateTaskStatus(context.Background(), taskIDs(tasks), 7, ActionComplete, trig)
	if err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if out != Archived {
		t.Fatalf("expected Archived, got %v", out)
	}

	if m := gw.Message(sent.ID); m == nil || !m.Deleted {
		t.Fatalf("original message should be deleted after the move")
	}
	reloaded, err := repo.GetRequest(context.Background(), db, req.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	moved := gw.Message(*reloaded.DiscordMessageID)
	if moved == nil || moved.ChannelID != 20 {
		t.Fatalf("archive copy not in channel 20: %+v", moved)
	}
	// Completing without a prior claim still attributes the work.
	if !strings.Contains(moved.Payload.Embed.Description, "completed at") ||
		!strings.Contains(moved.Payload.Embed.Description, "by <@7>") {
		t.Fatalf("completion not attributed: %q", moved.Payload.Embed.Description)
	}
}

func TestUpdateTaskStatus_StepwiseCompleteArchivesInPlace(t *testing.T) {
	_, gw, svc := newFixture(t)
	_, tasks, sent := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "restock", TaskSpec: "iron;coal",
	})

	trig := SweepTrigger{Gateway: gw, Channel: 10}
	ctx := context.Background()

	outcome, err := svc.UpdateTaskStatus(ctx, []string{tasks[0].ID}, 7, ActionComplete, trig)
	if err != nil || outcome != NotReady {
		t.Fatalf("first complete: outcome=%v err=%v", outcome, err)
	}
	msg := gw.Message(sent.ID)
	if !strings.Contains(msg.Payload.Embed.Description, "~~iron~~") {
		t.Fatalf("completed task not struck through: %q", msg.Payload.Embed.Description)
	}
	if msg.Payload.Components == nil {
		t.Fatalf("open task should keep its controls")
	}

	// No archive rule: completing the last task archives in place.
	outcome, err = svc.UpdateTaskStatus(ctx, []string{tasks[1].ID}, 7, ActionComplete, trig)
	if err != nil || outcome != Archived {
		t.Fatalf("last complete: outcome=%v err=%v", outcome, err)
	}
	msg = gw.Message(sent.ID)
	if msg == nil {
		t.Fatalf("message should survive an in-place archive")
	}
	if msg.Payload.Components != nil {
		t.Fatalf("archived message still has controls")
	}
}

func TestUpdateTaskStatus_UnclaimReopensTask(t *testing.T) {
	_, gw, svc := newFixture(t)
	_, tasks, sent := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "restock", TaskSpec: "iron",
	})

	trig := SweepTrigger{Gateway: gw, Channel: 10}
	ctx := context.Background()
	if _, err := svc.UpdateTaskStatus(ctx, []string{tasks[0].ID}, 7, ActionClaim, trig); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.UpdateTaskStatus(ctx, []string{tasks[0].ID}, 7, ActionUnclaim, trig); err != nil {
		t.Fatalf("unclaim: %v", err)
	}

	desc := gw.Message(sent.ID).Payload.Embed.Description
	if strings.Contains(desc, "claimed at") {
		t.Fatalf("unclaim not rendered: %q", desc)
	}
}

func TestUpdateTaskStatus_StaleUnclaimKeepsCompletion(t *testing.T) {
	db, gw, svc := newFixture(t)
	_, tasks, _ := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "restock", TaskSpec: "iron;coal",
	})

	trig := SweepTrigger{Gateway: gw, Channel: 10}
	ctx := context.Background()
	if _, err := svc.UpdateTaskStatus(ctx, []string{tasks[0].ID}, 7, ActionComplete, trig); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// An unclaim sent from a stale message must not undo the completion.
	if _, err := svc.UpdateTaskStatus(ctx, []string{tasks[0].ID}, 8, ActionUnclaim, trig); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	after, err := repo.ListTasksByRequest(ctx, db, tasks[0].RequestID)
	if err != nil {
		t.Fatalf("reload tasks: %v", err)
	}
	if after[0].CompletedAt == nil || after[0].AssignedTo == nil {
		t.Fatalf("completion stripped by stale unclaim: %+v", after[0])
	}
}

func TestUpdateTaskStatus_ResyncsStaleArchivedMessage(t *testing.T) {
	db, gw, svc := newFixture(t)
	req, tasks, sent := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "restock", TaskSpec: "iron",
	})

	// Archive the row without reshaping the message, as a crashed archiver
	// would leave it.
	if won, err := repo.MarkRequestArchived(context.Background(), db, req.ID, svc.Lifecycle.now()); err != nil || !won {
		t.Fatalf("pre-archive: won=%v err=%v", won, err)
	}
	if gw.Message(sent.ID).Payload.Components == nil {
		t.Fatalf("precondition: stale message still has controls")
	}

	out, err := svc.UpdateTaskStatus(context.Background(), taskIDs(tasks), 7, ActionComplete, SweepTrigger{Gateway: gw, Channel: 10})
	if err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if out != AlreadyArchived {
		t.Fatalf("expected AlreadyArchived, got %v", out)
	}
	msg := gw.Message(sent.ID)
	if msg.Payload.Components != nil {
		t.Fatalf("stale message was not resynced: %+v", msg.Payload.Components)
	}
	if !strings.Contains(msg.Payload.Content, "Archived at") {
		t.Fatalf("resynced content missing archive stamp: %q", msg.Payload.Content)
	}
}

func TestUpdateTaskStatus_UnknownTasks(t *testing.T) {
	_, gw, svc := newFixture(t)
	_, err := svc.UpdateTaskStatus(context.Background(), []string{"missing"}, 7, ActionClaim, SweepTrigger{Gateway: gw, Channel: 10})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestRepeat_ClonesIntoOriginalChannel(t *testing.T) {
	db, gw, svc := newFixture(t)
	req, tasks, sent := postRequest(t, svc, gw, 10, MakeRequestInput{
		DiscordUserID: 1, Title: "restock", TaskSpec: "iron;coal",
	})
	ctx := context.Background()
	if _, err := svc.UpdateTaskStatus(ctx, taskIDs(tasks), 1, ActionComplete, SweepTrigger{Gateway: gw, Channel: 10}); err != nil {
		t.Fatalf("complete original: %v", err)
	}

	clone, cloneSent, err := svc.Repeat(ctx, sent.ID, 7)
	if err != nil {
		t.Fatalf("Repeat: %v", err)
	}
	if clone.ID == req.ID {
		t.Fatalf("repeat must create a new request")
	}
	if clone.Creator.DiscordUserID != 7 {
		t.Fatalf("the acting user becomes the creator: %+v", clone.Creator)
	}
	if cloneSent.ChannelID != 10 {
		t.Fatalf("clone should post to the original channel, got %d", cloneSent.ChannelID)
	}

	cloneTasks, err := repo.ListTasksByRequest(ctx, db, clone.ID)
	if err != nil {
		t.Fatalf("load clone tasks: %v", err)
	}
	if len(cloneTasks) != 2 || cloneTasks[0].Text != "iron" || cloneTasks[0].CompletedAt != nil {
		t.Fatalf("clone tasks should be fresh copies: %+v", cloneTasks)
	}

	reloaded, err := repo.GetRequest(ctx, db, clone.ID)
	if err != nil {
		t.Fatalf("reload clone: %v", err)
	}
	if reloaded.DiscordMessageID == nil || *reloaded.DiscordMessageID != cloneSent.ID {
		t.Fatalf("clone message id not recorded: %v", reloaded.DiscordMessageID)
	}
}

func TestRepeat_Errors(t *testing.T) {
	db, _, svc := newFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Repeat(ctx, 424242, 7); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("unknown message: expected ErrRequestNotFound, got %v", err)
	}

	// A request without a stored channel cannot be repeated.
	u, err := repo.UpsertUserByDiscordID(ctx, db, 1)
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	orphan, err := repo.CreateRequest(ctx, db, repo.NewRequest{Title: "orphan", CreatedBy: u.ID}, []string{"a"})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if err := repo.SetRequestMessage(ctx, db, orphan.ID, 555); err != nil {
		t.Fatalf("set message: %v", err)
	}
	if _, _, err := svc.Repeat(ctx, 555, 7); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel, got %v", err)
	}
}
