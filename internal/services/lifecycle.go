// Package services – LifecycleService
//
// This file implements the archival decision engine. A request is "done"
// when its expiration has passed or every task is completed; a done request
// is archived exactly once, moving its message to the channel named by the
// archive rule of the triggering channel (or staying put when no rule
// exists). The decision is split into a side-effect-free readiness check
// and an effectful transition whose commit point is a conditional database
// update, so concurrent triggers race on the row rather than on message
// mutations: exactly one caller wins the flip and performs the move, every
// other caller observes AlreadyArchived.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-request-bot/internal/domain"
	"github.com/tbourn/go-request-bot/internal/gateway"
	"github.com/tbourn/go-request-bot/internal/metrics"
	"github.com/tbourn/go-request-bot/internal/render"
	"github.com/tbourn/go-request-bot/internal/repo"
)

// Outcome is the result of an archive attempt.
type Outcome int

const (
	// NotReady means the request is still open: tasks remain and no
	// expiration has passed. Nothing was mutated.
	NotReady Outcome = iota
	// Archived means this call performed the transition.
	Archived
	// AlreadyArchived means the request was archived before this call
	// committed (either long ago or by a concurrent trigger).
	AlreadyArchived
)

// String returns the outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case NotReady:
		return "not_ready"
	case Archived:
		return "archived"
	case AlreadyArchived:
		return "already_archived"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// LifecycleService owns the request state machine: Open -> Archived, with
// Archived terminal.
type LifecycleService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Gateway performs the outbound message mutations.
	Gateway gateway.Gateway

	// Now returns the current time; overridable in tests. Defaults to
	// time.Now when nil.
	Now func() time.Time
}

// NewLifecycleService constructs a LifecycleService.
func NewLifecycleService(db *gorm.DB, gw gateway.Gateway) *LifecycleService {
	return &LifecycleService{DB: db, Gateway: gw}
}

func (s *LifecycleService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Ready reports whether the request meets the completion condition: its
// expiration has passed, or every one of its tasks is completed (vacuously
// true for a request with no tasks). Pure read, no mutation.
func (s *LifecycleService) Ready(ctx context.Context, req *domain.Request) (bool, error) {
	if req.Expired(s.now()) {
		return true, nil
	}
	tasks, err := repo.ListTasksByRequest(ctx, s.DB, req.ID)
	if err != nil {
		return false, fmt.Errorf("archive request %s: list tasks: %w", req.ID, err)
	}
	for _, t := range tasks {
		if !t.Completed() {
			return false, nil
		}
	}
	return true, nil
}

// MaybeArchive attempts the Open -> Archived transition for a request.
//
// The sequence is: load, short-circuit if already archived, evaluate the
// readiness predicate, resolve the archive rule against the trigger's
// channel, commit archived_on with a conditional update, and only then
// mutate messages (post to the destination and remove the original, or
// re-render in place). A crash after the commit leaves the row archived
// with a stale message; the next interactive trigger resyncs it via the
// AlreadyArchived path of its caller.
func (s *LifecycleService) MaybeArchive(ctx context.Context, requestID string, trig Trigger) (Outcome, error) {
	req, err := repo.GetRequest(ctx, s.DB, requestID)
	if errors.Is(err, repo.ErrNotFound) {
		return NotReady, fmt.Errorf("archive request %s: %w", requestID, ErrRequestNotFound)
	}
	if err != nil {
		return NotReady, fmt.Errorf("archive request %s: load: %w", requestID, err)
	}
	if req.Archived() {
		return AlreadyArchived, nil
	}

	ready, err := s.Ready(ctx, req)
	if err != nil {
		return NotReady, err
	}
	if !ready {
		return NotReady, nil
	}

	// Resolve the destination before committing so a rule lookup failure
	// leaves the request untouched.
	var dest *int64
	rule, err := repo.GetArchiveRule(ctx, s.DB, trig.ChannelID())
	switch {
	case errors.Is(err, repo.ErrNotFound):
		// No rule: archive in place.
	case err != nil:
		return NotReady, fmt.Errorf("archive request %s: resolve rule for channel %d: %w", req.ID, trig.ChannelID(), err)
	default:
		dest = &rule.ToChannelID
	}

	at := s.now()
	won, err := repo.MarkRequestArchived(ctx, s.DB, req.ID, at)
	if err != nil {
		return NotReady, fmt.Errorf("archive request %s: commit: %w", req.ID, err)
	}
	if !won {
		return AlreadyArchived, nil
	}
	req.ArchivedOn = &at
	metrics.RequestsArchived.WithLabelValues(destLabel(dest)).Inc()

	tasks, err := repo.ListTasksByRequest(ctx, s.DB, req.ID)
	if err != nil {
		return Archived, fmt.Errorf("archive request %s: list tasks for render: %w", req.ID, err)
	}
	rendered := render.Request(req, tasks)

	if dest == nil {
		if err := trig.EditOriginal(ctx, req, rendered); err != nil {
			return Archived, fmt.Errorf("archive request %s: edit message in place: %w", req.ID, err)
		}
		return Archived, nil
	}

	sent, err := s.Gateway.SendMessage(ctx, *dest, rendered)
	if err != nil {
		return Archived, fmt.Errorf("archive request %s: send to archive channel %d: %w", req.ID, *dest, err)
	}
	if err := trig.AckArchived(ctx, sent.Link()); err != nil {
		return Archived, fmt.Errorf("archive request %s: acknowledge: %w", req.ID, err)
	}
	if err := trig.RemoveOriginal(ctx, req); err != nil {
		return Archived, fmt.Errorf("archive request %s: remove original message: %w", req.ID, err)
	}
	if err := repo.SetRequestMessage(ctx, s.DB, req.ID, sent.ID); err != nil {
		return Archived, fmt.Errorf("archive request %s: store archive message id: %w", req.ID, err)
	}
	return Archived, nil
}

func destLabel(dest *int64) string {
	if dest == nil {
		return "in_place"
	}
	return "moved"
}
