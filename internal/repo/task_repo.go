// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Task model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-request-bot/internal/domain"
)

// TaskUpdate describes a partial update applied to a batch of tasks. Each
// Set* flag selects whether the corresponding column participates; a
// participating column with a nil value is set to null, so an update can
// distinguish "leave untouched" from "clear".
type TaskUpdate struct {
	AssignedTo    *string
	SetAssignedTo bool

	StartedAt    *time.Time
	SetStartedAt bool

	CompletedAt    *time.Time
	SetCompletedAt bool

	// OnlyUncompleted restricts the update to tasks without a completion
	// stamp, so a stale unclaim cannot strip a finished task.
	OnlyUncompleted bool
}

// ListTasksByRequest returns all tasks of a request in ascending weight
// order with their assignees preloaded. Requests with no tasks yield an
// empty slice.
func ListTasksByRequest(ctx context.Context, db *gorm.DB, requestID string) ([]domain.Task, error) {
	var out []domain.Task
	err := db.WithContext(ctx).
		Preload("Assignee").
		Where("request_id = ?", requestID).
		Order("weight asc").
		Find(&out).Error
	return out, err
}

// UpdateTasksByIDs applies a partial update to the tasks with the given ids
// and returns the updated rows re-read from the database (the sqlite driver
// has no UPDATE..RETURNING through GORM, so the contract is met with an
// update followed by a re-select). Returns ErrNotFound when no row matched.
func UpdateTasksByIDs(ctx context.Context, db *gorm.DB, ids []string, upd TaskUpdate) ([]domain.Task, error) {
	if len(ids) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	cols := map[string]any{}
	if upd.SetAssignedTo {
		cols["assigned_to"] = upd.AssignedTo
	}
	if upd.SetStartedAt {
		cols["started_at"] = upd.StartedAt
	}
	if upd.SetCompletedAt {
		cols["completed_at"] = upd.CompletedAt
	}
	q := db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id IN ?", ids)
	if upd.OnlyUncompleted {
		q = q.Where("completed_at IS NULL")
	}
	res := q.Updates(cols)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var out []domain.Task
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("weight asc").
		Find(&out).Error
	return out, err
}
