// Package domain defines the persistence models for requests, tasks, users,
// archive rules, schedules, and deliveries. These types are mapped with GORM
// and form the core data layer of the request bot.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// User is a Discord member known to the bot. Users are created lazily the
// first time they interact with a request; the row is an identity anchor
// only and never changes after creation.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - DiscordUserID: the platform user id; unique, used for the lazy upsert.
//   - CreatedAt: timestamp managed by GORM.
type User struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	DiscordUserID int64     `json:"discord_user_id" gorm:"not null;uniqueIndex"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Request is a postable unit of work: a title plus an ordered list of tasks.
// The Discord message id is unknown until the message has been sent, so it
// starts out null and is backfilled once the message exists.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Title: request summary shown as the message heading.
//   - CreatedBy: foreign key to the creating user.
//   - DiscordMessageID: id of the message currently representing the
//     request; unique, updated when the request moves to an archive channel.
//   - DiscordChannelID: channel the request was posted in. A request with
//     no channel is ephemeral and cannot be repeated.
//   - ThumbnailURL: optional embed thumbnail.
//   - ExpiresOn: optional deadline after which the expiration sweep
//     archives the request regardless of task state.
//   - ArchivedOn: set exactly once when the request is archived; never
//     reverts to null.
//   - CreatedByScheduleID: set when the request was generated from a
//     recurring schedule.
type Request struct {
	ID                  string     `json:"id"                     gorm:"type:char(36);primaryKey"`
	Title               string     `json:"title"                  gorm:"type:varchar(255);not null"`
	CreatedBy           string     `json:"created_by"             gorm:"type:char(36);not null;index"`
	DiscordMessageID    *int64     `json:"discord_message_id"     gorm:"uniqueIndex"`
	DiscordChannelID    *int64     `json:"discord_channel_id"`
	ThumbnailURL        *string    `json:"thumbnail_url,omitempty" gorm:"type:varchar(512)"`
	ExpiresOn           *time.Time `json:"expires_on,omitempty"   gorm:"index"`
	ArchivedOn          *time.Time `json:"archived_on,omitempty"  gorm:"index"`
	CreatedByScheduleID *string    `json:"created_by_schedule,omitempty" gorm:"type:char(36);index"`
	CreatedAt           time.Time  `json:"created_at"`

	// Creator is the user who made the request.
	Creator User `json:"-" gorm:"foreignKey:CreatedBy;references:ID"`
}

// TableName returns the database table name for Request.
func (Request) TableName() string { return "requests" }

// Archived reports whether the request has reached its terminal state.
func (r *Request) Archived() bool { return r.ArchivedOn != nil }

// Expired reports whether the request has an expiration that has passed
// relative to now.
func (r *Request) Expired(now time.Time) bool {
	return r.ExpiresOn != nil && r.ExpiresOn.Before(now)
}

// Task is one sub-item of a request. Tasks are owned exclusively by their
// request; archiving the request leaves its tasks untouched. Claiming sets
// AssignedTo and StartedAt; completing sets CompletedAt (and the assignee,
// when the task was never separately claimed). There is no un-complete.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - RequestID: foreign key to the owning request (indexed).
//   - Weight: display order, conventionally sequential from 1.
//   - Text: the task description (column "task").
//   - AssignedTo: optional claimer/completer.
//   - StartedAt: claim timestamp.
//   - CompletedAt: completion timestamp.
type Task struct {
	ID          string     `json:"id"         gorm:"type:char(36);primaryKey"`
	RequestID   string     `json:"request_id" gorm:"type:char(36);not null;index:idx_request_tasks"`
	Weight      int        `json:"weight"     gorm:"not null"`
	Text        string     `json:"text"       gorm:"type:text;not null;column:task"`
	AssignedTo  *string    `json:"assigned_to,omitempty" gorm:"type:char(36)"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// Request is the owning request.
	Request Request `json:"-" gorm:"foreignKey:RequestID;references:ID"`
	// Assignee is the user the task is claimed by, when any.
	Assignee *User `json:"-" gorm:"foreignKey:AssignedTo;references:ID"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string { return "tasks" }

// Completed reports whether the task has been marked done.
func (t *Task) Completed() bool { return t.CompletedAt != nil }

// Claimed reports whether the task has been claimed but not completed.
func (t *Task) Claimed() bool { return t.StartedAt != nil && t.CompletedAt == nil }

// ArchiveRule routes completed or expired requests from a source channel to
// a destination channel. At most one rule exists per source channel; the
// absence of a rule means requests archive in place.
type ArchiveRule struct {
	FromChannelID int64     `json:"from_channel" gorm:"primaryKey;autoIncrement:false"`
	ToChannelID   int64     `json:"to_channel"   gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for ArchiveRule.
func (ArchiveRule) TableName() string { return "archive_rules" }

// RequestSchedule is a template that periodically generates new requests.
// The schedule tracks the message id of the last request it posted; when
// Discord reports that message gone, the schedule is permanently disabled.
//
// Fields:
//   - SecondsBetweenRequests: cadence between generated requests.
//   - Tasks: the task texts instantiated for each generated request,
//     stored as a JSON array column.
//   - DisabledAt: set once when the tracked message disappears; a disabled
//     schedule never fires again.
type RequestSchedule struct {
	ID                     string                      `json:"id"         gorm:"type:char(36);primaryKey"`
	CreatedBy              string                      `json:"created_by" gorm:"type:char(36);not null"`
	DisabledAt             *time.Time                  `json:"disabled_at,omitempty"`
	DiscordMessageID       *int64                      `json:"discord_message_id" gorm:"uniqueIndex"`
	DiscordChannelID       int64                       `json:"discord_channel_id" gorm:"not null"`
	SecondsBetweenRequests int                         `json:"seconds_between_requests" gorm:"not null"`
	Title                  string                      `json:"title"      gorm:"type:varchar(255);not null"`
	Tasks                  datatypes.JSONSlice[string] `json:"tasks"      gorm:"not null"`
	ThumbnailURL           *string                     `json:"thumbnail_url,omitempty" gorm:"type:varchar(512)"`
	CreatedAt              time.Time                   `json:"created_at"`

	// Creator is the user the generated requests are attributed to.
	Creator User `json:"-" gorm:"foreignKey:CreatedBy;references:ID"`
}

// TableName returns the database table name for RequestSchedule.
func (RequestSchedule) TableName() string { return "request_schedules" }

// Delivery is a write-once record of items handed in by a user. It has no
// lifecycle beyond creation.
type Delivery struct {
	ID               string    `json:"id"         gorm:"type:char(36);primaryKey"`
	CreatedBy        string    `json:"created_by" gorm:"type:char(36);not null;index"`
	DiscordMessageID *int64    `json:"discord_message_id" gorm:"uniqueIndex"`
	CreatedAt        time.Time `json:"created_at"`

	// Items are the item/amount pairs of this delivery.
	Items []DeliveryItem `json:"items" gorm:"foreignKey:DeliveryID;references:ID"`
}

// TableName returns the database table name for Delivery.
func (Delivery) TableName() string { return "deliveries" }

// DeliveryItem is a single item/amount pair within a delivery.
type DeliveryItem struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	DeliveryID string `json:"delivery_id" gorm:"type:char(36);not null;index"`
	ItemName   string `json:"item_name"   gorm:"type:varchar(255);not null"`
	Amount     int    `json:"amount"      gorm:"not null"`
}

// TableName returns the database table name for DeliveryItem.
func (DeliveryItem) TableName() string { return "delivery_items" }
