package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskMissingID = errors.New("task has no id")
	ErrSnoozeInPast  = errors.New("snooze time must be in the future")
)

// Enums and types
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Task is a snapshot of a task row. Save pipelines pass these around by
// value semantics: a previous snapshot is never mutated after it is read.
type Task struct {
	ID             int64      `json:"id" db:"id"`
	UUID           uuid.UUID  `json:"uuid" db:"uuid"`
	Title          string     `json:"title" db:"title"`
	Notes          *string    `json:"notes" db:"notes"`
	Priority       Priority   `json:"priority" db:"priority"`
	DueDate        *time.Time `json:"due_date" db:"due_date"`
	CompletedAt    *time.Time `json:"completed_at" db:"completed_at"`
	DeletedAt      *time.Time `json:"deleted_at" db:"deleted_at"`
	SnoozedUntil   *time.Time `json:"snoozed_until" db:"snoozed_until"`
	TimerStartedAt *time.Time `json:"timer_started_at" db:"timer_started_at"`
	Recurrence     string     `json:"recurrence" db:"recurrence"`
	CalendarURI    string     `json:"calendar_uri" db:"calendar_uri"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// TimeEntry records an elapsed tracking span closed out when a task's
// timer is stopped.
type TimeEntry struct {
	ID              int64     `json:"id" db:"id"`
	TaskID          int64     `json:"task_id" db:"task_id"`
	StartedAt       time.Time `json:"started_at" db:"started_at"`
	EndedAt         time.Time `json:"ended_at" db:"ended_at"`
	DurationSeconds int64     `json:"duration_seconds" db:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Notification is a ledger row for a reminder surfaced to clients.
type Notification struct {
	ID          int64      `json:"id" db:"id"`
	TaskID      int64      `json:"task_id" db:"task_id"`
	Kind        string     `json:"kind" db:"kind"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	DismissedAt *time.Time `json:"dismissed_at" db:"dismissed_at"`
}

// Business logic methods for Task
func (t *Task) IsCompleted() bool {
	return t.CompletedAt != nil
}

func (t *Task) IsDeleted() bool {
	return t.DeletedAt != nil
}

func (t *Task) IsRecurring() bool {
	return t.Recurrence != ""
}

func (t *Task) HasCalendarEvent() bool {
	return t.CalendarURI != ""
}

func (t *Task) HasDueDate() bool {
	return t.DueDate != nil
}

func (t *Task) HasActiveTimer() bool {
	return t.TimerStartedAt != nil
}

func (t *Task) IsSnoozed(now time.Time) bool {
	return t.SnoozedUntil != nil && t.SnoozedUntil.After(now)
}

// Clone returns an independent copy. Pointer fields are duplicated so a
// derived snapshot can be mutated without touching the source.
func (t *Task) Clone() *Task {
	c := *t
	c.Notes = cloneString(t.Notes)
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.DeletedAt = cloneTime(t.DeletedAt)
	c.SnoozedUntil = cloneTime(t.SnoozedUntil)
	c.TimerStartedAt = cloneTime(t.TimerStartedAt)
	return &c
}

// ContentEquals reports whether the caller-editable columns match.
// Bookkeeping columns (created_at, updated_at, uuid) are ignored.
func (t *Task) ContentEquals(other *Task) bool {
	if other == nil {
		return false
	}
	return t.Title == other.Title &&
		stringPtrEqual(t.Notes, other.Notes) &&
		t.Priority == other.Priority &&
		timePtrEqual(t.DueDate, other.DueDate) &&
		timePtrEqual(t.CompletedAt, other.CompletedAt) &&
		timePtrEqual(t.DeletedAt, other.DeletedAt) &&
		timePtrEqual(t.SnoozedUntil, other.SnoozedUntil) &&
		timePtrEqual(t.TimerStartedAt, other.TimerStartedAt) &&
		t.Recurrence == other.Recurrence &&
		t.CalendarURI == other.CalendarURI
}

// Utility methods
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// timePtrEqual treats two timestamps as equal when both are absent or
// both are set to the same instant. A set timestamp never equals an
// absent one.
func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
