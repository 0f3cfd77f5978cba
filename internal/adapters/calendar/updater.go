package calendar

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/relay/internal/domain/entities"
)

// Updater mirrors calendar-linked tasks into the calendar_events table and
// flags them for the next push to the calendar backend. It implements the
// CalendarSyncUpdater port.
type Updater struct {
	db *sqlx.DB
}

// NewUpdater creates a new calendar updater
func NewUpdater(db *sqlx.DB) *Updater {
	return &Updater{db: db}
}

// UpdateCalendar upserts the task's mirrored event and marks it dirty.
// Repeating the same snapshot leaves the event dirty rather than queueing
// a second push.
func (u *Updater) UpdateCalendar(ctx context.Context, task *entities.Task) error {
	if !task.HasCalendarEvent() {
		return nil
	}

	query := `
		INSERT INTO calendar_events (task_id, calendar_uri, title, starts_at, completed, cancelled, needs_push)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (task_id) DO UPDATE
		SET calendar_uri = EXCLUDED.calendar_uri,
		    title = EXCLUDED.title,
		    starts_at = EXCLUDED.starts_at,
		    completed = EXCLUDED.completed,
		    cancelled = EXCLUDED.cancelled,
		    needs_push = TRUE,
		    updated_at = CURRENT_TIMESTAMP`

	_, err := u.db.ExecContext(ctx, query,
		task.ID,
		task.CalendarURI,
		task.Title,
		task.DueDate,
		task.IsCompleted(),
		task.IsDeleted(),
	)
	if err != nil {
		return fmt.Errorf("failed to update calendar event: %w", err)
	}

	return nil
}
