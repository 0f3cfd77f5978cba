package timers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/database"
)

// Stopper closes a task's running timer into a time entry. It implements
// the TimerStopper port.
type Stopper struct {
	db *database.DB
}

// NewStopper creates a new timer stopper
func NewStopper(db *database.DB) *Stopper {
	return &Stopper{db: db}
}

// StopTimer books the elapsed time of the task's running timer as a time
// entry and clears the timer column, both in one transaction. The live row
// is re-read under lock so a replay against an already stopped timer books
// nothing.
func (s *Stopper) StopTimer(ctx context.Context, task *entities.Task) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var startedAt sql.NullTime
		query := `SELECT timer_started_at FROM tasks WHERE id = $1 FOR UPDATE`

		if err := tx.GetContext(ctx, &startedAt, query, task.ID); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return fmt.Errorf("failed to read timer state: %w", err)
		}
		if !startedAt.Valid {
			return nil
		}

		endedAt := time.Now()
		duration := int64(endedAt.Sub(startedAt.Time).Seconds())
		if duration < 0 {
			duration = 0
		}

		insert := `
			INSERT INTO time_entries (task_id, started_at, ended_at, duration_seconds)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.ExecContext(ctx, insert, task.ID, startedAt.Time, endedAt, duration); err != nil {
			return fmt.Errorf("failed to book time entry: %w", err)
		}

		clearTimer := `
			UPDATE tasks
			SET timer_started_at = NULL, updated_at = CURRENT_TIMESTAMP
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, clearTimer, task.ID); err != nil {
			return fmt.Errorf("failed to clear timer: %w", err)
		}

		return nil
	})
}
