package notify

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Notification kinds recorded by the ledger.
const (
	KindReminder = "reminder"
	KindSnooze   = "snooze"
)

// Ledger tracks delivered notifications per task so they can be dismissed
// when the task no longer warrants them. It implements the
// NotificationCanceler port.
type Ledger struct {
	db *sqlx.DB
}

// NewLedger creates a new notification ledger
func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends a delivered notification for a task
func (l *Ledger) Record(ctx context.Context, taskID int64, kind string) error {
	query := `INSERT INTO notifications (task_id, kind) VALUES ($1, $2)`

	if _, err := l.db.ExecContext(ctx, query, taskID, kind); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}

	return nil
}

// Cancel dismisses every pending notification for the task. Cancelling a
// task with nothing pending succeeds without touching any row.
func (l *Ledger) Cancel(ctx context.Context, taskID int64) error {
	query := `
		UPDATE notifications
		SET dismissed_at = CURRENT_TIMESTAMP
		WHERE task_id = $1 AND dismissed_at IS NULL`

	if _, err := l.db.ExecContext(ctx, query, taskID); err != nil {
		return fmt.Errorf("failed to dismiss notifications: %w", err)
	}

	return nil
}
