package geofence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Updater keeps location fences aligned with their task's lifecycle: a
// fence stays armed only while its task is still actionable. It implements
// the GeofenceUpdater port.
type Updater struct {
	db *sqlx.DB
}

// NewUpdater creates a new geofence updater
func NewUpdater(db *sqlx.DB) *Updater {
	return &Updater{db: db}
}

// Update recomputes the armed flag of the task's fence from the task's
// current state. Tasks without a registered fence are left alone, and
// re-running the update is harmless.
func (u *Updater) Update(ctx context.Context, taskID int64) error {
	query := `
		UPDATE geofences g
		SET armed = (t.completed_at IS NULL AND t.deleted_at IS NULL),
		    updated_at = CURRENT_TIMESTAMP
		FROM tasks t
		WHERE g.task_id = t.id AND g.task_id = $1`

	if _, err := u.db.ExecContext(ctx, query, taskID); err != nil {
		return fmt.Errorf("failed to update geofence: %w", err)
	}

	return nil
}
