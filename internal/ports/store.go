package ports

import (
	"context"
	"time"

	"github.com/taskmaster/relay/internal/domain/entities"
)

// TaskStore defines the interface for task persistence. It is the source
// of truth for the save pipeline: side effects are only evaluated against
// state the store has confirmed durable.
type TaskStore interface {
	Create(ctx context.Context, task *entities.Task) (*entities.Task, error)
	GetByID(ctx context.Context, id int64) (*entities.Task, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*entities.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]*entities.Task, error)
	// Update writes next and reports whether any column actually changed
	// relative to previous. A nil previous means the row is not expected
	// to exist yet; the write is then an insert keeping next's id.
	// Identical content returns (false, nil) without touching the row.
	Update(ctx context.Context, next, previous *entities.Task) (bool, error)
	// CompleteByIDs stamps completed_at on every listed row that is still
	// pending and returns how many rows it touched.
	CompleteByIDs(ctx context.Context, ids []int64, completedAt time.Time) (int64, error)
}

// TaskFilter narrows List results
type TaskFilter struct {
	Completed *bool
	Deleted   *bool
	DueBefore *time.Time
	DueAfter  *time.Time
	Limit     int
	Offset    int
}
