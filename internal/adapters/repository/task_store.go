package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/ports"
)

// TaskStoreImpl implements the TaskStore interface using PostgreSQL
type TaskStoreImpl struct {
	db *sqlx.DB
}

// NewTaskStore creates a new task store
func NewTaskStore(db *sqlx.DB) ports.TaskStore {
	return &TaskStoreImpl{db: db}
}

const taskColumns = `id, uuid, title, notes, priority, due_date, completed_at, deleted_at, snoozed_until, timer_started_at, recurrence, calendar_uri, created_at, updated_at`

// Create inserts a new task row
func (r *TaskStoreImpl) Create(ctx context.Context, task *entities.Task) (*entities.Task, error) {
	if task.UUID == uuid.Nil {
		task.UUID = uuid.New()
	}

	query := `
		INSERT INTO tasks (uuid, title, notes, priority, due_date, completed_at, deleted_at, snoozed_until, timer_started_at, recurrence, calendar_uri)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		task.UUID,
		task.Title,
		task.Notes,
		task.Priority,
		task.DueDate,
		task.CompletedAt,
		task.DeletedAt,
		task.SnoozedUntil,
		task.TimerStartedAt,
		task.Recurrence,
		task.CalendarURI,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// GetByID retrieves a task by its ID
func (r *TaskStoreImpl) GetByID(ctx context.Context, id int64) (*entities.Task, error) {
	var task entities.Task
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &task, nil
}

// GetByIDs retrieves every existing task in ids; missing ids are skipped
func (r *TaskStoreImpl) GetByIDs(ctx context.Context, ids []int64) ([]*entities.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+taskColumns+` FROM tasks WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch query: %w", err)
	}
	query = r.db.Rebind(query)

	var tasks []*entities.Task
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}

	return tasks, nil
}

// List retrieves tasks matching the filter
func (r *TaskStoreImpl) List(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`

	var conditions []string
	var args []interface{}
	argIdx := 1

	if filter.Completed != nil {
		if *filter.Completed {
			conditions = append(conditions, "completed_at IS NOT NULL")
		} else {
			conditions = append(conditions, "completed_at IS NULL")
		}
	}
	if filter.Deleted != nil {
		if *filter.Deleted {
			conditions = append(conditions, "deleted_at IS NOT NULL")
		} else {
			conditions = append(conditions, "deleted_at IS NULL")
		}
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, fmt.Sprintf("due_date < $%d", argIdx))
		args = append(args, *filter.DueBefore)
		argIdx++
	}
	if filter.DueAfter != nil {
		conditions = append(conditions, fmt.Sprintf("due_date > $%d", argIdx))
		args = append(args, *filter.DueAfter)
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY due_date ASC NULLS LAST, id ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	var tasks []*entities.Task
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

// Update writes next and reports whether any column actually changed.
// With a nil previous the row is not expected to exist and the write is
// an insert that keeps next's id (rows imported from a sync source carry
// their identity with them). Identical content is detected before touching
// the row at all.
func (r *TaskStoreImpl) Update(ctx context.Context, next, previous *entities.Task) (bool, error) {
	if next.ID == 0 {
		return false, entities.ErrTaskMissingID
	}

	if previous == nil {
		return r.insertWithID(ctx, next)
	}

	if next.ContentEquals(previous) {
		return false, nil
	}

	query := `
		UPDATE tasks
		SET title = $2, notes = $3, priority = $4, due_date = $5, completed_at = $6,
		    deleted_at = $7, snoozed_until = $8, timer_started_at = $9, recurrence = $10,
		    calendar_uri = $11, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		next.ID,
		next.Title,
		next.Notes,
		next.Priority,
		next.DueDate,
		next.CompletedAt,
		next.DeletedAt,
		next.SnoozedUntil,
		next.TimerStartedAt,
		next.Recurrence,
		next.CalendarURI,
	).Scan(&next.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, entities.ErrTaskNotFound
		}
		return false, fmt.Errorf("failed to update task: %w", err)
	}

	return true, nil
}

func (r *TaskStoreImpl) insertWithID(ctx context.Context, task *entities.Task) (bool, error) {
	if task.UUID == uuid.Nil {
		task.UUID = uuid.New()
	}

	query := `
		INSERT INTO tasks (id, uuid, title, notes, priority, due_date, completed_at, deleted_at, snoozed_until, timer_started_at, recurrence, calendar_uri)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.UUID,
		task.Title,
		task.Notes,
		task.Priority,
		task.DueDate,
		task.CompletedAt,
		task.DeletedAt,
		task.SnoozedUntil,
		task.TimerStartedAt,
		task.Recurrence,
		task.CalendarURI,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	// Zero rows means the id appeared concurrently; this write changed
	// nothing and the caller's previous snapshot is already stale.
	return rows > 0, nil
}

// CompleteByIDs stamps completed_at on every pending row in ids
func (r *TaskStoreImpl) CompleteByIDs(ctx context.Context, ids []int64, completedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE tasks
		SET completed_at = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ANY($2) AND completed_at IS NULL AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, completedAt, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to complete tasks: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read completion result: %w", err)
	}

	return rows, nil
}
