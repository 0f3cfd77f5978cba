package ports

import (
	"context"
	"time"

	"github.com/taskmaster/relay/internal/domain/entities"
)

// TaskService is the update gateway: the single entry point through which
// task state changes become durable and side effects are evaluated.
type TaskService interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*entities.Task, error)
	GetTask(ctx context.Context, id int64) (*entities.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*entities.Task, error)
	UpdateTask(ctx context.Context, id int64, req UpdateTaskRequest) (*entities.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	CompleteTask(ctx context.Context, id int64) (*entities.Task, error)
	ReopenTask(ctx context.Context, id int64) (*entities.Task, error)
	SnoozeTask(ctx context.Context, id int64, until time.Time) (*entities.Task, error)
	// Save persists a mutated snapshot, resolving the previous snapshot
	// from the store. SaveWithPrevious skips that fetch for callers that
	// already hold it. ConfirmSaved evaluates side effects for a row that
	// was written through another path, without writing anything itself.
	Save(ctx context.Context, mutated *entities.Task) error
	SaveWithPrevious(ctx context.Context, mutated, previous *entities.Task) error
	ConfirmSaved(ctx context.Context, original *entities.Task, suppressRefresh bool) error
}

// BulkCompleter completes a batch of tasks in one store write, then
// replays side effects per task.
type BulkCompleter interface {
	CompleteAll(ctx context.Context, ids []int64) (int64, error)
}

// Request/Response Types

// Task related types
type CreateTaskRequest struct {
	Title        string            `json:"title" validate:"required,max=500"`
	Notes        *string           `json:"notes" validate:"omitempty,max=5000"`
	Priority     entities.Priority `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	DueDate      *time.Time        `json:"due_date"`
	SnoozedUntil *time.Time        `json:"snoozed_until"`
	Recurrence   string            `json:"recurrence" validate:"omitempty,max=500"`
	CalendarURI  string            `json:"calendar_uri" validate:"omitempty,max=500"`
}

// UpdateTaskRequest replaces the caller-editable fields wholesale: the
// body is the complete mutated snapshot, so an omitted nullable field
// clears it. Deletion is not settable here; DELETE owns that column.
type UpdateTaskRequest struct {
	Title          string            `json:"title" validate:"required,max=500"`
	Notes          *string           `json:"notes" validate:"omitempty,max=5000"`
	Priority       entities.Priority `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	DueDate        *time.Time        `json:"due_date"`
	CompletedAt    *time.Time        `json:"completed_at"`
	SnoozedUntil   *time.Time        `json:"snoozed_until"`
	TimerStartedAt *time.Time        `json:"timer_started_at"`
	Recurrence     string            `json:"recurrence" validate:"omitempty,max=500"`
	CalendarURI    string            `json:"calendar_uri" validate:"omitempty,max=500"`
}

type SnoozeTaskRequest struct {
	Until time.Time `json:"until" validate:"required"`
}

type BulkCompleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// ConfirmSavedRequest carries the pre-write snapshot a caller held before
// it updated the row through its own path.
type ConfirmSavedRequest struct {
	Original        entities.Task `json:"original" validate:"required"`
	SuppressRefresh bool          `json:"suppress_refresh"`
}

type BulkCompleteResponse struct {
	Completed int64 `json:"completed"`
}

// Response types for pagination and common structures
type PaginatedResponse[T any] struct {
	Data   []T `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
