package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
	"github.com/taskmaster/relay/internal/ports"
)

// TaskService is the update gateway: every task state change funnels
// through Save/SaveWithPrevious so side effects are evaluated against a
// confirmed, durable write and nothing else.
type TaskService struct {
	store   ports.TaskStore
	effects *EffectDispatcher
	metrics *EffectMetrics
	logger  *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(store ports.TaskStore, effects *EffectDispatcher, metrics *EffectMetrics, logger *logger.Logger) *TaskService {
	return &TaskService{
		store:   store,
		effects: effects,
		metrics: metrics,
		logger:  logger,
	}
}

// CreateTask creates a new task and runs the side-effect pipeline with an
// absent previous snapshot.
func (s *TaskService) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	priority := req.Priority
	if priority == "" {
		priority = entities.PriorityMedium
	}

	now := time.Now()
	task := &entities.Task{
		Title:        req.Title,
		Notes:        req.Notes,
		Priority:     priority,
		DueDate:      req.DueDate,
		SnoozedUntil: req.SnoozedUntil,
		Recurrence:   req.Recurrence,
		CalendarURI:  req.CalendarURI,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.store.Create(ctx, task)
	if err != nil {
		s.metrics.Saves.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.metrics.Saves.WithLabelValues("created").Inc()

	transitions := entities.Classify(nil, created, time.Now())
	s.effects.Dispatch(ctx, transitions, created, nil, false)

	s.logger.Infow("Task created", "task_id", created.ID, "title", created.Title)
	return created, nil
}

// GetTask retrieves a task by ID
func (s *TaskService) GetTask(ctx context.Context, id int64) (*entities.Task, error) {
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", id, err)
	}
	return task, nil
}

// ListTasks returns tasks matching the filter
func (s *TaskService) ListTasks(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	tasks, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask replaces the caller-editable fields with the request body
// and saves the result. The request is the complete mutated snapshot, so
// omitted nullable fields are cleared.
func (s *TaskService) UpdateTask(ctx context.Context, id int64, req ports.UpdateTaskRequest) (*entities.Task, error) {
	previous, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", id, err)
	}

	mutated := previous.Clone()
	mutated.Title = req.Title
	mutated.Notes = req.Notes
	if req.Priority != "" {
		mutated.Priority = req.Priority
	}
	mutated.DueDate = req.DueDate
	mutated.CompletedAt = req.CompletedAt
	mutated.SnoozedUntil = req.SnoozedUntil
	mutated.TimerStartedAt = req.TimerStartedAt
	mutated.Recurrence = req.Recurrence
	mutated.CalendarURI = req.CalendarURI

	if err := s.SaveWithPrevious(ctx, mutated, previous); err != nil {
		return nil, err
	}
	return mutated, nil
}

// DeleteTask marks a task deleted. Deleting a deleted task is a no-op.
func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	previous, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load task %d: %w", id, err)
	}
	if previous.IsDeleted() {
		return nil
	}

	mutated := previous.Clone()
	now := time.Now()
	mutated.DeletedAt = &now
	return s.SaveWithPrevious(ctx, mutated, previous)
}

// CompleteTask stamps the completion timestamp. Completing a completed
// task returns the stored snapshot unchanged.
func (s *TaskService) CompleteTask(ctx context.Context, id int64) (*entities.Task, error) {
	previous, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", id, err)
	}
	if previous.IsCompleted() {
		return previous, nil
	}

	mutated := previous.Clone()
	now := time.Now()
	mutated.CompletedAt = &now
	if err := s.SaveWithPrevious(ctx, mutated, previous); err != nil {
		return nil, err
	}
	return mutated, nil
}

// ReopenTask clears the completion timestamp.
func (s *TaskService) ReopenTask(ctx context.Context, id int64) (*entities.Task, error) {
	previous, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", id, err)
	}
	if !previous.IsCompleted() {
		return previous, nil
	}

	mutated := previous.Clone()
	mutated.CompletedAt = nil
	if err := s.SaveWithPrevious(ctx, mutated, previous); err != nil {
		return nil, err
	}
	return mutated, nil
}

// SnoozeTask pushes the task's reminders out until the given time.
func (s *TaskService) SnoozeTask(ctx context.Context, id int64, until time.Time) (*entities.Task, error) {
	if !until.After(time.Now()) {
		return nil, entities.ErrSnoozeInPast
	}

	previous, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", id, err)
	}

	mutated := previous.Clone()
	mutated.SnoozedUntil = &until
	if err := s.SaveWithPrevious(ctx, mutated, previous); err != nil {
		return nil, err
	}
	return mutated, nil
}

// Save persists a mutated snapshot, resolving the previous one from the
// store first. A row that does not exist yet is a valid input: previous
// stays nil and the write becomes an insert.
func (s *TaskService) Save(ctx context.Context, mutated *entities.Task) error {
	if mutated.ID == 0 {
		return entities.ErrTaskMissingID
	}

	previous, err := s.store.GetByID(ctx, mutated.ID)
	if err != nil && !errors.Is(err, entities.ErrTaskNotFound) {
		s.metrics.Saves.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to load previous snapshot of task %d: %w", mutated.ID, err)
	}
	return s.SaveWithPrevious(ctx, mutated, previous)
}

// SaveWithPrevious persists a mutated snapshot for a caller that already
// holds the previous one. Side effects run only when the store confirms
// that a column actually changed; a no-op write dispatches nothing. A
// failed write propagates with no side effects at all.
func (s *TaskService) SaveWithPrevious(ctx context.Context, mutated, previous *entities.Task) error {
	if mutated.ID == 0 {
		return entities.ErrTaskMissingID
	}

	changed, err := s.store.Update(ctx, mutated, previous)
	if err != nil {
		s.metrics.Saves.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to persist task %d: %w", mutated.ID, err)
	}
	if !changed {
		s.metrics.Saves.WithLabelValues("noop").Inc()
		s.logger.Debugw("Save changed nothing", "task_id", mutated.ID)
		return nil
	}
	s.metrics.Saves.WithLabelValues("changed").Inc()

	transitions := entities.Classify(previous, mutated, time.Now())
	s.effects.Dispatch(ctx, transitions, mutated, previous, false)

	s.logger.Debugw("Task saved",
		"task_id", mutated.ID,
		"just_completed", transitions.JustCompleted,
		"just_deleted", transitions.JustDeleted,
	)
	return nil
}

// ConfirmSaved evaluates side effects for a row that was already written
// through another path. It re-fetches the current snapshot, classifies it
// against the original the caller held before the write, and dispatches
// without writing anything itself.
func (s *TaskService) ConfirmSaved(ctx context.Context, original *entities.Task, suppressRefresh bool) error {
	if original.ID == 0 {
		return entities.ErrTaskMissingID
	}

	current, err := s.store.GetByID(ctx, original.ID)
	if err != nil {
		return fmt.Errorf("failed to load current snapshot of task %d: %w", original.ID, err)
	}

	transitions := entities.Classify(original, current, time.Now())
	s.effects.Dispatch(ctx, transitions, current, original, suppressRefresh)
	return nil
}
