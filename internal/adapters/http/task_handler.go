package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
	"github.com/taskmaster/relay/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService ports.TaskService
	bulk        ports.BulkCompleter
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, bulk ports.BulkCompleter, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		bulk:        bulk,
		logger:      logger,
	}
}

// CreateTask godoc
// @Summary Create a new task
// @Description Create a new task and kick off its side effects
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.CreateTaskRequest true "Task data"
// @Success 201 {object} entities.Task
// @Failure 400 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Create task failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create task")
	}

	return c.JSON(http.StatusCreated, task)
}

// GetTask godoc
// @Summary Get task by ID
// @Description Get a single task by its ID
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.GetTask(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, entities.ErrTaskNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Task not found")
		}
		h.logger.Errorw("Get task failed", "error", err, "task_id", id)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get task")
	}

	return c.JSON(http.StatusOK, task)
}

// ListTasks godoc
// @Summary List tasks
// @Description List tasks filtered by state and due window
// @Tags tasks
// @Produce json
// @Param completed query bool false "Filter by completion state"
// @Param deleted query bool false "Filter by deletion state (default false)"
// @Param due_before query string false "Due before (RFC 3339)"
// @Param due_after query string false "Due after (RFC 3339)"
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Page offset"
// @Success 200 {object} ports.PaginatedResponse[entities.Task]
// @Failure 400 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	filter := ports.TaskFilter{}

	if v := c.QueryParam("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid completed parameter")
		}
		filter.Completed = &completed
	}

	deleted := false
	if v := c.QueryParam("deleted"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid deleted parameter")
		}
		deleted = parsed
	}
	filter.Deleted = &deleted

	if v := c.QueryParam("due_before"); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid due_before parameter")
		}
		filter.DueBefore = &at
	}
	if v := c.QueryParam("due_after"); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid due_after parameter")
		}
		filter.DueAfter = &at
	}

	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit parameter")
		}
		filter.Limit = limit
	} else {
		filter.Limit = 20
	}
	if v := c.QueryParam("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid offset parameter")
		}
		filter.Offset = offset
	}

	tasks, err := h.taskService.ListTasks(c.Request().Context(), filter)
	if err != nil {
		h.logger.Errorw("List tasks failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to retrieve tasks")
	}

	response := ports.PaginatedResponse[*entities.Task]{
		Data:   tasks,
		Total:  len(tasks),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	return c.JSON(http.StatusOK, response)
}

// UpdateTask godoc
// @Summary Update a task
// @Description Replace the task's editable fields with the request body
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body ports.UpdateTaskRequest true "Complete mutated task"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), id, req)
	if err != nil {
		if errors.Is(err, entities.ErrTaskNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Task not found")
		}
		h.logger.Errorw("Update task failed", "error", err, "task_id", id)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update task")
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Delete a task
// @Description Soft-delete a task; deleting an already deleted task succeeds
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} ports.MessageResponse
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	if err := h.taskService.DeleteTask(c.Request().Context(), id); err != nil {
		if errors.Is(err, entities.ErrTaskNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Task not found")
		}
		h.logger.Errorw("Delete task failed", "error", err, "task_id", id)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete task")
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Task deleted"})
}

// CompleteTask godoc
// @Summary Complete a task
// @Description Mark a task completed; completing a completed task changes nothing
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/complete [post]
func (h *TaskHandler) CompleteTask(c echo.Context) error {
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.CompleteTask(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, entities.ErrTaskNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Task not found")
		}
		h.logger.Errorw("Complete task failed", "error", err, "task_id", id)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to complete task")
	}

	return c.JSON(http.StatusOK, task)
}

// ReopenTask godoc
// @Summary Reopen a task
// @Description Clear a task's completion stamp
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/reopen [post]
func (h *TaskHandler) ReopenTask(c echo.Context) error {
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.ReopenTask(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, entities.ErrTaskNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Task not found")
		}
		h.logger.Errorw("Reopen task failed", "error", err, "task_id", id)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reopen task")
	}

	return c.JSON(http.StatusOK, task)
}

// SnoozeTask godoc
// @Summary Snooze a task
// @Description Hide a task's reminders until the given instant
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body ports.SnoozeTaskRequest true "Wake time"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/snooze [post]
func (h *TaskHandler) SnoozeTask(c echo.Context) error {
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	var req ports.SnoozeTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.SnoozeTask(c.Request().Context(), id, req.Until)
	if err != nil {
		if errors.Is(err, entities.ErrTaskNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Task not found")
		}
		if errors.Is(err, entities.ErrSnoozeInPast) {
			return echo.NewHTTPError(http.StatusBadRequest, "Snooze time must be in the future")
		}
		h.logger.Errorw("Snooze task failed", "error", err, "task_id", id)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to snooze task")
	}

	return c.JSON(http.StatusOK, task)
}

// BulkComplete godoc
// @Summary Complete several tasks at once
// @Description Complete every pending task in the list with one write
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.BulkCompleteRequest true "Task IDs"
// @Success 200 {object} ports.BulkCompleteResponse
// @Failure 400 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/bulk-complete [post]
func (h *TaskHandler) BulkComplete(c echo.Context) error {
	var req ports.BulkCompleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	completed, err := h.bulk.CompleteAll(c.Request().Context(), req.IDs)
	if err != nil {
		h.logger.Errorw("Bulk complete failed", "error", err, "ids", req.IDs)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to complete tasks")
	}

	return c.JSON(http.StatusOK, ports.BulkCompleteResponse{Completed: completed})
}

// ConfirmSaved godoc
// @Summary Replay side effects for an externally written task
// @Description Evaluate side effects for a row that was already written through another path
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.ConfirmSavedRequest true "Pre-write snapshot"
// @Success 200 {object} ports.MessageResponse
// @Failure 400 {object} ports.ErrorResponse
// @Failure 404 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /tasks/confirm-saved [post]
func (h *TaskHandler) ConfirmSaved(c echo.Context) error {
	var req ports.ConfirmSavedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err := h.taskService.ConfirmSaved(c.Request().Context(), &req.Original, req.SuppressRefresh)
	if err != nil {
		if errors.Is(err, entities.ErrTaskNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Task not found")
		}
		if errors.Is(err, entities.ErrTaskMissingID) {
			return echo.NewHTTPError(http.StatusBadRequest, "Task ID is required")
		}
		h.logger.Errorw("Confirm saved failed", "error", err, "task_id", req.Original.ID)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to confirm save")
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Side effects replayed"})
}

// SyncHandler handles remote synchronization requests
type SyncHandler struct {
	trigger ports.RemoteSyncTrigger
	logger  *logger.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(trigger ports.RemoteSyncTrigger, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{
		trigger: trigger,
		logger:  logger,
	}
}

// TriggerSync godoc
// @Summary Trigger a remote sync
// @Description Wake the push loop; pending changes are sent in the background
// @Tags sync
// @Produce json
// @Success 202 {object} ports.MessageResponse
// @Security BearerAuth
// @Router /sync [post]
func (h *SyncHandler) TriggerSync(c echo.Context) error {
	h.trigger.Sync()
	h.logger.Infow("Manual sync requested")

	return c.JSON(http.StatusAccepted, ports.MessageResponse{Message: "Sync scheduled"})
}

func taskIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid task ID")
	}
	return id, nil
}
