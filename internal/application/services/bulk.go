package services

import (
	"context"
	"fmt"
	"time"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
	"github.com/taskmaster/relay/internal/ports"
)

// BulkCompleter completes a batch of tasks with a single column update,
// then replays the side-effect pipeline once per task via ConfirmSaved.
// The refresh broadcast is suppressed for all but the last task so
// clients repaint once per batch instead of once per row.
type BulkCompleter struct {
	store   ports.TaskStore
	gateway *TaskService
	logger  *logger.Logger
}

// NewBulkCompleter creates a new bulk completer
func NewBulkCompleter(store ports.TaskStore, gateway *TaskService, logger *logger.Logger) *BulkCompleter {
	return &BulkCompleter{
		store:   store,
		gateway: gateway,
		logger:  logger,
	}
}

// CompleteAll completes every pending task in ids and returns how many
// rows the store touched. Tasks already completed or deleted are skipped.
// Effect replay failures are logged per task and do not abort the rest of
// the batch; the column update has already landed.
func (b *BulkCompleter) CompleteAll(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	originals, err := b.store.GetByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load tasks: %w", err)
	}

	var pending []*entities.Task
	for _, task := range originals {
		if !task.IsCompleted() && !task.IsDeleted() {
			pending = append(pending, task)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	pendingIDs := make([]int64, len(pending))
	for i, task := range pending {
		pendingIDs[i] = task.ID
	}

	completed, err := b.store.CompleteByIDs(ctx, pendingIDs, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to complete tasks: %w", err)
	}

	for i, original := range pending {
		suppressRefresh := i < len(pending)-1
		if err := b.gateway.ConfirmSaved(ctx, original, suppressRefresh); err != nil {
			b.logger.Errorw("Effect replay failed after bulk complete",
				"task_id", original.ID,
				"error", err,
			)
		}
	}

	b.logger.Infow("Bulk complete finished",
		"requested", len(ids),
		"completed", completed,
	)
	return completed, nil
}
