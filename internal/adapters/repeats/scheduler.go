package repeats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
)

// Saver persists the rolled-forward task through the regular save pipeline
// so the re-opening gets its own change classification and side effects.
type Saver interface {
	SaveWithPrevious(ctx context.Context, next, previous *entities.Task) error
}

// NextOccurrence computes the first instant of the task's recurrence rule
// strictly after the given time. The rule is anchored at the task's due date
// when it has one. A nil result without error means the rule is exhausted.
func NextOccurrence(task *entities.Task, after time.Time) (*time.Time, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(task.Recurrence), "RRULE:")

	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule %q: %w", task.Recurrence, err)
	}

	dtstart := after
	if task.DueDate != nil {
		dtstart = *task.DueDate
	}
	opt.Dtstart = dtstart.Truncate(time.Second)

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule %q: %w", task.Recurrence, err)
	}

	next := rule.After(after.Truncate(time.Second), false)
	if next.IsZero() {
		return nil, nil
	}

	return &next, nil
}

// Scheduler rolls a completed recurring task forward to its next occurrence.
// It implements the RecurrenceScheduler port. The saver is bound after
// construction because the save pipeline itself dispatches into this
// scheduler.
type Scheduler struct {
	logger *logger.Logger

	mu    sync.RWMutex
	saver Saver
}

// NewScheduler creates a new recurrence scheduler
func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{logger: log.WithComponent("repeats")}
}

// Bind attaches the save pipeline the scheduler writes through
func (s *Scheduler) Bind(saver Saver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saver = saver
}

// ScheduleRepeat re-opens the task at its next occurrence. The completed
// state is the previous snapshot of the nested save, so downstream effects
// see a due-date change and a completion reversal rather than a completion.
func (s *Scheduler) ScheduleRepeat(ctx context.Context, task *entities.Task) error {
	s.mu.RLock()
	saver := s.saver
	s.mu.RUnlock()

	if saver == nil {
		return errors.New("recurrence scheduler has no save pipeline bound")
	}
	if !task.IsRecurring() {
		return nil
	}

	after := time.Now()
	if task.CompletedAt != nil {
		after = *task.CompletedAt
	}

	next, err := NextOccurrence(task, after)
	if err != nil {
		return err
	}
	if next == nil {
		s.logger.Infow("Recurrence exhausted", "task_id", task.ID, "rule", task.Recurrence)
		return nil
	}

	reopened := task.Clone()
	reopened.DueDate = next
	reopened.CompletedAt = nil
	reopened.SnoozedUntil = nil
	reopened.TimerStartedAt = nil

	if err := saver.SaveWithPrevious(ctx, reopened, task); err != nil {
		return fmt.Errorf("failed to roll task forward: %w", err)
	}

	s.logger.Infow("Task rolled forward", "task_id", task.ID, "next_due", next)
	return nil
}
