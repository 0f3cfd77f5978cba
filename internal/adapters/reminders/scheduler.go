package reminders

import (
	"context"
	"sync"
	"time"

	"github.com/taskmaster/relay/internal/adapters/notify"
	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
)

// Sink receives fired alarms
type Sink interface {
	Record(ctx context.Context, taskID int64, kind string) error
}

// Refresher is notified after an alarm fires so clients reload
type Refresher interface {
	BroadcastRefresh()
}

const recordTimeout = 5 * time.Second

// NextAlarm picks the instant a task should next ring, or nil when it never
// should. An active snooze takes precedence over the due date; a task that
// is completed or deleted rings for neither.
func NextAlarm(task *entities.Task, now time.Time) (*time.Time, string) {
	if task.IsCompleted() || task.IsDeleted() {
		return nil, ""
	}
	if task.SnoozedUntil != nil && task.SnoozedUntil.After(now) {
		at := *task.SnoozedUntil
		return &at, notify.KindSnooze
	}
	if task.DueDate != nil && task.DueDate.After(now) {
		at := *task.DueDate
		return &at, notify.KindReminder
	}
	return nil, ""
}

// Scheduler keeps one in-process timer per task and rings it at the task's
// next alarm instant. It implements the ReminderScheduler port.
type Scheduler struct {
	sink      Sink
	refresher Refresher
	logger    *logger.Logger

	mu     sync.Mutex
	timers map[int64]*time.Timer
}

// NewScheduler creates a new reminder scheduler
func NewScheduler(sink Sink, refresher Refresher, log *logger.Logger) *Scheduler {
	return &Scheduler{
		sink:      sink,
		refresher: refresher,
		logger:    log.WithComponent("reminders"),
		timers:    make(map[int64]*time.Timer),
	}
}

// ScheduleAlarm replaces the task's timer with one armed at its next alarm
// instant. Tasks with no upcoming alarm are disarmed.
func (s *Scheduler) ScheduleAlarm(ctx context.Context, task *entities.Task) error {
	now := time.Now()
	at, kind := NextAlarm(task, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[task.ID]; ok {
		timer.Stop()
		delete(s.timers, task.ID)
	}

	if at == nil {
		return nil
	}

	id := task.ID
	s.timers[id] = time.AfterFunc(at.Sub(now), func() {
		s.fire(id, kind)
	})
	s.logger.Debugw("Alarm armed", "task_id", id, "kind", kind, "at", at)

	return nil
}

func (s *Scheduler) fire(taskID int64, kind string) {
	s.mu.Lock()
	delete(s.timers, taskID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := s.sink.Record(ctx, taskID, kind); err != nil {
		s.logger.Errorw("Failed to record fired alarm", "task_id", taskID, "error", err)
	}
	s.refresher.BroadcastRefresh()
	s.logger.Infow("Alarm fired", "task_id", taskID, "kind", kind)
}

// Armed reports how many timers are currently pending
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every pending timer
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
