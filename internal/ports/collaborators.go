package ports

import (
	"context"

	"github.com/taskmaster/relay/internal/domain/entities"
)

// Collaborator ports consumed by the effect dispatcher. Each is a narrow,
// single-purpose contract; implementations own their retry policy and any
// state they persist, and must never write back to the task snapshot they
// are handed.

// NotificationCanceler dismisses any pending notification for a task.
// Cancel is idempotent: several fan-out branches may cancel the same id
// during one save.
type NotificationCanceler interface {
	Cancel(ctx context.Context, taskID int64) error
}

// ReminderScheduler recomputes and (re)arms the next reminder alarm from
// the task's current fields. Called on every effective save; clearing a
// stale alarm counts as rescheduling.
type ReminderScheduler interface {
	ScheduleAlarm(ctx context.Context, task *entities.Task) error
}

// RecurrenceScheduler lines up the next occurrence of a recurring task
// that was just completed.
type RecurrenceScheduler interface {
	ScheduleRepeat(ctx context.Context, task *entities.Task) error
}

// CalendarSyncUpdater pushes the task's state to its linked external
// calendar event.
type CalendarSyncUpdater interface {
	UpdateCalendar(ctx context.Context, task *entities.Task) error
}

// GeofenceUpdater re-evaluates location triggers for a task whose
// completion or deletion state changed.
type GeofenceUpdater interface {
	Update(ctx context.Context, taskID int64) error
}

// TimerStopper closes out a running timer, recording the elapsed span.
type TimerStopper interface {
	StopTimer(ctx context.Context, task *entities.Task) error
}

// ChangeBroadcaster signals connected clients. BroadcastRefresh is a
// process-wide "something changed" ping with no payload; ScheduleRefresh
// arms future pings at the instants the task's visible state will change
// on its own (due date arriving, snooze expiring).
type ChangeBroadcaster interface {
	BroadcastRefresh()
	ScheduleRefresh(task *entities.Task)
}

// RemoteSyncTrigger kicks the remote synchronization subsystem. Both
// forms are fire-and-forget: SyncTask hands over the saved pair so the
// syncer can compute its own diff, Sync just wakes the push loop.
type RemoteSyncTrigger interface {
	Sync()
	SyncTask(next, previous *entities.Task)
}
