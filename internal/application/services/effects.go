package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
	"github.com/taskmaster/relay/internal/ports"
)

// Effect names used for metrics labels and log fields.
const (
	effectRecurrence   = "recurrence_schedule"
	effectCalendar     = "calendar_update"
	effectNotification = "notification_cancel"
	effectTimer        = "timer_stop"
	effectGeofence     = "geofence_update"
	effectReminder     = "reminder_schedule"
	effectRefreshPlan  = "refresh_schedule"
	effectBroadcast    = "refresh_broadcast"
	effectSync         = "sync_trigger"
)

// Executor accepts fire-and-forget units of work. Submit must not return
// before the unit is accepted; that return is the caller's durability
// boundary.
type Executor interface {
	Submit(name string, fn func(context.Context))
}

// EffectMetrics counts effect submissions, delivery failures and gateway
// save outcomes.
type EffectMetrics struct {
	Dispatched *prometheus.CounterVec
	Failures   *prometheus.CounterVec
	Saves      *prometheus.CounterVec
}

// NewEffectMetrics registers the save-pipeline collectors on reg.
func NewEffectMetrics(reg prometheus.Registerer) *EffectMetrics {
	m := &EffectMetrics{
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_effects_dispatched_total",
			Help: "Side-effect units submitted for delivery, by effect.",
		}, []string{"effect"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_effect_failures_total",
			Help: "Side-effect deliveries that returned an error, by effect.",
		}, []string{"effect"}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_saves_total",
			Help: "Gateway save outcomes.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Dispatched, m.Failures, m.Saves)
	return m
}

// Collaborators bundles the effect ports the dispatcher drives. The
// composition root fills it with real adapters.
type Collaborators struct {
	Notifications ports.NotificationCanceler
	Reminders     ports.ReminderScheduler
	Repeats       ports.RecurrenceScheduler
	Calendars     ports.CalendarSyncUpdater
	Geofences     ports.GeofenceUpdater
	Timers        ports.TimerStopper
	Broadcaster   ports.ChangeBroadcaster
	RemoteSync    ports.RemoteSyncTrigger
}

// EffectDispatcher turns one classified save into collaborator calls.
// Every delivery failure is logged and counted but never propagated: the
// row is already durable, and a best-effort notification must not undo
// that.
type EffectDispatcher struct {
	collab   Collaborators
	executor Executor
	metrics  *EffectMetrics
	logger   *logger.Logger
}

// NewEffectDispatcher creates a new effect dispatcher
func NewEffectDispatcher(collab Collaborators, executor Executor, metrics *EffectMetrics, logger *logger.Logger) *EffectDispatcher {
	return &EffectDispatcher{
		collab:   collab,
		executor: executor,
		metrics:  metrics,
		logger:   logger.WithComponent("effects"),
	}
}

// Dispatch runs the ordered step synchronously on the calling goroutine,
// then submits the independent fan-out units to the executor. When it
// returns, every eligible effect has been submitted; none has necessarily
// completed.
//
// next is read-only from here on. previous may be nil for a task that did
// not exist before this save.
func (d *EffectDispatcher) Dispatch(ctx context.Context, tr entities.Transitions, next, previous *entities.Task, suppressRefresh bool) {
	// The ordered step must finish before any observer can react to the
	// save, and must survive the caller's request being torn down.
	ordered := context.WithoutCancel(ctx)

	// A just-completed recurring task gets its next occurrence lined up;
	// otherwise a calendar-linked task gets its event refreshed. Never
	// both in one save.
	if tr.JustCompleted && next.IsRecurring() {
		d.deliver(ordered, effectRecurrence, next.ID, func(ctx context.Context) error {
			return d.collab.Repeats.ScheduleRepeat(ctx, next)
		})
	} else if next.HasCalendarEvent() {
		d.deliver(ordered, effectCalendar, next.ID, func(ctx context.Context) error {
			return d.collab.Calendars.UpdateCalendar(ctx, next)
		})
	}

	if tr.JustCompleted || tr.JustDeleted {
		d.submit(effectNotification, next.ID, func(ctx context.Context) error {
			return d.collab.Notifications.Cancel(ctx, next.ID)
		})
		if next.HasActiveTimer() {
			d.submit(effectTimer, next.ID, func(ctx context.Context) error {
				return d.collab.Timers.StopTimer(ctx, next)
			})
		}
	}

	// Snooze and future-due each dismiss any pending notification on
	// their own; Cancel is idempotent so overlapping reasons are fine.
	if tr.SnoozeActive {
		d.submit(effectNotification, next.ID, func(ctx context.Context) error {
			return d.collab.Notifications.Cancel(ctx, next.ID)
		})
	}
	if tr.DueInFuture {
		d.submit(effectNotification, next.ID, func(ctx context.Context) error {
			return d.collab.Notifications.Cancel(ctx, next.ID)
		})
	}

	if tr.CompletionChanged || tr.DeletionChanged {
		d.submit(effectGeofence, next.ID, func(ctx context.Context) error {
			return d.collab.Geofences.Update(ctx, next.ID)
		})
	}

	d.submit(effectReminder, next.ID, func(ctx context.Context) error {
		return d.collab.Reminders.ScheduleAlarm(ctx, next)
	})
	d.submit(effectRefreshPlan, next.ID, func(ctx context.Context) error {
		d.collab.Broadcaster.ScheduleRefresh(next)
		return nil
	})

	if !suppressRefresh {
		d.submit(effectBroadcast, next.ID, func(ctx context.Context) error {
			d.collab.Broadcaster.BroadcastRefresh()
			return nil
		})
	}

	d.submit(effectSync, next.ID, func(ctx context.Context) error {
		d.collab.RemoteSync.SyncTask(next, previous)
		return nil
	})
}

// deliver runs one effect inline.
func (d *EffectDispatcher) deliver(ctx context.Context, effect string, taskID int64, fn func(context.Context) error) {
	d.metrics.Dispatched.WithLabelValues(effect).Inc()
	if err := fn(ctx); err != nil {
		d.metrics.Failures.WithLabelValues(effect).Inc()
		d.logger.LogEffectFailure(effect, taskID, err)
	}
}

// submit hands one effect to the executor. The unit gets the executor's
// context, not the request's: the save has already returned by the time
// it runs.
func (d *EffectDispatcher) submit(effect string, taskID int64, fn func(context.Context) error) {
	d.metrics.Dispatched.WithLabelValues(effect).Inc()
	d.executor.Submit(effect, func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			d.metrics.Failures.WithLabelValues(effect).Inc()
			d.logger.LogEffectFailure(effect, taskID, err)
		}
	})
}
