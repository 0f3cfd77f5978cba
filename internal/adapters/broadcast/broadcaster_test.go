package broadcast

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func newTestBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()

	// Unroutable address: publishes fail fast and are swallowed, which is
	// exactly the degraded mode under test.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { client.Close() })

	log := &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
	b := NewBroadcaster(client, "test.refresh", log)
	t.Cleanup(b.Stop)

	return b
}

func TestBroadcastRefreshSurvivesPublishFailure(t *testing.T) {
	b := newTestBroadcaster(t)

	// Must not panic or block beyond the publish timeout.
	b.BroadcastRefresh()
}

func TestScheduleRefreshArmsUpcomingInstants(t *testing.T) {
	b := newTestBroadcaster(t)

	task := &entities.Task{
		ID:           3,
		Title:        "Board meeting prep",
		DueDate:      timePtr(time.Now().Add(time.Hour)),
		SnoozedUntil: timePtr(time.Now().Add(30 * time.Minute)),
	}
	b.ScheduleRefresh(task)

	if got := b.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}
}

func TestScheduleRefreshIgnoresPastInstants(t *testing.T) {
	b := newTestBroadcaster(t)

	task := &entities.Task{
		ID:      4,
		Title:   "Overdue errand",
		DueDate: timePtr(time.Now().Add(-time.Hour)),
	}
	b.ScheduleRefresh(task)

	if got := b.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}

func TestScheduleRefreshClearsSettledTasks(t *testing.T) {
	b := newTestBroadcaster(t)

	task := &entities.Task{
		ID:      6,
		Title:   "Renew passport",
		DueDate: timePtr(time.Now().Add(time.Hour)),
	}
	b.ScheduleRefresh(task)
	if got := b.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}

	done := *task
	completedAt := time.Now()
	done.CompletedAt = &completedAt
	b.ScheduleRefresh(&done)

	if got := b.Pending(); got != 0 {
		t.Errorf("Pending() after completion = %d, want 0", got)
	}
}

func TestScheduleRefreshReplacesPriorTimers(t *testing.T) {
	b := newTestBroadcaster(t)

	task := &entities.Task{
		ID:           9,
		Title:        "Pick up parcel",
		DueDate:      timePtr(time.Now().Add(time.Hour)),
		SnoozedUntil: timePtr(time.Now().Add(30 * time.Minute)),
	}
	b.ScheduleRefresh(task)
	if got := b.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}

	rescheduled := *task
	rescheduled.SnoozedUntil = nil
	b.ScheduleRefresh(&rescheduled)

	if got := b.Pending(); got != 1 {
		t.Errorf("Pending() after reschedule = %d, want 1", got)
	}
}

func TestStopRefusesNewTimers(t *testing.T) {
	b := newTestBroadcaster(t)

	task := &entities.Task{
		ID:      11,
		Title:   "Quarterly review",
		DueDate: timePtr(time.Now().Add(time.Hour)),
	}
	b.ScheduleRefresh(task)
	b.Stop()

	if got := b.Pending(); got != 0 {
		t.Fatalf("Pending() after Stop = %d, want 0", got)
	}

	b.ScheduleRefresh(task)
	if got := b.Pending(); got != 0 {
		t.Errorf("Pending() after Stop and reschedule = %d, want 0", got)
	}
}
