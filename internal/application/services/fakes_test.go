package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/config"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
	"github.com/taskmaster/relay/internal/ports"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("building test logger: %v", err)
	}
	return log
}

func strPtr(s string) *string { return &s }

// inlineExecutor runs submitted units synchronously so a test observes
// every effect before it asserts.
type inlineExecutor struct{}

func (inlineExecutor) Submit(name string, fn func(context.Context)) {
	fn(context.Background())
}

// recorder implements every collaborator port and keeps an ordered trace
// of the calls it received.
type recorder struct {
	mu    sync.Mutex
	calls []string

	cancelErr error
	alarmErr  error
	repeatErr error

	syncCalled       bool
	lastSyncPrevious *entities.Task
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Cancel(ctx context.Context, taskID int64) error {
	r.record(fmt.Sprintf("cancel:%d", taskID))
	return r.cancelErr
}

func (r *recorder) ScheduleAlarm(ctx context.Context, task *entities.Task) error {
	r.record(fmt.Sprintf("alarm:%d", task.ID))
	return r.alarmErr
}

func (r *recorder) ScheduleRepeat(ctx context.Context, task *entities.Task) error {
	r.record(fmt.Sprintf("repeat:%d", task.ID))
	return r.repeatErr
}

func (r *recorder) UpdateCalendar(ctx context.Context, task *entities.Task) error {
	r.record(fmt.Sprintf("calendar:%d", task.ID))
	return nil
}

func (r *recorder) Update(ctx context.Context, taskID int64) error {
	r.record(fmt.Sprintf("geofence:%d", taskID))
	return nil
}

func (r *recorder) StopTimer(ctx context.Context, task *entities.Task) error {
	r.record(fmt.Sprintf("timer:%d", task.ID))
	return nil
}

func (r *recorder) BroadcastRefresh() {
	r.record("broadcast")
}

func (r *recorder) ScheduleRefresh(task *entities.Task) {
	r.record(fmt.Sprintf("refresh_plan:%d", task.ID))
}

func (r *recorder) Sync() {
	r.record("sync_all")
}

func (r *recorder) SyncTask(next, previous *entities.Task) {
	r.mu.Lock()
	r.syncCalled = true
	r.lastSyncPrevious = previous
	r.mu.Unlock()
	r.record(fmt.Sprintf("sync:%d", next.ID))
}

func (r *recorder) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, call := range r.calls {
		if call == prefix || strings.HasPrefix(call, prefix+":") {
			n++
		}
	}
	return n
}

func (r *recorder) first() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return ""
	}
	return r.calls[0]
}

func (r *recorder) trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.syncCalled = false
	r.lastSyncPrevious = nil
}

// fakeStore is an in-memory ports.TaskStore with the real store's change
// detection semantics.
type fakeStore struct {
	mu          sync.Mutex
	tasks       map[int64]*entities.Task
	nextID      int64
	createErr   error
	fetchErr    error
	updateErr   error
	updateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[int64]*entities.Task), nextID: 1}
}

func (f *fakeStore) seed(task *entities.Task) *entities.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.ID == 0 {
		task.ID = f.nextID
		f.nextID++
	} else if task.ID >= f.nextID {
		f.nextID = task.ID + 1
	}
	f.tasks[task.ID] = task.Clone()
	return task.Clone()
}

func (f *fakeStore) get(id int64) *entities.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[id]; ok {
		return t.Clone()
	}
	return nil
}

func (f *fakeStore) Create(ctx context.Context, task *entities.Task) (*entities.Task, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task = task.Clone()
	task.ID = f.nextID
	f.nextID++
	f.tasks[task.ID] = task.Clone()
	return task, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*entities.Task, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	return task.Clone(), nil
}

func (f *fakeStore) GetByIDs(ctx context.Context, ids []int64) ([]*entities.Task, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Task
	for _, id := range ids {
		if task, ok := f.tasks[id]; ok {
			out = append(out, task.Clone())
		}
	}
	return out, nil
}

func (f *fakeStore) List(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Task
	for _, task := range f.tasks {
		out = append(out, task.Clone())
	}
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, next, previous *entities.Task) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return false, f.updateErr
	}
	if previous != nil && next.ContentEquals(previous) {
		return false, nil
	}
	f.tasks[next.ID] = next.Clone()
	return true, nil
}

func (f *fakeStore) CompleteByIDs(ctx context.Context, ids []int64, completedAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		task, ok := f.tasks[id]
		if !ok || task.IsCompleted() || task.IsDeleted() {
			continue
		}
		stamped := completedAt
		task.CompletedAt = &stamped
		n++
	}
	return n, nil
}

func newTestDispatcher(t *testing.T, rec *recorder) *EffectDispatcher {
	t.Helper()
	metrics := NewEffectMetrics(prometheus.NewRegistry())
	return NewEffectDispatcher(Collaborators{
		Notifications: rec,
		Reminders:     rec,
		Repeats:       rec,
		Calendars:     rec,
		Geofences:     rec,
		Timers:        rec,
		Broadcaster:   rec,
		RemoteSync:    rec,
	}, inlineExecutor{}, metrics, newTestLogger(t))
}

func newTestGateway(t *testing.T) (*TaskService, *fakeStore, *recorder) {
	t.Helper()
	store := newFakeStore()
	rec := &recorder{}
	metrics := NewEffectMetrics(prometheus.NewRegistry())
	log := newTestLogger(t)
	dispatcher := NewEffectDispatcher(Collaborators{
		Notifications: rec,
		Reminders:     rec,
		Repeats:       rec,
		Calendars:     rec,
		Geofences:     rec,
		Timers:        rec,
		Broadcaster:   rec,
		RemoteSync:    rec,
	}, inlineExecutor{}, metrics, log)
	return NewTaskService(store, dispatcher, metrics, log), store, rec
}
