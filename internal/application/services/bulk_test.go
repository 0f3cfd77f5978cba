package services

import (
	"context"
	"testing"
	"time"

	"github.com/taskmaster/relay/internal/domain/entities"
)

func newTestBulkCompleter(t *testing.T) (*BulkCompleter, *fakeStore, *recorder) {
	t.Helper()
	gateway, store, rec := newTestGateway(t)
	return NewBulkCompleter(store, gateway, newTestLogger(t)), store, rec
}

func TestCompleteAllBroadcastsOncePerBatch(t *testing.T) {
	bulk, store, rec := newTestBulkCompleter(t)
	ids := []int64{
		store.seed(&entities.Task{Title: "inbox zero", Priority: entities.PriorityLow}).ID,
		store.seed(&entities.Task{Title: "expense report", Priority: entities.PriorityLow}).ID,
		store.seed(&entities.Task{Title: "standup notes", Priority: entities.PriorityLow}).ID,
	}

	completed, err := bulk.CompleteAll(context.Background(), ids)
	if err != nil {
		t.Fatalf("CompleteAll() = %v, want nil", err)
	}
	if completed != 3 {
		t.Errorf("completed = %d, want 3", completed)
	}

	if got := rec.count("broadcast"); got != 1 {
		t.Errorf("refresh broadcast %d times, want exactly 1 per batch", got)
	}
	if got := rec.count("cancel"); got != 3 {
		t.Errorf("notifications cancelled %d times, want 3 (one per task)", got)
	}
	if got := rec.count("geofence"); got != 3 {
		t.Errorf("geofence updated %d times, want 3", got)
	}
	if got := rec.count("sync"); got != 3 {
		t.Errorf("sync triggered %d times, want 3", got)
	}

	for _, id := range ids {
		if stored := store.get(id); stored == nil || !stored.IsCompleted() {
			t.Errorf("task %d was not completed in the store", id)
		}
	}
}

func TestCompleteAllSkipsDoneAndDeletedTasks(t *testing.T) {
	bulk, store, rec := newTestBulkCompleter(t)
	done := time.Now().Add(-time.Hour)

	alreadyDone := store.seed(&entities.Task{Title: "done", Priority: entities.PriorityLow, CompletedAt: &done})
	trashed := store.seed(&entities.Task{Title: "trashed", Priority: entities.PriorityLow, DeletedAt: &done})
	pending := store.seed(&entities.Task{Title: "pending", Priority: entities.PriorityLow})

	completed, err := bulk.CompleteAll(context.Background(), []int64{alreadyDone.ID, trashed.ID, pending.ID})
	if err != nil {
		t.Fatalf("CompleteAll() = %v, want nil", err)
	}
	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
	if got := rec.count("cancel"); got != 1 {
		t.Errorf("notifications cancelled %d times, want 1", got)
	}
	if stored := store.get(trashed.ID); stored.IsCompleted() {
		t.Error("deleted task should not be completed")
	}
}

func TestCompleteAllWithNothingPendingIsQuiet(t *testing.T) {
	bulk, store, rec := newTestBulkCompleter(t)
	done := time.Now().Add(-time.Hour)
	seeded := store.seed(&entities.Task{Title: "done", Priority: entities.PriorityLow, CompletedAt: &done})

	completed, err := bulk.CompleteAll(context.Background(), []int64{seeded.ID, 404})
	if err != nil {
		t.Fatalf("CompleteAll() = %v, want nil", err)
	}
	if completed != 0 {
		t.Errorf("completed = %d, want 0", completed)
	}
	if calls := rec.trace(); len(calls) != 0 {
		t.Errorf("dispatched %v, want nothing", calls)
	}

	completed, err = bulk.CompleteAll(context.Background(), nil)
	if err != nil || completed != 0 {
		t.Errorf("CompleteAll(nil) = (%d, %v), want (0, nil)", completed, err)
	}
}
