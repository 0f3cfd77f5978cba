package syncer

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/config"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func newIdleSyncer(t *testing.T) *Syncer {
	t.Helper()

	// No endpoint configured: the push loop runs but never touches the
	// database, so these tests need no backing store.
	cfg := config.SyncConfig{
		Endpoint:  "",
		Interval:  time.Hour,
		Debounce:  5 * time.Millisecond,
		BatchSize: 10,
	}
	log := &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}

	return NewSyncer(nil, cfg, log)
}

func TestOpForClassifiesSavedPairs(t *testing.T) {
	now := time.Now()
	pending := &entities.Task{ID: 1, Title: "Pack boxes"}
	deleted := &entities.Task{ID: 1, Title: "Pack boxes", DeletedAt: timePtr(now)}
	completed := &entities.Task{ID: 1, Title: "Pack boxes", CompletedAt: timePtr(now)}

	tests := []struct {
		name     string
		next     *entities.Task
		previous *entities.Task
		want     string
	}{
		{name: "no previous snapshot is a create", next: pending, previous: nil, want: opCreate},
		{name: "fresh deletion is a delete", next: deleted, previous: pending, want: opDelete},
		{name: "completion is an update", next: completed, previous: pending, want: opUpdate},
		{name: "already deleted stays an update", next: deleted, previous: deleted, want: opUpdate},
		{name: "plain edit is an update", next: pending, previous: completed, want: opUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := opFor(tt.next, tt.previous); got != tt.want {
				t.Errorf("opFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSyncCoalescesRepeatedKicks(t *testing.T) {
	s := newIdleSyncer(t)

	for i := 0; i < 5; i++ {
		s.Sync()
	}

	if got := len(s.kicks); got != 1 {
		t.Errorf("pending kicks = %d, want 1", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := newIdleSyncer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.Sync()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancellation")
	}
}

func TestRunStopsWhileDebouncing(t *testing.T) {
	cfg := config.SyncConfig{
		Endpoint:  "",
		Interval:  time.Hour,
		Debounce:  time.Hour,
		BatchSize: 10,
	}
	log := &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
	s := NewSyncer(nil, cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.Sync()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() stayed in the debounce window after cancellation")
	}
}
