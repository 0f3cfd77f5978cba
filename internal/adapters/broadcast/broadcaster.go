package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
)

const publishTimeout = 3 * time.Second

// RefreshMessage is the payload published on the refresh channel. Clients
// treat any message on the channel as "reload your lists"; the payload
// carries no state.
const RefreshMessage = "refresh"

// Broadcaster publishes refresh pings to connected clients over a Redis
// pub/sub channel and arms delayed pings for instants at which a task's
// visible state flips on its own. It implements the ChangeBroadcaster port.
type Broadcaster struct {
	client  *redis.Client
	channel string
	logger  *logger.Logger

	mu     sync.Mutex
	timers map[int64][]*time.Timer
	closed bool
}

// NewBroadcaster creates a new broadcaster publishing on the given channel
func NewBroadcaster(client *redis.Client, channel string, log *logger.Logger) *Broadcaster {
	return &Broadcaster{
		client:  client,
		channel: channel,
		logger:  log.WithComponent("broadcast"),
		timers:  make(map[int64][]*time.Timer),
	}
}

// BroadcastRefresh publishes one refresh ping. Publish failures are logged
// and swallowed; a missed ping only delays a reload.
func (b *Broadcaster) BroadcastRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := b.client.Publish(ctx, b.channel, RefreshMessage).Err(); err != nil {
		b.logger.Errorw("Failed to publish refresh", "channel", b.channel, "error", err)
		return
	}
	b.logger.Debugw("Refresh published", "channel", b.channel)
}

// ScheduleRefresh replaces the task's delayed pings with ones armed at its
// upcoming due and snooze instants. Settled tasks only clear their pings.
func (b *Broadcaster) ScheduleRefresh(task *entities.Task) {
	now := time.Now()

	var instants []time.Time
	if !task.IsCompleted() && !task.IsDeleted() {
		if task.DueDate != nil && task.DueDate.After(now) {
			instants = append(instants, *task.DueDate)
		}
		if task.SnoozedUntil != nil && task.SnoozedUntil.After(now) {
			instants = append(instants, *task.SnoozedUntil)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, timer := range b.timers[task.ID] {
		timer.Stop()
	}
	delete(b.timers, task.ID)

	if b.closed {
		return
	}
	for _, at := range instants {
		b.timers[task.ID] = append(b.timers[task.ID], time.AfterFunc(time.Until(at), b.BroadcastRefresh))
	}
}

// Pending reports how many delayed pings are armed
func (b *Broadcaster) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, timers := range b.timers {
		total += len(timers)
	}
	return total
}

// Stop disarms every delayed ping and refuses new ones
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, timers := range b.timers {
		for _, timer := range timers {
			timer.Stop()
		}
		delete(b.timers, id)
	}
	b.closed = true
}
