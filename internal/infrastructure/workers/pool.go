package workers

import (
	"context"
	"sync"

	"github.com/taskmaster/relay/internal/infrastructure/logger"
)

// Pool runs side-effect units on a fixed set of workers behind a bounded
// queue. Submit returning is the durability boundary for a unit: once a
// caller gets control back, the unit is either queued or already running,
// and only process death can drop it.
type Pool struct {
	queue  chan unit
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	logger *logger.Logger
}

type unit struct {
	name string
	run  func(context.Context)
}

// NewPool starts workers goroutines draining a queue of depth slots.
func NewPool(workers, depth int, log *logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if depth < workers {
		depth = workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan unit, depth),
		ctx:    ctx,
		cancel: cancel,
		logger: log.WithComponent("effect-pool"),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}

	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for u := range p.queue {
		p.execute(u)
	}
}

func (p *Pool) execute(u unit) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorw("Effect unit panicked", "unit", u.name, "panic", r)
		}
	}()
	u.run(p.ctx)
}

// Submit enqueues one unit of work, blocking while the queue is full.
// After Shutdown has begun the unit runs inline on the calling goroutine
// instead, so late submissions are executed rather than dropped.
func (p *Pool) Submit(name string, fn func(context.Context)) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.logger.Warnw("Pool draining, running unit inline", "unit", name)
		p.execute(unit{name: name, run: fn})
		return
	}
	// The read lock is held across the send so Shutdown cannot close the
	// queue between the closed check and the enqueue.
	p.queue <- unit{name: name, run: fn}
	p.mu.RUnlock()
}

// Depth reports how many units are queued but not yet picked up.
func (p *Pool) Depth() int {
	return len(p.queue)
}

// Shutdown stops accepting queued work and waits for queued and in-flight
// units to finish. If ctx expires first the units' shared context is
// canceled and the ctx error is returned; units that do not honor their
// context are abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}
