package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/config"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
)

const pushRequestTimeout = 15 * time.Second

// Outbox operations.
const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

type envelope struct {
	Op       string         `json:"op"`
	Task     *entities.Task `json:"task"`
	Previous *entities.Task `json:"previous,omitempty"`
}

type outboxRow struct {
	ID      int64           `db:"id"`
	Payload json.RawMessage `db:"payload"`
}

// Syncer records every effective save in a durable outbox and pushes
// pending rows to the remote endpoint in batches. Pushes are woken by
// save-time kicks, debounced so a burst of saves becomes one request, and
// backstopped by a fixed-interval ticker. Rows stay in the outbox until the
// remote accepts them, so nothing is lost across restarts or while the
// remote is unreachable. It implements the RemoteSyncTrigger port.
type Syncer struct {
	db     *sqlx.DB
	client *http.Client
	cfg    config.SyncConfig
	logger *logger.Logger

	kicks chan struct{}
}

// NewSyncer creates a new remote syncer
func NewSyncer(db *sqlx.DB, cfg config.SyncConfig, log *logger.Logger) *Syncer {
	return &Syncer{
		db:     db,
		client: &http.Client{Timeout: pushRequestTimeout},
		cfg:    cfg,
		logger: log.WithComponent("syncer"),
		kicks:  make(chan struct{}, 1),
	}
}

// SyncTask records the saved pair in the outbox and wakes the push loop
func (s *Syncer) SyncTask(next, previous *entities.Task) {
	op := opFor(next, previous)

	payload, err := json.Marshal(envelope{
		Op:       op,
		Task:     next,
		Previous: previous,
	})
	if err != nil {
		s.logger.Errorw("Failed to encode sync envelope", "task_id", next.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `INSERT INTO sync_outbox (task_id, op, payload) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, next.ID, op, payload); err != nil {
		s.logger.Errorw("Failed to enqueue sync", "task_id", next.ID, "error", err)
		return
	}

	s.Sync()
}

// Sync wakes the push loop. Kicks coalesce: waking an already woken loop
// does nothing.
func (s *Syncer) Sync() {
	select {
	case s.kicks <- struct{}{}:
	default:
	}
}

// Run drives the push loop until ctx is cancelled. Pending outbox rows
// survive cancellation and are pushed on the next run.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kicks:
			if !s.settle(ctx) {
				return
			}
			s.push(ctx)
		case <-ticker.C:
			s.push(ctx)
		}
	}
}

// settle absorbs further kicks for one debounce window so a burst of saves
// is pushed as a single batch. It reports false when ctx ended.
func (s *Syncer) settle(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.Debounce)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-s.kicks:
		case <-timer.C:
			return true
		}
	}
}

// PushPending pushes every unpushed outbox row now, in batches, and
// returns how many the remote accepted.
func (s *Syncer) PushPending(ctx context.Context) (int, error) {
	if s.cfg.Endpoint == "" {
		return 0, errors.New("no sync endpoint configured")
	}

	total := 0
	for {
		n, err := s.pushBatch(ctx)
		if err != nil {
			return total, err
		}
		total += n
		if n < s.cfg.BatchSize {
			return total, nil
		}
	}
}

func (s *Syncer) push(ctx context.Context) {
	if s.cfg.Endpoint == "" {
		return
	}
	if _, err := s.PushPending(ctx); err != nil {
		s.logger.Errorw("Remote push failed", "error", err)
	}
}

func (s *Syncer) pushBatch(ctx context.Context) (int, error) {
	var rows []outboxRow
	query := `SELECT id, payload FROM sync_outbox WHERE pushed_at IS NULL ORDER BY id LIMIT $1`

	if err := s.db.SelectContext(ctx, &rows, query, s.cfg.BatchSize); err != nil {
		return 0, fmt.Errorf("failed to read outbox: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(rows))
	payloads := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		payloads[i] = row.Payload
	}

	body, err := json.Marshal(payloads)
	if err != nil {
		return 0, fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach sync endpoint: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("sync endpoint returned %s", resp.Status)
	}

	mark := `UPDATE sync_outbox SET pushed_at = CURRENT_TIMESTAMP WHERE id = ANY($1)`
	if _, err := s.db.ExecContext(ctx, mark, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("failed to mark outbox rows: %w", err)
	}

	s.logger.Infow("Pushed outbox batch", "rows", len(rows))
	return len(rows), nil
}

func opFor(next, previous *entities.Task) string {
	switch {
	case previous == nil:
		return opCreate
	case next.IsDeleted() && !previous.IsDeleted():
		return opDelete
	default:
		return opUpdate
	}
}
