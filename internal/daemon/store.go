package daemon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS pending_configs (
	id               TEXT PRIMARY KEY,
	body             TEXT NOT NULL,
	wants_events     INTEGER NOT NULL DEFAULT 0,
	wants_activities INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL,
	delivered_at     TIMESTAMP
);
CREATE TABLE IF NOT EXISTS gpu_contexts (
	device INTEGER PRIMARY KEY,
	count  INTEGER NOT NULL
);
`

// Store persists the daemon's pending on-demand configs and GPU context
// counts, so queued requests survive a daemon restart.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the daemon's sqlite database.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Enqueue stores a config for delivery to the next matching poll and
// returns its request ID.
func (s *Store) Enqueue(ctx context.Context, body string, wantsEvents, wantsActivities bool) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_configs (id, body, wants_events, wants_activities, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, body, wantsEvents, wantsActivities, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("enqueuing config: %w", err)
	}
	return id, nil
}

// NextMatching pops the oldest undelivered config a poller can accept: the
// poller must be open to at least one profiler kind the config targets.
// Returns an empty string when nothing matches.
func (s *Store) NextMatching(ctx context.Context, events, activities bool) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, body FROM pending_configs
		 WHERE delivered_at IS NULL
		   AND ((wants_events = 1 AND ? = 1) OR (wants_activities = 1 AND ? = 1))
		 ORDER BY created_at
		 LIMIT 1`,
		events, activities)

	var id, body string
	if err := row.Scan(&id, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("selecting pending config: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE pending_configs SET delivered_at = ? WHERE id = ?`,
		time.Now().UTC(), id); err != nil {
		return "", fmt.Errorf("marking config delivered: %w", err)
	}
	return body, nil
}

// PendingCount returns the number of undelivered configs.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_configs WHERE delivered_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending configs: %w", err)
	}
	return n, nil
}

// SetGPUContextCount records the context count for a device.
func (s *Store) SetGPUContextCount(ctx context.Context, device uint32, count int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gpu_contexts (device, count) VALUES (?, ?)
		 ON CONFLICT(device) DO UPDATE SET count = excluded.count`,
		device, count)
	if err != nil {
		return fmt.Errorf("storing context count: %w", err)
	}
	return nil
}

// GPUContextCountStored returns the recorded count for a device, 0 when the
// device is unknown.
func (s *Store) GPUContextCountStored(ctx context.Context, device uint32) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM gpu_contexts WHERE device = ?`, device).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading context count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
