package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/logging"
)

// pruneInterval is how often expired rows are removed.
const pruneInterval = 6 * time.Hour

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("history: entry not found")

// Entry is one recorded snapshot.
type Entry struct {
	ID         int64           `json:"id"`
	RecordedAt time.Time       `json:"recorded_at"`
	Snapshot   biocat.Snapshot `json:"snapshot"`
}

// Store persists committed snapshots to SQLite for the status API.
//
// One row per committed fetch cycle, pruned on a retention window.
// Long-term series analysis belongs in InfluxDB; this store exists so
// the local API can answer "what happened recently" without external
// services.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	db        *database.DB
	logger    *logging.Logger
	retention time.Duration

	// Prune loop coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Store. Call Init before first use.
//
// Parameters:
//   - db: Open database connection
//   - logger: Structured logger
//   - retentionDays: How long entries are kept; 0 disables pruning
func New(db *database.DB, logger *logging.Logger, retentionDays int) *Store {
	return &Store{
		db:        db,
		logger:    logger.With("component", "history"),
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		done:      make(chan struct{}),
	}
}

// Init creates the schema if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    recorded_at TIMESTAMP NOT NULL,
    snapshot    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_recorded_at ON snapshots(recorded_at);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating history schema: %w", err)
	}
	return nil
}

// Record stores one committed snapshot.
func (s *Store) Record(ctx context.Context, snap biocat.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snapshots (recorded_at, snapshot) VALUES (?, ?)",
		time.Now().UTC(), string(data),
	)
	if err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, recorded_at, snapshot FROM snapshots ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-side close, nothing to handle

	var entries []Entry
	for rows.Next() {
		var e Entry
		var raw string
		if err := rows.Scan(&e.ID, &e.RecordedAt, &raw); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Snapshot); err != nil {
			return nil, fmt.Errorf("decoding snapshot %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return entries, nil
}

// Latest returns the most recent entry.
func (s *Store) Latest(ctx context.Context) (Entry, error) {
	var e Entry
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, recorded_at, snapshot FROM snapshots ORDER BY id DESC LIMIT 1",
	).Scan(&e.ID, &e.RecordedAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("querying latest snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &e.Snapshot); err != nil {
		return Entry{}, fmt.Errorf("decoding snapshot %d: %w", e.ID, err)
	}
	return e, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting history rows: %w", err)
	}
	return n, nil
}

// ConsumptionSince reports the litres consumed since the given instant,
// derived from the growth of the lifetime total across recorded
// snapshots. The second return is false when no snapshot in the window
// carries a total.
func (s *Store) ConsumptionSince(ctx context.Context, since time.Time) (float64, bool, error) {
	const query = `
SELECT MIN(json_extract(snapshot, '$.total_consumption')),
       MAX(json_extract(snapshot, '$.total_consumption'))
FROM snapshots
WHERE recorded_at >= ?
  AND json_extract(snapshot, '$.total_consumption') IS NOT NULL`

	var low, high sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, since.UTC()).Scan(&low, &high); err != nil {
		return 0, false, fmt.Errorf("aggregating consumption: %w", err)
	}
	if !low.Valid || !high.Valid {
		return 0, false, nil
	}
	return high.Float64 - low.Float64, true, nil
}

// Prune removes entries older than the retention window.
// Returns the number of rows removed. No-op when retention is disabled.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-s.retention)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM snapshots WHERE recorded_at < ?", cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading prune result: %w", err)
	}
	return removed, nil
}

// StartPruning runs Prune on an interval until Stop is called.
func (s *Store) StartPruning(ctx context.Context) {
	if s.retention <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				removed, err := s.Prune(ctx)
				if err != nil {
					s.logger.Warn("history prune failed", "error", err)
					continue
				}
				if removed > 0 {
					s.logger.Info("history pruned", "removed", removed)
				}
			}
		}
	}()
}

// Stop halts the prune loop. Safe to call multiple times.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}
