package mysqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/relaysync/syncbox"
)

const (
	defaultCleanupLimit      = 10000
	defaultCleanupEvery      = time.Hour
	defaultCleanupLockPrefix = "syncbox:cleanup:"
)

// CleanupOptions defines how to delete terminal operations.
type CleanupOptions struct {
	// Before removes rows updated at or before this time (required).
	Before time.Time
	// Limit caps the number of rows deleted per call (0 uses the default).
	Limit int
	// IncludePermanentFailed also removes PermanentFailed rows using the
	// same cutoff. Done rows are always included.
	IncludePermanentFailed bool
}

// CleanupResult reports how many rows were removed.
type CleanupResult struct {
	Done            int64
	PermanentFailed int64
}

// CleanupMaintainerConfig controls periodic cleanup of terminal operations.
type CleanupMaintainerConfig struct {
	// Table is the operations table name. Use schema.table for non-default schema.
	Table string
	// Retention removes rows older than now-retention (required).
	Retention time.Duration
	// CheckEvery is the interval between cleanup runs.
	CheckEvery time.Duration
	// Limit caps the number of rows deleted per run (0 uses the default).
	Limit int
	// IncludePermanentFailed removes PermanentFailed rows in addition to Done rows.
	IncludePermanentFailed bool
	// LockName is the advisory lock name. Defaults to syncbox:cleanup:<table>.
	LockName string
	// Clock overrides the time source (useful for tests).
	Clock syncbox.Clock
	// Logger receives warnings about cleanup failures.
	Logger syncbox.Logger
}

// CleanupMaintainer runs periodic cleanup of terminal operations.
type CleanupMaintainer struct {
	store *Store
	cfg   CleanupMaintainerConfig
}

// Cleanup removes Done rows (and optionally PermanentFailed rows) updated
// at or before opts.Before.
func (s *Store) Cleanup(ctx context.Context, opts CleanupOptions) (CleanupResult, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = defaultCleanupLimit
	}
	if limit < 0 {
		return CleanupResult{}, ErrCleanupLimitInvalid
	}

	remaining := limit
	beforeMS := opts.Before.UnixMilli()

	done, err := s.cleanupByStatus(ctx, syncbox.StatusDone, beforeMS, remaining)
	if err != nil {
		return CleanupResult{}, err
	}
	remaining -= int(done)

	var permanentFailed int64
	if opts.IncludePermanentFailed && remaining > 0 {
		permanentFailed, err = s.cleanupByStatus(ctx, syncbox.StatusPermanentFailed, beforeMS, remaining)
		if err != nil {
			return CleanupResult{}, err
		}
	}

	return CleanupResult{Done: done, PermanentFailed: permanentFailed}, nil
}

func (s *Store) cleanupByStatus(ctx context.Context, status syncbox.Status, beforeMS int64, limit int) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}

	// #nosec G201 -- table name is internal and sanitized.
	query := fmt.Sprintf("DELETE FROM %s WHERE status = ? AND updated_at_ms <= ? ORDER BY id LIMIT ?", s.table)
	res, err := s.db.ExecContext(ctx, query, int(status), beforeMS, limit)
	if err != nil {
		return 0, fmt.Errorf("syncbox mysqlstore: cleanup delete failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("syncbox mysqlstore: cleanup rows failed: %w", err)
	}

	return affected, nil
}

// NewCleanupMaintainer creates a cleanup maintainer with defaults applied.
func NewCleanupMaintainer(db *sql.DB, cfg CleanupMaintainerConfig) (*CleanupMaintainer, error) {
	if db == nil {
		return nil, ErrDBRequired
	}
	if cfg.Retention <= 0 {
		return nil, ErrCleanupRetentionInvalid
	}
	if cfg.Clock == nil {
		cfg.Clock = syncbox.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = syncbox.NopLogger{}
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = defaultCleanupEvery
	}
	if cfg.Limit == 0 {
		cfg.Limit = defaultCleanupLimit
	}
	if cfg.Limit < 0 {
		return nil, ErrCleanupLimitInvalid
	}

	store, err := NewStore(db, WithTable(cfg.Table), WithClock(cfg.Clock))
	if err != nil {
		return nil, err
	}
	cfg.Table = store.table
	if cfg.LockName == "" {
		cfg.LockName = defaultCleanupLockPrefix + cfg.Table
	}

	return &CleanupMaintainer{store: store, cfg: cfg}, nil
}

// Run periodically deletes old terminal operations until the context is canceled.
func (m *CleanupMaintainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CheckEvery)
	defer ticker.Stop()

	if _, err := m.Ensure(ctx); err != nil {
		m.cfg.Logger.Warn("syncbox mysqlstore cleanup failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Ensure(ctx); err != nil {
				m.cfg.Logger.Warn("syncbox mysqlstore cleanup failed", "err", err)
			}
		}
	}
}

// Ensure executes a single cleanup pass, guarded by a MySQL advisory lock
// so only one process in a fleet performs the delete at a time.
func (m *CleanupMaintainer) Ensure(ctx context.Context) (CleanupResult, error) {
	conn, err := m.store.db.Conn(ctx)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("syncbox mysqlstore: cleanup conn failed: %w", err)
	}
	defer conn.Close()

	locked, err := tryLock(ctx, conn, m.cfg.LockName)
	if err != nil {
		return CleanupResult{}, err
	}
	if !locked {
		m.cfg.Logger.Debug("syncbox mysqlstore cleanup lock held by another session")

		return CleanupResult{}, nil
	}
	defer releaseLock(ctx, conn, m.cfg.LockName, m.cfg.Logger)

	before := m.cfg.Clock.Now().Add(-m.cfg.Retention)

	return m.store.Cleanup(ctx, CleanupOptions{
		Before:                 before,
		Limit:                  m.cfg.Limit,
		IncludePermanentFailed: m.cfg.IncludePermanentFailed,
	})
}

func tryLock(ctx context.Context, conn *sql.Conn, name string) (bool, error) {
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", name).Scan(&got); err != nil {
		return false, fmt.Errorf("syncbox mysqlstore: acquire lock failed: %w", err)
	}
	if !got.Valid || got.Int64 == 0 {
		return false, nil
	}

	return true, nil
}

func releaseLock(ctx context.Context, conn *sql.Conn, name string, logger syncbox.Logger) {
	var released sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", name).Scan(&released); err != nil {
		logger.Warn("syncbox mysqlstore release lock failed", "err", err)
	}
}
