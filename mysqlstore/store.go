package mysqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/relaysync/syncbox"
)

const (
	maxErrorLen        = 1024
	defaultListLimit   = 50
	requeuedErrMessage = "requeued after inflight timeout"
)

// Store implements syncbox.OutboxStore backed by MySQL.
type Store struct {
	db      *sql.DB
	cfg     Config
	queries queries
	table   string
}

var _ syncbox.OutboxStore = (*Store)(nil)

// NewStore constructs a MySQL-backed store with validated configuration.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	table, err := sanitizeTableName(cfg.Table)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:      db,
		cfg:     cfg,
		queries: newQueries(table),
		table:   table,
	}, nil
}

// MustNewStore constructs a store or panics on error.
func MustNewStore(db *sql.DB, opts ...Option) *Store {
	store, err := NewStore(db, opts...)
	if err != nil {
		panic(err)
	}

	return store
}

// Put inserts or overwrites an operation by id.
func (s *Store) Put(ctx context.Context, op syncbox.Operation) error {
	id, err := syncbox.ParseID(op.ID)
	if err != nil {
		return fmt.Errorf("syncbox mysqlstore: parse id: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		s.queries.upsert,
		id, op.Kind, op.Target, op.Payload, op.IdempotencyKey, "",
		int(op.Status), op.Attempt, nullableError(op.LastError),
		op.CreatedAtMS, op.UpdatedAtMS, op.NextRetryAtMS,
	)
	if err != nil {
		return fmt.Errorf("syncbox mysqlstore: put failed: %w", err)
	}

	return nil
}

// Get returns the operation for id, or syncbox.ErrOperationNotFound.
func (s *Store) Get(ctx context.Context, id string) (syncbox.Operation, error) {
	parsed, err := syncbox.ParseID(id)
	if err != nil {
		return syncbox.Operation{}, fmt.Errorf("syncbox mysqlstore: parse id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, s.queries.selectOne, parsed)

	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return syncbox.Operation{}, syncbox.ErrOperationNotFound
	}
	if err != nil {
		return syncbox.Operation{}, fmt.Errorf("syncbox mysqlstore: get failed: %w", err)
	}

	return op, nil
}

// List returns operations matching opts. Done and PermanentFailed
// operations are always excluded.
func (s *Store) List(ctx context.Context, opts syncbox.ListOptions) ([]syncbox.Operation, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := s.buildListQuery(opts.OnlyReady, opts.IncludeInflight)
	args := make([]any, 0, 2)
	if opts.OnlyReady {
		args = append(args, opts.NowMS)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("syncbox mysqlstore: list failed: %w", err)
	}
	defer rows.Close()

	ops := make([]syncbox.Operation, 0, limit)
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("syncbox mysqlstore: list scan failed: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("syncbox mysqlstore: list rows failed: %w", err)
	}

	return ops, nil
}

func (s *Store) buildListQuery(onlyReady, includeInflight bool) string {
	excluded := fmt.Sprintf("%d, %d", int(syncbox.StatusDone), int(syncbox.StatusPermanentFailed))
	if !includeInflight {
		excluded = fmt.Sprintf("%s, %d", excluded, int(syncbox.StatusInFlight))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE status NOT IN (%s)", listColumns, s.table, excluded)
	if onlyReady {
		query += " AND next_retry_at_ms <= ?"
	}
	query += " ORDER BY next_retry_at_ms ASC, id ASC LIMIT ?"

	return query
}

// Claim transitions id from Pending|Failed to InFlight under owner.
func (s *Store) Claim(ctx context.Context, id, owner string, nowMS int64) (bool, error) {
	parsed, err := syncbox.ParseID(id)
	if err != nil {
		return false, fmt.Errorf("syncbox mysqlstore: parse id: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx, s.queries.claim,
		int(syncbox.StatusInFlight), owner, nowMS,
		parsed, int(syncbox.StatusPending), int(syncbox.StatusFailed),
	)
	if err != nil {
		return false, fmt.Errorf("syncbox mysqlstore: claim failed: %w", err)
	}

	return rowsAffected(res)
}

// MarkDone transitions id to Done, clearing its owner and last error.
func (s *Store) MarkDone(ctx context.Context, id string, nowMS int64) (bool, error) {
	parsed, err := syncbox.ParseID(id)
	if err != nil {
		return false, fmt.Errorf("syncbox mysqlstore: parse id: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.queries.markDone, int(syncbox.StatusDone), nowMS, parsed)
	if err != nil {
		return false, fmt.Errorf("syncbox mysqlstore: mark done failed: %w", err)
	}

	return rowsAffected(res)
}

// MarkFailed transitions id to Failed, increments attempt, records err and
// the next retry time, and clears its owner.
func (s *Store) MarkFailed(ctx context.Context, id, errMsg string, nowMS, nextRetryAtMS int64) (bool, error) {
	parsed, err := syncbox.ParseID(id)
	if err != nil {
		return false, fmt.Errorf("syncbox mysqlstore: parse id: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx, s.queries.markFailed,
		int(syncbox.StatusFailed), truncateError(errMsg), nowMS, nextRetryAtMS, parsed,
	)
	if err != nil {
		return false, fmt.Errorf("syncbox mysqlstore: mark failed failed: %w", err)
	}

	return rowsAffected(res)
}

// MarkPermanentFailed transitions id to the terminal PermanentFailed
// status, increments attempt, records err, and clears its owner.
func (s *Store) MarkPermanentFailed(ctx context.Context, id, errMsg string, nowMS int64) (bool, error) {
	parsed, err := syncbox.ParseID(id)
	if err != nil {
		return false, fmt.Errorf("syncbox mysqlstore: parse id: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx, s.queries.markPermanentFailed,
		int(syncbox.StatusPermanentFailed), truncateError(errMsg), nowMS, parsed,
	)
	if err != nil {
		return false, fmt.Errorf("syncbox mysqlstore: mark permanent failed failed: %w", err)
	}

	return rowsAffected(res)
}

// PruneDone deletes Done operations last updated at or before olderThanMS.
func (s *Store) PruneDone(ctx context.Context, olderThanMS int64) (int, error) {
	res, err := s.db.ExecContext(ctx, s.queries.pruneDone, int(syncbox.StatusDone), olderThanMS)
	if err != nil {
		return 0, fmt.Errorf("syncbox mysqlstore: prune done failed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("syncbox mysqlstore: prune done rows failed: %w", err)
	}

	return int(affected), nil
}

// RequeueInflightOlderThan returns any InFlight operation whose
// UpdatedAtMS is at least timeoutMS behind nowMS back to Failed,
// incrementing its attempt and clearing its owner.
func (s *Store) RequeueInflightOlderThan(ctx context.Context, nowMS, timeoutMS int64) (int, error) {
	cutoff := nowMS - timeoutMS

	rows, err := s.db.QueryContext(ctx, s.queries.selectStuckInflight, int(syncbox.StatusInFlight), cutoff)
	if err != nil {
		return 0, fmt.Errorf("syncbox mysqlstore: requeue select failed: %w", err)
	}

	var ids []syncbox.ID
	for rows.Next() {
		var id syncbox.ID
		if err := rows.Scan(&id); err != nil {
			rows.Close()

			return 0, fmt.Errorf("syncbox mysqlstore: requeue scan failed: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()

		return 0, fmt.Errorf("syncbox mysqlstore: requeue rows failed: %w", err)
	}
	rows.Close()

	requeued := 0
	for _, id := range ids {
		res, err := s.db.ExecContext(
			ctx, s.queries.requeueInflight,
			int(syncbox.StatusFailed), requeuedErrMessage, nowMS, nowMS, id, int(syncbox.StatusInFlight),
		)
		if err != nil {
			return requeued, fmt.Errorf("syncbox mysqlstore: requeue update failed: %w", err)
		}
		ok, err := rowsAffected(res)
		if err != nil {
			return requeued, err
		}
		if ok {
			requeued++
		}
	}

	return requeued, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (syncbox.Operation, error) {
	var (
		id             syncbox.ID
		kind           string
		target         string
		payload        []byte
		idempotencyKey string
		owner          string
		status         int
		attempt        int
		lastError      sql.NullString
		createdAtMS    int64
		updatedAtMS    int64
		nextRetryAtMS  int64
	)

	if err := row.Scan(&id, &kind, &target, &payload, &idempotencyKey, &owner, &status, &attempt, &lastError, &createdAtMS, &updatedAtMS, &nextRetryAtMS); err != nil {
		return syncbox.Operation{}, err
	}

	return syncbox.Operation{
		ID:             id.String(),
		Kind:           kind,
		Target:         target,
		Payload:        payload,
		IdempotencyKey: idempotencyKey,
		CreatedAtMS:    createdAtMS,
		UpdatedAtMS:    updatedAtMS,
		Attempt:        attempt,
		NextRetryAtMS:  nextRetryAtMS,
		Status:         syncbox.Status(status),
		LastError:      lastError.String,
	}, nil
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("syncbox mysqlstore: rows affected failed: %w", err)
	}

	return n > 0, nil
}

func nullableError(msg string) any {
	if msg == "" {
		return nil
	}

	return msg
}

func truncateError(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}

	runes := []rune(msg)
	if len(runes) <= maxErrorLen {
		return msg
	}

	return string(runes[:maxErrorLen])
}
