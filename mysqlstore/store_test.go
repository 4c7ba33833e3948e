package mysqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/relaysync/syncbox"
)

func TestNewStoreRequiresDB(t *testing.T) {
	if _, err := NewStore(nil); err != ErrDBRequired {
		t.Fatalf("expected ErrDBRequired, got %v", err)
	}
}

func TestNewStoreSanitizesTable(t *testing.T) {
	db := &sql.DB{}
	if _, err := NewStore(db, WithTable("bad;name")); !errors.Is(err, ErrInvalidTableName) {
		t.Fatalf("expected ErrInvalidTableName, got %v", err)
	}
}

func TestNewStoreAppliesDefaults(t *testing.T) {
	db := &sql.DB{}
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.table != defaultTable {
		t.Fatalf("expected default table %q, got %q", defaultTable, store.table)
	}
}

func TestStoreBuildListQuery(t *testing.T) {
	store := &Store{table: "ops"}
	excludeTerminal := fmt.Sprintf("NOT IN (%d, %d", int(syncbox.StatusDone), int(syncbox.StatusPermanentFailed))

	onlyReady := store.buildListQuery(true, false)
	if !strings.Contains(onlyReady, "next_retry_at_ms <= ?") {
		t.Fatalf("expected ready filter, got: %s", onlyReady)
	}
	if !strings.Contains(onlyReady, fmt.Sprintf("%s, %d)", excludeTerminal, int(syncbox.StatusInFlight))) {
		t.Fatalf("expected inflight excluded by default, got: %s", onlyReady)
	}

	withInflight := store.buildListQuery(false, true)
	if strings.Contains(withInflight, "next_retry_at_ms <= ?") {
		t.Fatalf("expected no ready filter when OnlyReady is false, got: %s", withInflight)
	}
	if !strings.Contains(withInflight, excludeTerminal+")") {
		t.Fatalf("expected only terminal statuses excluded when IncludeInflight is true, got: %s", withInflight)
	}
}

func TestTruncateError(t *testing.T) {
	long := strings.Repeat("a", maxErrorLen+10)
	msg := truncateError(long)
	if len([]rune(msg)) != maxErrorLen {
		t.Fatalf("expected truncated length %d, got %d", maxErrorLen, len([]rune(msg)))
	}

	short := "boom"
	if truncateError(short) != short {
		t.Fatalf("expected short message unchanged")
	}
}

func TestNullableError(t *testing.T) {
	if nullableError("") != nil {
		t.Fatalf("expected nil for empty error")
	}
	if nullableError("boom") != "boom" {
		t.Fatalf("expected message passed through")
	}
}

// fakeScanRow implements the scanner interface with the exact column
// order scanOperation expects: id, kind, target, payload, idempotency
// key, owner, status, attempt, last error, created/updated/next-retry ms.
type fakeScanRow struct {
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
}

func (r fakeScanRow) Scan(dest ...any) error {
	*dest[0].(*syncbox.ID) = r.id
	*dest[1].(*string) = r.kind
	*dest[2].(*string) = r.target
	*dest[3].(*[]byte) = r.payload
	*dest[4].(*string) = r.idempotencyKey
	*dest[5].(*string) = r.owner
	*dest[6].(*int) = r.status
	*dest[7].(*int) = r.attempt
	*dest[8].(*sql.NullString) = r.lastError
	*dest[9].(*int64) = r.createdAtMS
	*dest[10].(*int64) = r.updatedAtMS
	*dest[11].(*int64) = r.nextRetryAtMS

	return nil
}

func TestScanOperation(t *testing.T) {
	id, err := syncbox.ParseID("018f1e0a-0000-7000-8000-000000000001")
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}

	row := fakeScanRow{
		id:             id,
		kind:           "http.post",
		target:         "https://example.com",
		payload:        []byte("hello"),
		idempotencyKey: "key-1",
		status:         int(syncbox.StatusFailed),
		attempt:        2,
		lastError:      sql.NullString{String: "boom", Valid: true},
		createdAtMS:    10,
		updatedAtMS:    20,
		nextRetryAtMS:  30,
	}

	op, err := scanOperation(row)
	if err != nil {
		t.Fatalf("scan operation: %v", err)
	}
	if op.ID != id.String() {
		t.Fatalf("expected id %s, got %s", id.String(), op.ID)
	}
	if op.Kind != "http.post" || op.Target != "https://example.com" {
		t.Fatalf("unexpected kind/target: %+v", op)
	}
	if string(op.Payload) != "hello" {
		t.Fatalf("unexpected payload: %s", op.Payload)
	}
	if op.Status != syncbox.StatusFailed || op.Attempt != 2 {
		t.Fatalf("unexpected status/attempt: %+v", op)
	}
	if op.LastError != "boom" {
		t.Fatalf("unexpected last error: %s", op.LastError)
	}
}
