package mysqlstore

import "fmt"

type queries struct {
	upsert              string
	selectOne           string
	claim               string
	markDone            string
	markFailed          string
	markPermanentFailed string
	pruneDone           string
	selectStuckInflight string
	requeueInflight     string
}

const listColumns = "id, kind, target, payload, idempotency_key, owner, status, attempt, last_error, created_at_ms, updated_at_ms, next_retry_at_ms"

func newQueries(table string) queries {
	upsert := fmt.Sprintf(
		"INSERT INTO %s (id, kind, target, payload, idempotency_key, owner, status, attempt, last_error, created_at_ms, updated_at_ms, next_retry_at_ms) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE kind=VALUES(kind), target=VALUES(target), payload=VALUES(payload), "+
			"idempotency_key=VALUES(idempotency_key), owner=VALUES(owner), status=VALUES(status), "+
			"attempt=VALUES(attempt), last_error=VALUES(last_error), updated_at_ms=VALUES(updated_at_ms), "+
			"next_retry_at_ms=VALUES(next_retry_at_ms)",
		table,
	)

	selectOne := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", listColumns, table)

	claim := fmt.Sprintf(
		"UPDATE %s SET status = ?, owner = ?, updated_at_ms = ? WHERE id = ? AND status IN (?, ?)",
		table,
	)

	markDone := fmt.Sprintf(
		"UPDATE %s SET status = ?, owner = '', last_error = NULL, updated_at_ms = ? WHERE id = ?",
		table,
	)

	markFailed := fmt.Sprintf(
		"UPDATE %s SET status = ?, owner = '', attempt = attempt + 1, last_error = ?, updated_at_ms = ?, next_retry_at_ms = ? WHERE id = ?",
		table,
	)

	markPermanentFailed := fmt.Sprintf(
		"UPDATE %s SET status = ?, owner = '', attempt = attempt + 1, last_error = ?, updated_at_ms = ? WHERE id = ?",
		table,
	)

	pruneDone := fmt.Sprintf("DELETE FROM %s WHERE status = ? AND updated_at_ms <= ?", table)

	selectStuckInflight := fmt.Sprintf(
		"SELECT id FROM %s WHERE status = ? AND updated_at_ms <= ?",
		table,
	)

	requeueInflight := fmt.Sprintf(
		"UPDATE %s SET status = ?, owner = '', attempt = attempt + 1, last_error = ?, updated_at_ms = ?, next_retry_at_ms = ? WHERE id = ? AND status = ?",
		table,
	)

	return queries{
		upsert:              upsert,
		selectOne:           selectOne,
		claim:               claim,
		markDone:            markDone,
		markFailed:          markFailed,
		markPermanentFailed: markPermanentFailed,
		pruneDone:           pruneDone,
		selectStuckInflight: selectStuckInflight,
		requeueInflight:     requeueInflight,
	}
}
