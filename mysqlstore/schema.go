package mysqlstore

import "fmt"

const schemaTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id BINARY(16) NOT NULL,
	kind VARCHAR(128) NOT NULL,
	target VARCHAR(255) NOT NULL DEFAULT '',
	payload LONGBLOB NOT NULL,
	idempotency_key VARCHAR(128) NOT NULL,
	owner VARCHAR(128) NOT NULL DEFAULT '',
	status SMALLINT NOT NULL DEFAULT 0,
	attempt INT NOT NULL DEFAULT 0,
	last_error VARCHAR(1024) NULL,
	created_at_ms BIGINT NOT NULL,
	updated_at_ms BIGINT NOT NULL,
	next_retry_at_ms BIGINT NOT NULL,
	created_ts BIGINT GENERATED ALWAYS AS (CONV(SUBSTR(HEX(id), 1, 12), 16, 10) DIV 1000) STORED,
	PRIMARY KEY (id, created_ts),
	UNIQUE KEY uq_idempotency_key (idempotency_key),
	INDEX idx_status_retry (status, next_retry_at_ms)
)%s;`

const (
	partitionClausePrefix = "\nPARTITION BY RANGE (created_ts) ("
	partitionClauseSuffix = "\n)"
)

// Partition defines a range partition boundary on created_ts.
type Partition struct {
	Name     string
	LessThan string
}

// Schema returns the base, non-partitioned schema for an operations table.
func Schema(table string) (string, error) {
	return buildSchema(table, "")
}

// PartitionedSchema returns a schema with RANGE partitions on created_ts,
// the UUIDv7-embedded-timestamp column used by PartitionMaintainer.
func PartitionedSchema(table string, partitions []Partition) (string, error) {
	if len(partitions) == 0 {
		return "", ErrPartitionsRequired
	}

	clause := partitionClausePrefix
	for i, part := range partitions {
		if part.Name == "" || part.LessThan == "" {
			return "", ErrInvalidPartition
		}
		if i > 0 {
			clause += ","
		}
		clause += fmt.Sprintf("\n\tPARTITION %s VALUES LESS THAN (%s)", part.Name, part.LessThan)
	}
	clause += partitionClauseSuffix

	return buildSchema(table, clause)
}

func buildSchema(table, partitionClause string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(schemaTemplate, name, partitionClause), nil
}
