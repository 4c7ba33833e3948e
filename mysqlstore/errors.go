package mysqlstore

import "errors"

var (
	// ErrDBRequired is returned when a nil *sql.DB is provided.
	ErrDBRequired = errors.New("syncbox mysqlstore: db is required")
	// ErrTableNameRequired is returned when the table name is empty.
	ErrTableNameRequired = errors.New("syncbox mysqlstore: table name is required")
	// ErrInvalidTableName is returned when the table name has disallowed characters.
	ErrInvalidTableName = errors.New("syncbox mysqlstore: invalid table name")
	// ErrPartitionsRequired is returned when partition definitions are missing.
	ErrPartitionsRequired = errors.New("syncbox mysqlstore: partitions are required")
	// ErrInvalidPartition is returned when a partition definition is invalid.
	ErrInvalidPartition = errors.New("syncbox mysqlstore: invalid partition definition")
	// ErrPartitionPeriodRequired is returned when the partition period is missing or invalid.
	ErrPartitionPeriodRequired = errors.New("syncbox mysqlstore: partition period is required")
	// ErrPartitionRetentionInvalid is returned when retention is negative.
	ErrPartitionRetentionInvalid = errors.New("syncbox mysqlstore: partition retention must be non-negative")
	// ErrPartitionSchemaRequired is returned when the database name cannot be resolved.
	ErrPartitionSchemaRequired = errors.New("syncbox mysqlstore: database name is required for partition maintenance")
	// ErrPartitionDescriptionInvalid is returned when a partition description cannot be parsed.
	ErrPartitionDescriptionInvalid = errors.New("syncbox mysqlstore: invalid partition description")
	// ErrPartitionNameConflict is returned when a generated partition name already exists.
	ErrPartitionNameConflict = errors.New("syncbox mysqlstore: partition name conflict")
	// ErrPartitionedTableRequired is returned when the table is not partitioned.
	ErrPartitionedTableRequired = errors.New("syncbox mysqlstore: table is not partitioned")
	// ErrPartitionMaxRequired is returned when the MAXVALUE partition is missing.
	ErrPartitionMaxRequired = errors.New("syncbox mysqlstore: MAXVALUE partition is required")
	// ErrCleanupRetentionInvalid is returned when cleanup retention is not positive.
	ErrCleanupRetentionInvalid = errors.New("syncbox mysqlstore: cleanup retention must be positive")
	// ErrCleanupLimitInvalid is returned when the cleanup limit is negative.
	ErrCleanupLimitInvalid = errors.New("syncbox mysqlstore: cleanup limit must be non-negative")
)
