// Package mysqlstore implements syncbox.OutboxStore on top of MySQL, using
// row-level UPDATE...WHERE status IN (...) statements as the claim
// primitive instead of the polling SELECT...FOR UPDATE SKIP LOCKED batch
// pattern: an operation is claimed by exactly one caller because the
// UPDATE's WHERE clause only matches while the row is still Pending or
// Failed, and MySQL serializes concurrent UPDATEs against the same row.
//
// See schema.go for the table definition (including the UUIDv7-embedded
// created_ts generated column used by PartitionMaintainer), queries.go for
// the SQL, store.go for the Store type, and cleanup.go/partitions.go for
// the periodic maintenance goroutines.
package mysqlstore
