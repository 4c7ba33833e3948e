// Package syncbox provides a durable, offline-first outbox and sync engine.
//
// Typical flow:
//  1. Accept write-intent operations with Outbox.Enqueue; they are persisted
//     before any network attempt.
//  2. Run an engine.SyncEngine (or drive engine.SyncWorker.Tick manually) to
//     claim ready operations and dispatch them through a pluggable
//     engine.Transport.
//  3. On success the worker marks the operation Done; on failure it is
//     retried with backoff or escalated to PermanentFailed.
//
// Every exported entry point takes nowMS explicitly, and every operation
// timestamp and retry schedule is derived from it, so the whole system is
// testable with simulated time. The system clock is read only by the
// self-driven engine loop, by the default UUIDv7 id generator (for the
// timestamp embedded in each id) and by send-duration metrics.
//
// For a SQL-backed OutboxStore see the mysqlstore package. For WAL-backed
// durability upgrades see the wal package and WALStore.
package syncbox
