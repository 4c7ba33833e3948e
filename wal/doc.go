// Package wal implements the outbox's write-ahead log: a binary, append-only
// record format that lets a store-backed mutation be made durable before the
// store itself is updated, and replayed to reconstruct state after a crash.
//
// See record.go for the on-disk format, writer.go and reader.go for the
// append/replay primitives, and wal.go for the Wal facade used by
// syncbox.WALStore.
package wal

