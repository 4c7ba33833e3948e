// Package engine drives an Outbox against a Transport: SyncWorker ticks
// once to claim and send a batch of ready operations, and SyncEngine runs
// one or more workers on a background loop, backing off when idle or
// offline.
package engine
