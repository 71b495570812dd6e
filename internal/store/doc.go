// Package store persists broadcast aggregates.
//
// It currently supports:
//   - SQLite document storage (one JSON document per aggregate)
//   - An in-memory backend for tests and ephemeral runs
//
// Writes go through a unit of work (Begin/Tx.Save) with a per-aggregate
// version check: concurrent writers to the same aggregate get ErrConflict
// and are expected to reload and retry. This is how the request path, the
// reconciliation tick, and the confirmation consumer serialize against each
// other without an in-process lock.
package store
