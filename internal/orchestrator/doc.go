// Package orchestrator drives the broadcast lifecycle: it resolves targets,
// merges instances into per-device aggregates, persists them, and emits the
// downstream device commands.
//
// Write protocol
//
// Every mutation is a load-mutate-save unit against the store's optimistic
// version check; ErrConflict causes a bounded reload-and-retry. The aggregate
// is persisted before its command is dispatched, so a command on the wire
// always has a persisted aggregate behind it; a persisted aggregate whose
// dispatch failed is surfaced as an error and re-driven by the next
// reconciliation tick.
package orchestrator
