package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"timcast/internal/tim"
	logx "timcast/pkg/logx"
)

var (
	// ErrNotFound is returned by lookups for unknown aggregate IDs.
	ErrNotFound = errors.New("aggregate not found")
	// ErrConflict is returned by Tx.Save when another writer committed the
	// aggregate first. Reload and retry.
	ErrConflict = errors.New("aggregate version conflict")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "memory": in-memory backend (tests, ephemeral runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the document-store collaborator used by the orchestrator and the
// reconciliation loops. Reads return deep copies; mutations are only
// persisted through a Tx.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tim.Aggregate, error)
	GetByBatch(ctx context.Context, batchID uuid.UUID) ([]*tim.Aggregate, error)
	GetBySite(ctx context.Context, siteID uuid.UUID) ([]*tim.Aggregate, error)
	FindActive(ctx context.Context) ([]*tim.Aggregate, error)
	Begin() Tx
	Close() error
}

// Tx is a batched unit of work. Add stages a new aggregate, Update stages a
// version-checked rewrite, Save commits everything atomically. On success the
// staged aggregates' versions are bumped in place.
type Tx interface {
	Add(agg *tim.Aggregate)
	Update(agg *tim.Aggregate)
	Save(ctx context.Context) error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
