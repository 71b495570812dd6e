package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"timcast/internal/tim"
	logx "timcast/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	// Serializes Tx.Save calls; SQLite prefers a single writer.
	writeMu sync.Mutex
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetByID(ctx context.Context, id uuid.UUID) (*tim.Aggregate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT doc, version FROM aggregates WHERE id = ?`, id.String())
	agg, err := scanAggregate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return agg, err
}

func (s *sqliteStore) GetByBatch(ctx context.Context, batchID uuid.UUID) ([]*tim.Aggregate, error) {
	return s.queryAggregates(ctx,
		`SELECT a.doc, a.version FROM aggregates a
		 JOIN aggregate_batches b ON b.aggregate_id = a.id
		 WHERE b.batch_id = ? AND a.deleted = 0`,
		batchID.String())
}

func (s *sqliteStore) GetBySite(ctx context.Context, siteID uuid.UUID) ([]*tim.Aggregate, error) {
	return s.queryAggregates(ctx,
		`SELECT doc, version FROM aggregates WHERE site_id = ? AND deleted = 0`,
		siteID.String())
}

func (s *sqliteStore) FindActive(ctx context.Context) ([]*tim.Aggregate, error) {
	return s.queryAggregates(ctx,
		`SELECT doc, version FROM aggregates WHERE deleted = 0`)
}

func (s *sqliteStore) queryAggregates(ctx context.Context, query string, args ...any) ([]*tim.Aggregate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*tim.Aggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAggregate(row rowScanner) (*tim.Aggregate, error) {
	var doc string
	var version int64
	if err := row.Scan(&doc, &version); err != nil {
		return nil, err
	}
	var agg tim.Aggregate
	if err := json.Unmarshal([]byte(doc), &agg); err != nil {
		return nil, fmt.Errorf("decode aggregate: %w", err)
	}
	agg.Version = version
	return &agg, nil
}

// ---- unit of work ----

type sqliteTx struct {
	store   *sqliteStore
	adds    []*tim.Aggregate
	updates []*tim.Aggregate
}

func (s *sqliteStore) Begin() Tx { return &sqliteTx{store: s} }

func (t *sqliteTx) Add(agg *tim.Aggregate)    { t.adds = append(t.adds, agg) }
func (t *sqliteTx) Update(agg *tim.Aggregate) { t.updates = append(t.updates, agg) }

func (t *sqliteTx) Save(ctx context.Context) error {
	if len(t.adds) == 0 && len(t.updates) == 0 {
		return nil
	}
	s := t.store
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbtx.Rollback() }()

	for _, agg := range t.adds {
		doc, err := json.Marshal(agg)
		if err != nil {
			return fmt.Errorf("encode aggregate %s: %w", agg.ID, err)
		}
		_, err = dbtx.ExecContext(ctx,
			`INSERT INTO aggregates(id, site_id, device_id, itis_code, category, state, deleted, version, doc)
			 VALUES(?,?,?,?,?,?,?,1,?)`,
			agg.ID.String(), agg.SiteID.String(), agg.DeviceID.String(),
			int(agg.Code), string(agg.Category), string(agg.State), boolInt(agg.Deleted), string(doc),
		)
		if err != nil {
			return fmt.Errorf("insert aggregate %s: %w", agg.ID, err)
		}
		if err := rewriteBatchIndex(ctx, dbtx, agg); err != nil {
			return err
		}
	}

	for _, agg := range t.updates {
		doc, err := json.Marshal(agg)
		if err != nil {
			return fmt.Errorf("encode aggregate %s: %w", agg.ID, err)
		}
		res, err := dbtx.ExecContext(ctx,
			`UPDATE aggregates
			 SET site_id=?, device_id=?, itis_code=?, category=?, state=?, deleted=?, version=version+1, doc=?
			 WHERE id=? AND version=?`,
			agg.SiteID.String(), agg.DeviceID.String(), int(agg.Code), string(agg.Category),
			string(agg.State), boolInt(agg.Deleted), string(doc),
			agg.ID.String(), agg.Version,
		)
		if err != nil {
			return fmt.Errorf("update aggregate %s: %w", agg.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("aggregate %s: %w", agg.ID, ErrConflict)
		}
		if err := rewriteBatchIndex(ctx, dbtx, agg); err != nil {
			return err
		}
	}

	if err := dbtx.Commit(); err != nil {
		return err
	}

	// Commit succeeded; reflect the new versions on the staged aggregates.
	for _, agg := range t.adds {
		agg.Version = 1
	}
	for _, agg := range t.updates {
		agg.Version++
	}
	t.adds, t.updates = nil, nil
	return nil
}

func rewriteBatchIndex(ctx context.Context, dbtx *sql.Tx, agg *tim.Aggregate) error {
	if _, err := dbtx.ExecContext(ctx,
		`DELETE FROM aggregate_batches WHERE aggregate_id = ?`, agg.ID.String()); err != nil {
		return err
	}
	seen := map[uuid.UUID]bool{}
	for _, m := range agg.Members {
		if seen[m.BatchID] {
			continue
		}
		seen[m.BatchID] = true
		if _, err := dbtx.ExecContext(ctx,
			`INSERT INTO aggregate_batches(aggregate_id, batch_id) VALUES(?,?)`,
			agg.ID.String(), m.BatchID.String()); err != nil {
			return err
		}
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
