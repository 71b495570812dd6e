package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"timcast/internal/tim"
)

// memoryStore keeps aggregates in a map with the same version-check write
// semantics as the SQLite backend. Reads and writes exchange deep copies so
// callers never share state with the store.
type memoryStore struct {
	mu   sync.RWMutex
	aggs map[uuid.UUID]*tim.Aggregate
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memoryStore{aggs: map[uuid.UUID]*tim.Aggregate{}}
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*tim.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.aggs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAggregate(agg), nil
}

func (s *memoryStore) GetByBatch(_ context.Context, batchID uuid.UUID) ([]*tim.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*tim.Aggregate
	for _, agg := range s.aggs {
		if agg.Deleted {
			continue
		}
		if _, ok := agg.MemberByBatch(batchID); ok {
			out = append(out, cloneAggregate(agg))
		}
	}
	return out, nil
}

func (s *memoryStore) GetBySite(_ context.Context, siteID uuid.UUID) ([]*tim.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*tim.Aggregate
	for _, agg := range s.aggs {
		if !agg.Deleted && agg.SiteID == siteID {
			out = append(out, cloneAggregate(agg))
		}
	}
	return out, nil
}

func (s *memoryStore) FindActive(_ context.Context) ([]*tim.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*tim.Aggregate
	for _, agg := range s.aggs {
		if !agg.Deleted {
			out = append(out, cloneAggregate(agg))
		}
	}
	return out, nil
}

type memoryTx struct {
	store   *memoryStore
	adds    []*tim.Aggregate
	updates []*tim.Aggregate
}

func (s *memoryStore) Begin() Tx { return &memoryTx{store: s} }

func (t *memoryTx) Add(agg *tim.Aggregate)    { t.adds = append(t.adds, agg) }
func (t *memoryTx) Update(agg *tim.Aggregate) { t.updates = append(t.updates, agg) }

func (t *memoryTx) Save(_ context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole unit before mutating anything.
	for _, agg := range t.updates {
		cur, ok := s.aggs[agg.ID]
		if !ok {
			return fmt.Errorf("aggregate %s: %w", agg.ID, ErrNotFound)
		}
		if cur.Version != agg.Version {
			return fmt.Errorf("aggregate %s: %w", agg.ID, ErrConflict)
		}
	}

	for _, agg := range t.adds {
		agg.Version = 1
		s.aggs[agg.ID] = cloneAggregate(agg)
	}
	for _, agg := range t.updates {
		agg.Version++
		s.aggs[agg.ID] = cloneAggregate(agg)
	}
	t.adds, t.updates = nil, nil
	return nil
}

func cloneAggregate(agg *tim.Aggregate) *tim.Aggregate {
	b, err := json.Marshal(agg)
	if err != nil {
		panic(fmt.Sprintf("store: clone aggregate %s: %v", agg.ID, err))
	}
	var cp tim.Aggregate
	if err := json.Unmarshal(b, &cp); err != nil {
		panic(fmt.Sprintf("store: clone aggregate %s: %v", agg.ID, err))
	}
	cp.Version = agg.Version
	return &cp
}
