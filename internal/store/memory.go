package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory InvocationStore for tests and runs without a
// database configured.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*Invocation
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Invocation)}
}

func (s *MemoryStore) Append(ctx context.Context, inv *Invocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inv
	cp.StartedAt = timeOrNow(inv.StartedAt)
	s.rows[inv.ID] = &cp
	return nil
}

func (s *MemoryStore) Finish(ctx context.Context, id string, update InvocationUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.rows[id]
	if !ok {
		return storeNotFound("invocation", id)
	}
	inv.Status = update.Status
	inv.Result = update.Result
	inv.Error = update.Error
	finished := timeOrNow(update.FinishedAt)
	inv.FinishedAt = &finished
	inv.DurationMs = update.DurationMs
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Invocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.rows[id]
	if !ok {
		return nil, storeNotFound("invocation", id)
	}
	cp := *inv
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, filter InvocationFilter) ([]*Invocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Invocation
	for _, inv := range s.rows {
		if filter.Action != "" && inv.Action != filter.Action {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.Since != nil && inv.StartedAt.Before(*filter.Since) {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

var _ InvocationStore = (*MemoryStore)(nil)
var _ InvocationStore = (*LibSQLStore)(nil)
