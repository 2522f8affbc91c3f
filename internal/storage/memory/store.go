package memory

import (
	"context"
	"sync"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
	"github.com/yndnr/datalayer-go/pkg/cmap"
)

// Store is an in-memory medium.
type Store struct {
	tables *cmap.Map[*cmap.Map[medium.Row]]

	// mu orders multi-row operations (filtered delete) against writers.
	mu sync.RWMutex

	closed bool
}

var _ medium.Medium = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tables: cmap.New[*cmap.Map[medium.Row]](),
	}
}

// EnsureTable creates the table if it does not exist.
func (s *Store) EnsureTable(_ context.Context, table string) error {
	if err := medium.ValidateTableName(table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStorageUnavailable.WithDetails("memory store closed")
	}
	s.tables.GetOrSet(table, cmap.New[medium.Row]())
	return nil
}

// Replace inserts row, replacing any row with the same key.
func (s *Store) Replace(_ context.Context, table string, row medium.Row) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.table(table)
	if err != nil {
		return 0, err
	}
	rows.Set(row.Key, cloneRow(row))
	return 1, nil
}

// Update rewrites the row matching row.Key.
func (s *Store) Update(_ context.Context, table string, row medium.Row) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.table(table)
	if err != nil {
		return 0, err
	}
	if !rows.SetIfPresent(row.Key, cloneRow(row)) {
		return 0, nil
	}
	return 1, nil
}

// Delete removes the rows matching f.
func (s *Store) Delete(_ context.Context, table string, f medium.Filter) (int64, error) {
	if f.MatchesNothing() {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.table(table)
	if err != nil {
		return 0, err
	}

	removed := rows.DeleteFunc(func(_ string, row medium.Row) bool { return f.Match(row) })
	return int64(len(removed)), nil
}

// Select returns the rows matching f.
func (s *Store) Select(_ context.Context, table string, f medium.Filter) ([]medium.Row, error) {
	if f.MatchesNothing() {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.table(table)
	if err != nil {
		return nil, err
	}

	var out []medium.Row
	rows.Range(func(_ string, row medium.Row) bool {
		if f.Match(row) {
			out = append(out, cloneRow(row))
		}
		return true
	})
	return out, nil
}

// Count returns the number of rows matching f.
func (s *Store) Count(_ context.Context, table string, f medium.Filter) (int, error) {
	if f.MatchesNothing() {
		return 0, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.table(table)
	if err != nil {
		return 0, err
	}

	if f.Keys == nil && f.Scope == medium.AnyExpiry {
		return rows.Len(), nil
	}
	n := 0
	rows.Range(func(_ string, row medium.Row) bool {
		if f.Match(row) {
			n++
		}
		return true
	})
	return n, nil
}

// Close drops every table.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tables.Clear()
	return nil
}

// table must be called with mu held.
func (s *Store) table(name string) (*cmap.Map[medium.Row], error) {
	if s.closed {
		return nil, domain.ErrStorageUnavailable.WithDetails("memory store closed")
	}
	rows, ok := s.tables.Get(name)
	if !ok {
		return nil, domain.ErrStorageUnavailable.WithDetails("no such table: " + name)
	}
	return rows, nil
}

// cloneRow detaches the timestamp pointer from the caller's copy.
func cloneRow(r medium.Row) medium.Row {
	if r.Timestamp != nil {
		ts := *r.Timestamp
		r.Timestamp = &ts
	}
	return r
}
