package memory

import (
	"context"
	"slices"
	"sync"

	"gastos/internal/core"
	"gastos/internal/sheets"
)

var _ sheets.ExpenseMirror = (*Store)(nil)

// Store is an in-process mirror, used when no spreadsheet is configured
// and in tests.
type Store struct {
	mu    sync.Mutex
	items map[int64]core.Expense
}

func New() *Store {
	return &Store{items: map[int64]core.Expense{}}
}

func (s *Store) Upsert(_ context.Context, expenses []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range expenses {
		s.items[e.ID] = e
	}
	return nil
}

func (s *Store) Remove(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// Get returns the mirrored expense with the given id.
func (s *Store) Get(id int64) (core.Expense, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	return e, ok
}

// Rows returns the mirror content as sheet rows ordered by id.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, sheets.Row(s.items[id]))
	}
	return rows
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
