// Package dashboard holds the state and view models behind the expenses
// dashboard: the store that mirrors server data, the upload control, the
// table edit state, and the KPI cards and charts.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"gastos/internal/core"
	applog "gastos/internal/log"

	"golang.org/x/sync/errgroup"
)

// API is the subset of the REST client the store needs.
type API interface {
	Import(ctx context.Context, filename string, r io.Reader) (core.ImportResult, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, update core.ExpenseUpdate) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	GetKPIs(ctx context.Context, filter core.KPIFilter) (core.KPISummary, error)
}

// State is the store's view of server truth.
type State struct {
	Expenses []core.Expense
	KPIs     core.KPISummary
	Loading  bool
	// Loaded is false until the first successful Load.
	Loaded bool
}

// Store owns the fetched collections. Both are replaced wholesale on every
// successful Load and left untouched when a load fails.
type Store struct {
	api    API
	logger *slog.Logger

	mu    sync.RWMutex
	state State
}

func NewStore(api API, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:    api,
		logger: logger.With(applog.FieldComponent, applog.ComponentDashboard),
		state:  State{KPIs: core.NewKPISummary(), Loading: true},
	}
}

// Load fetches expenses and KPIs in parallel and swaps them in once both
// succeed.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.state.Loading = true
	s.mu.Unlock()

	var (
		expenses []core.Expense
		kpis     core.KPISummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.api.ListExpenses(gctx)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		kpis, err = s.api.GetKPIs(gctx, core.KPIFilter{})
		if err != nil {
			return fmt.Errorf("get kpis: %w", err)
		}
		return nil
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		s.logger.ErrorContext(ctx, "Error loading data",
			applog.FieldOperation, applog.OpReload,
			applog.FieldError, err)
		return err
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	s.state.Expenses = expenses
	s.state.KPIs = kpis
	s.state.Loaded = true
	return nil
}

// Import uploads a file and reloads. A failed reload does not fail the import.
func (s *Store) Import(ctx context.Context, filename string, r io.Reader) (core.ImportResult, error) {
	result, err := s.api.Import(ctx, filename, r)
	if err != nil {
		return core.ImportResult{}, err
	}
	_ = s.Load(ctx)
	return result, nil
}

// UpdateCategory sets only the category of an expense, then reloads.
func (s *Store) UpdateCategory(ctx context.Context, id int64, category string) error {
	_, err := s.api.UpdateExpense(ctx, id, core.ExpenseUpdate{Category: &category})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating expense",
			applog.FieldOperation, applog.OpUpdate,
			applog.FieldExpenseID, id,
			applog.FieldError, err)
		return err
	}
	_ = s.Load(ctx)
	return nil
}

// Delete removes an expense, then reloads.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.api.DeleteExpense(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting expense",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldExpenseID, id,
			applog.FieldError, err)
		return err
	}
	_ = s.Load(ctx)
	return nil
}

// Snapshot returns a copy of the current state for rendering.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.state
	out.Expenses = append([]core.Expense(nil), s.state.Expenses...)
	out.KPIs.ByCategory = copyAmounts(s.state.KPIs.ByCategory)
	out.KPIs.ByMonth = copyAmounts(s.state.KPIs.ByMonth)
	return out
}

// Find returns the expense with the given id from the last load.
func (s *Store) Find(id int64) (core.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.state.Expenses {
		if e.ID == id {
			return e, true
		}
	}
	return core.Expense{}, false
}
