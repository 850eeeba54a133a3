package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "gastos.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func expense(date core.Date, desc, amount string, category *string) core.Expense {
	return core.Expense{
		Date:        date,
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
	}
}

func seed(t *testing.T, repo *SQLiteRepository) []core.Expense {
	t.Helper()
	saved, err := repo.InsertExpenses(context.Background(), []core.Expense{
		expense(core.NewDate(2025, 1, 10), "MERCADONA VALENCIA", "-52.30", core.StringPtr("Alimentación")),
		expense(core.NewDate(2025, 2, 3), "IBERDROLA CLIENTES", "-80.00", core.StringPtr("Hogar")),
		expense(core.NewDate(2025, 2, 28), "NOMINA ACME", "1500.00", core.StringPtr("Ingresos")),
		expense(core.NewDate(2024, 12, 24), "REGALO", "-20", nil),
	})
	if err != nil {
		t.Fatalf("InsertExpenses: %v", err)
	}
	return saved
}

func TestInsertAndList(t *testing.T) {
	repo := newTestRepo(t)
	saved := seed(t, repo)

	if len(saved) != 4 {
		t.Fatalf("saved %d expenses, want 4", len(saved))
	}
	for _, e := range saved {
		if e.ID == 0 || e.CreatedAt.IsZero() || e.IsCorrected {
			t.Fatalf("unexpected stored expense: %+v", e)
		}
	}

	list, err := repo.ListExpenses(context.Background(), core.ExpenseFilter{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"NOMINA ACME", "IBERDROLA CLIENTES", "MERCADONA VALENCIA", "REGALO"}
	if len(list) != len(want) {
		t.Fatalf("listed %d, want %d", len(list), len(want))
	}
	for i, desc := range want {
		if list[i].Description != desc {
			t.Errorf("position %d = %s, want %s (date desc order)", i, list[i].Description, desc)
		}
	}
	if !list[0].Amount.Equal(decimal.RequireFromString("1500")) {
		t.Errorf("amount round trip = %s", list[0].Amount)
	}
	if list[3].Category != nil {
		t.Errorf("nil category should stay nil, got %v", *list[3].Category)
	}
}

func TestListFilters(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	start := core.NewDate(2025, 2, 1)
	end := core.NewDate(2025, 2, 27)
	tests := []struct {
		name   string
		filter core.ExpenseFilter
		want   int
	}{
		{"category", core.ExpenseFilter{Category: core.StringPtr("Hogar")}, 1},
		{"start date", core.ExpenseFilter{StartDate: &start}, 2},
		{"date range", core.ExpenseFilter{StartDate: &start, EndDate: &end}, 1},
		{"limit", core.ExpenseFilter{Limit: 2}, 2},
		{"skip", core.ExpenseFilter{Skip: 3}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListExpenses(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d rows, want %d", len(got), tt.want)
			}
		})
	}

	if _, err := repo.ListExpenses(ctx, core.ExpenseFilter{Limit: MaxListLimit + 1}); !errors.Is(err, core.ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
}

func TestUpdateExpenseRecordsCorrection(t *testing.T) {
	repo := newTestRepo(t)
	saved := seed(t, repo)
	ctx := context.Background()
	target := saved[0]

	updated, err := repo.UpdateExpense(ctx, target.ID, core.ExpenseUpdate{
		Category:    core.StringPtr("Ocio"),
		Subcategory: core.StringPtr("Cultura"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.CategoryLabel() != "Ocio" || *updated.Subcategory != "Cultura" || !updated.IsCorrected {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if updated.Description != target.Description || !updated.Amount.Equal(target.Amount) || !updated.Date.Equal(target.Date.Time) {
		t.Fatalf("update changed untouched fields: %+v", updated)
	}

	// Second correction of the same description bumps the usage count.
	if _, err := repo.UpdateExpense(ctx, target.ID, core.ExpenseUpdate{Category: core.StringPtr("Alimentación")}); err != nil {
		t.Fatal(err)
	}
	corrections, err := repo.TopCorrections(ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrections))
	}
	c := corrections[0]
	if c.Pattern != "mercadona valencia" || c.Category != "Alimentación" || c.UsageCount != 2 || c.Subcategory != nil {
		t.Fatalf("unexpected correction: %+v", c)
	}
}

func TestUpdateSubcategoryOnly(t *testing.T) {
	repo := newTestRepo(t)
	saved := seed(t, repo)
	ctx := context.Background()

	updated, err := repo.UpdateExpense(ctx, saved[1].ID, core.ExpenseUpdate{Subcategory: core.StringPtr("Suministros")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.IsCorrected {
		t.Fatal("subcategory-only update must not mark the expense corrected")
	}
	if updated.CategoryLabel() != "Hogar" {
		t.Fatalf("category changed to %s", updated.CategoryLabel())
	}
	corrections, _ := repo.TopCorrections(ctx, 10)
	if len(corrections) != 0 {
		t.Fatalf("subcategory-only update recorded %d corrections", len(corrections))
	}
}

func TestNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetExpense(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetExpense: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.UpdateExpense(ctx, 42, core.ExpenseUpdate{Category: core.StringPtr("Ocio")}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("UpdateExpense: expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteExpense(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("DeleteExpense: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteExpense(t *testing.T) {
	repo := newTestRepo(t)
	saved := seed(t, repo)
	ctx := context.Background()

	if err := repo.DeleteExpense(ctx, saved[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteExpense(ctx, saved[0].ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
	list, _ := repo.ListExpenses(ctx, core.ExpenseFilter{})
	if len(list) != 3 {
		t.Fatalf("got %d rows after delete, want 3", len(list))
	}
}

func TestListExpensesInPeriod(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter core.KPIFilter
		want   int
	}{
		{"all time", core.KPIFilter{}, 4},
		{"year", core.KPIFilter{Year: core.IntPtr(2025)}, 3},
		{"year and month", core.KPIFilter{Year: core.IntPtr(2025), Month: core.IntPtr(2)}, 2},
		{"month across years", core.KPIFilter{Month: core.IntPtr(12)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListExpensesInPeriod(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d, want %d", len(got), tt.want)
			}
		})
	}
}
