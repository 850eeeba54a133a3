package adapters

import (
	"context"

	"gastos/internal/client"
	"gastos/internal/core"
)

// APILister adapts the REST client to the paging interface the mirror
// worker uses, so the worker never opens the API's database.
type APILister struct {
	api *client.Client
}

func NewAPILister(api *client.Client) *APILister {
	return &APILister{api: api}
}

// ListExpenses implements worker.ExpenseLister
func (a *APILister) ListExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error) {
	return a.api.SearchExpenses(ctx, filter)
}
