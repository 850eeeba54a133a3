package sheets

import (
	"context"

	"gastos/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseMirror keeps a copy of the stored expenses somewhere people
	// can browse them. Both operations are idempotent.
	ExpenseMirror interface {
		// Upsert writes each expense, replacing any row with the same id.
		Upsert(ctx context.Context, expenses []core.Expense) error
		// Remove deletes the row for id; a missing row is not an error.
		Remove(ctx context.Context, id int64) error
	}
)

// Header is the column layout of a mirrored expense row.
var Header = []string{"ID", "Fecha", "Descripción", "Importe", "Categoría", "Subcategoría", "Corregido"}

// Row renders an expense in Header order.
func Row(e core.Expense) []any {
	corrected := "No"
	if e.IsCorrected {
		corrected = "Sí"
	}
	return []any{
		e.ID,
		e.Date.String(),
		e.Description,
		e.Amount.InexactFloat64(),
		deref(e.Category),
		deref(e.Subcategory),
		corrected,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
