package google

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheet keeps a single sheet's cells as rows of values.
type fakeSheet struct {
	rows    [][]any
	deletes []int
	readErr error
}

func (f *fakeSheet) Read(_ context.Context, rng string) ([][]any, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out [][]any
	for _, r := range f.rows {
		if len(r) == 0 {
			out = append(out, nil)
			continue
		}
		out = append(out, []any{fmt.Sprint(r[0])})
	}
	return out, nil
}

func (f *fakeSheet) BatchUpdate(_ context.Context, data []*gsheet.ValueRange) error {
	for _, vr := range data {
		// "Gastos!A3:G3" -> row 3
		cell := vr.Range[strings.Index(vr.Range, "!A")+2:]
		row, err := strconv.Atoi(cell[:strings.Index(cell, ":")])
		if err != nil {
			return err
		}
		for len(f.rows) < row {
			f.rows = append(f.rows, nil)
		}
		f.rows[row-1] = vr.Values[0]
	}
	return nil
}

func (f *fakeSheet) Append(_ context.Context, _ string, rows [][]any) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeSheet) DeleteRow(_ context.Context, _ string, row int) error {
	f.deletes = append(f.deletes, row)
	f.rows = append(f.rows[:row-1], f.rows[row:]...)
	return nil
}

func expense(id int64, desc, amount string) core.Expense {
	return core.Expense{
		ID:          id,
		Date:        core.NewDate(2025, 1, int(id)),
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Category:    core.StringPtr("Otros"),
	}
}

func TestUpsertWritesHeaderAndAppends(t *testing.T) {
	sheet := &fakeSheet{}
	c := newClient(sheet, "")

	err := c.Upsert(context.Background(), []core.Expense{expense(1, "A", "-1"), expense(2, "B", "-2")})
	if err != nil {
		t.Fatal(err)
	}
	if len(sheet.rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(sheet.rows))
	}
	if sheet.rows[0][0] != "ID" || sheet.rows[0][2] != "Descripción" {
		t.Errorf("unexpected header %v", sheet.rows[0])
	}
	if sheet.rows[2][2] != "B" || sheet.rows[2][3] != -2.0 {
		t.Errorf("unexpected row %v", sheet.rows[2])
	}
}

func TestUpsertReplacesExistingRow(t *testing.T) {
	sheet := &fakeSheet{}
	c := newClient(sheet, "Gastos")
	ctx := context.Background()
	_ = c.Upsert(ctx, []core.Expense{expense(1, "A", "-1"), expense(2, "B", "-2")})

	e := expense(2, "B", "-2")
	e.Category = core.StringPtr("Ocio")
	e.IsCorrected = true
	if err := c.Upsert(ctx, []core.Expense{e, expense(3, "C", "-3")}); err != nil {
		t.Fatal(err)
	}
	if len(sheet.rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(sheet.rows))
	}
	if sheet.rows[2][4] != "Ocio" || sheet.rows[2][6] != "Sí" {
		t.Errorf("row for id 2 not replaced: %v", sheet.rows[2])
	}
}

func TestRemove(t *testing.T) {
	sheet := &fakeSheet{}
	c := newClient(sheet, "Gastos")
	ctx := context.Background()
	_ = c.Upsert(ctx, []core.Expense{expense(1, "A", "-1"), expense(2, "B", "-2")})

	if err := c.Remove(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if len(sheet.deletes) != 1 || sheet.deletes[0] != 2 {
		t.Fatalf("deleted rows %v, want [2]", sheet.deletes)
	}
	if err := c.Remove(ctx, 99); err != nil {
		t.Fatalf("missing id should be a no-op: %v", err)
	}
	if len(sheet.deletes) != 1 {
		t.Fatal("missing id deleted a row")
	}
}

func TestReadErrorPropagates(t *testing.T) {
	c := newClient(&fakeSheet{readErr: errors.New("quota")}, "Gastos")
	if err := c.Upsert(context.Background(), []core.Expense{expense(1, "A", "-1")}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "", "")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")
	_, err := New(context.Background(), "sheet-id", "")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIndexIDs(t *testing.T) {
	idx := indexIDs([][]any{{"ID"}, {"4"}, {}, {" 9 "}, {"nota"}})
	if len(idx) != 2 || idx[4] != 2 || idx[9] != 4 {
		t.Fatalf("unexpected index %v", idx)
	}
}
