package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gastos/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func TestImport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/expenses/import" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		f, h, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		if h.Filename != "enero.csv" || string(data) != "a;b;c\n" {
			t.Errorf("got %q %q", h.Filename, data)
		}
		_, _ = w.Write([]byte(`{"imported":1,"expenses":[{"id":7,"date":"2025-01-05","description":"BAR","amount":-3.5,"category":"Ocio","subcategory":null,"is_corrected":false}]}`))
	})

	res, err := c.Import(context.Background(), "enero.csv", strings.NewReader("a;b;c\n"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != len(res.Expenses) || res.Expenses[0].ID != 7 || res.Expenses[0].Amount.String() != "-3.5" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSearchExpensesQuery(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	})

	start := core.NewDate(2025, 1, 1)
	_, err := c.SearchExpenses(context.Background(), core.ExpenseFilter{Limit: 20, Category: core.StringPtr("Hogar"), StartDate: &start})
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "category=Hogar&limit=20&start_date=2025-01-01" {
		t.Errorf("query = %q", gotQuery)
	}

	if _, err := c.ListExpenses(context.Background()); err != nil || gotQuery != "" {
		t.Errorf("plain list sent %q (%v)", gotQuery, err)
	}
}

func TestUpdateOmitsNilFields(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/expenses/3" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"id":3,"date":"2025-01-05","description":"x","amount":-1,"category":"Ocio","is_corrected":true}`))
	})

	e, err := c.UpdateExpense(context.Background(), 3, core.ExpenseUpdate{Category: core.StringPtr("Ocio")})
	if err != nil {
		t.Fatal(err)
	}
	if _, sent := body["subcategory"]; sent || body["category"] != "Ocio" {
		t.Errorf("body = %v", body)
	}
	if !e.IsCorrected || e.CategoryLabel() != "Ocio" {
		t.Errorf("expense = %+v", e)
	}
}

func TestGetKPIs(t *testing.T) {
	tests := []struct {
		filter core.KPIFilter
		want   string
	}{
		{core.KPIFilter{}, ""},
		{core.KPIFilter{Year: core.IntPtr(2025)}, "year=2025"},
		{core.KPIFilter{Year: core.IntPtr(2025), Month: core.IntPtr(2)}, "month=2&year=2025"},
	}
	for _, tt := range tests {
		var gotQuery string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"total":100,"count":2,"by_category":{"Hogar":100},"by_month":{"2025-01":100}}`))
		})
		k, err := c.GetKPIs(context.Background(), tt.filter)
		if err != nil {
			t.Fatal(err)
		}
		if gotQuery != tt.want || k.Count != 2 || k.Total.String() != "100" {
			t.Errorf("query %q, summary %+v", gotQuery, k)
		}
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/expenses/9":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"expense not found"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}
	})

	err := c.DeleteExpense(context.Background(), 9)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Method != http.MethodDelete || apiErr.Path != "/expenses/9" || apiErr.StatusCode != 404 || apiErr.Detail != "expense not found" {
		t.Errorf("unexpected %+v", apiErr)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should be true")
	}

	_, err = c.ListExpenses(context.Background())
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || apiErr.Detail != "upstream down" {
		t.Errorf("unexpected %v", err)
	}
}

func TestDeleteSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"deleted":4}`))
	})
	if err := c.DeleteExpense(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
}
