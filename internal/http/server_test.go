package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gastos/internal/core"
	"gastos/internal/imports"
	applog "gastos/internal/log"

	"github.com/shopspring/decimal"
)

type fakeService struct {
	expenses   map[int64]core.Expense
	lastFilter core.ExpenseFilter
	lastKPI    core.KPIFilter
	lastUpdate core.ExpenseUpdate
	importErr  error
	importBody string
}

func newFakeService() *fakeService {
	return &fakeService{expenses: map[int64]core.Expense{
		1: {ID: 1, Date: core.NewDate(2025, 1, 5), Description: "MERCADONA", Amount: decimal.RequireFromString("-42.10"), Category: core.StringPtr("Alimentación")},
	}}
}

func (f *fakeService) Import(_ context.Context, filename string, r io.Reader) (core.ImportResult, error) {
	if f.importErr != nil {
		return core.ImportResult{}, f.importErr
	}
	b, _ := io.ReadAll(r)
	f.importBody = string(b)
	e := core.Expense{ID: 2, Date: core.NewDate(2025, 1, 6), Description: filename, Amount: decimal.RequireFromString("-1")}
	return core.ImportResult{Imported: 1, Expenses: []core.Expense{e}}, nil
}

func (f *fakeService) List(_ context.Context, filter core.ExpenseFilter) ([]core.Expense, error) {
	f.lastFilter = filter
	var out []core.Expense
	for _, e := range f.expenses {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeService) Update(_ context.Context, id int64, u core.ExpenseUpdate) (core.Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("update %d: %w", id, core.ErrNotFound)
	}
	f.lastUpdate = u
	if u.Category != nil {
		e.Category = u.Category
		e.IsCorrected = true
	}
	if u.Subcategory != nil {
		e.Subcategory = u.Subcategory
	}
	f.expenses[id] = e
	return e, nil
}

func (f *fakeService) Delete(_ context.Context, id int64) error {
	if _, ok := f.expenses[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.expenses, id)
	return nil
}

func (f *fakeService) KPIs(_ context.Context, filter core.KPIFilter) (core.KPISummary, error) {
	f.lastKPI = filter
	s := core.NewKPISummary()
	s.Total = decimal.RequireFromString("42.1")
	s.Count = 1
	return s, nil
}

func newTestServer(t *testing.T, svc ExpenseAPI, cfg Config) *Server {
	t.Helper()
	srv := NewServer(cfg, svc, applog.New(applog.Config{Output: io.Discard}))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func detail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %q", rr.Body.String())
	}
	return body.Detail
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	} else {
		_ = mw.WriteField("other", "x")
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHealthAndHeaders(t *testing.T) {
	srv := newTestServer(t, newFakeService(), Config{})
	rr := do(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("health = %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing middleware headers: %v", rr.Header())
	}
}

func TestReadyz(t *testing.T) {
	srv := newTestServer(t, newFakeService(), Config{ReadyCheck: func(context.Context) error { return errors.New("db down") }})
	if rr := do(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, newFakeService(), Config{})
	req := httptest.NewRequest(http.MethodOptions, "/expenses/1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rr := do(srv, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestImport(t *testing.T) {
	svc := newFakeService()
	srv := newTestServer(t, svc, Config{})

	body, ctype := multipartBody(t, "file", "enero.csv", "fecha;concepto;importe\n")
	req := httptest.NewRequest(http.MethodPost, "/expenses/import", body)
	req.Header.Set("Content-Type", ctype)
	rr := do(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rr.Code, rr.Body.String())
	}
	var result core.ImportResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Imported != len(result.Expenses) || result.Expenses[0].Description != "enero.csv" {
		t.Errorf("unexpected result %+v", result)
	}
	if svc.importBody != "fecha;concepto;importe\n" {
		t.Errorf("service saw %q", svc.importBody)
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		content    string
		serviceErr error
		maxUpload  int64
		wantStatus int
	}{
		{"missing file", "", "", nil, 0, http.StatusBadRequest},
		{"unsupported", "file", "x", fmt.Errorf("%w: .pdf", imports.ErrUnsupportedFile), 0, http.StatusBadRequest},
		{"missing columns", "file", "x", imports.ErrMissingColumns, 0, http.StatusBadRequest},
		{"too large", "file", strings.Repeat("a", 4096), nil, 512, http.StatusRequestEntityTooLarge},
		{"storage failure", "file", "x", errors.New("disk full"), 0, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.importErr = tt.serviceErr
			srv := newTestServer(t, svc, Config{MaxUploadBytes: tt.maxUpload})

			body, ctype := multipartBody(t, tt.field, "f.csv", tt.content)
			req := httptest.NewRequest(http.MethodPost, "/expenses/import", body)
			req.Header.Set("Content-Type", ctype)
			rr := do(srv, req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			d := detail(t, rr)
			if d == "" {
				t.Error("empty detail")
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(d, "disk full") {
				t.Error("internal error leaked to client")
			}
		})
	}
}

func TestListExpenses(t *testing.T) {
	svc := newFakeService()
	srv := newTestServer(t, svc, Config{})

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/expenses?skip=5&limit=10&category=Ocio&start_date=2025-01-01&end_date=2025-01-31", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list = %d %s", rr.Code, rr.Body.String())
	}
	f := svc.lastFilter
	if f.Skip != 5 || f.Limit != 10 || f.Category == nil || *f.Category != "Ocio" ||
		f.StartDate == nil || f.StartDate.String() != "2025-01-01" || f.EndDate == nil {
		t.Errorf("unexpected filter %+v", f)
	}
	var got []core.Expense
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil || len(got) != 1 {
		t.Fatalf("body %s: %v", rr.Body.String(), err)
	}

	for _, q := range []string{"limit=0", "limit=abc", "skip=-1", "start_date=05/01/2025"} {
		if rr := do(srv, httptest.NewRequest(http.MethodGet, "/expenses?"+q, nil)); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", q, rr.Code)
		}
	}
}

func TestUpdateExpense(t *testing.T) {
	svc := newFakeService()
	srv := newTestServer(t, svc, Config{})

	req := httptest.NewRequest(http.MethodPut, "/expenses/1", strings.NewReader(`{"category":"Ocio"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := do(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rr.Code, rr.Body.String())
	}
	var e core.Expense
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	if e.CategoryLabel() != "Ocio" || !e.IsCorrected || svc.lastUpdate.Subcategory != nil {
		t.Errorf("unexpected expense %+v / update %+v", e, svc.lastUpdate)
	}

	tests := []struct {
		path, body string
		want       int
	}{
		{"/expenses/99", `{"category":"Ocio"}`, http.StatusNotFound},
		{"/expenses/abc", `{"category":"Ocio"}`, http.StatusBadRequest},
		{"/expenses/1", `{}`, http.StatusOK},
		{"/expenses/1", `{"category":"  "}`, http.StatusOK},
		{"/expenses/99", `{}`, http.StatusNotFound},
		{"/expenses/1", `{"category":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := do(srv, httptest.NewRequest(http.MethodPut, tt.path, strings.NewReader(tt.body)))
		if rr.Code != tt.want {
			t.Errorf("PUT %s %s = %d, want %d", tt.path, tt.body, rr.Code, tt.want)
		}
	}
}

func TestDeleteExpense(t *testing.T) {
	svc := newFakeService()
	srv := newTestServer(t, svc, Config{})

	rr := do(srv, httptest.NewRequest(http.MethodDelete, "/expenses/1", nil))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"deleted":1}` {
		t.Fatalf("delete = %d %s", rr.Code, rr.Body.String())
	}
	rr = do(srv, httptest.NewRequest(http.MethodDelete, "/expenses/1", nil))
	if rr.Code != http.StatusNotFound || detail(t, rr) != core.ErrNotFound.Error() {
		t.Fatalf("second delete = %d %s", rr.Code, rr.Body.String())
	}
}

func TestKPIs(t *testing.T) {
	svc := newFakeService()
	srv := newTestServer(t, svc, Config{})

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/expenses/kpis?year=2025&month=2", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("kpis = %d %s", rr.Code, rr.Body.String())
	}
	if svc.lastKPI.Year == nil || *svc.lastKPI.Year != 2025 || svc.lastKPI.Month == nil || *svc.lastKPI.Month != 2 {
		t.Errorf("unexpected filter %+v", svc.lastKPI)
	}
	if !strings.Contains(rr.Body.String(), `"total":42.1`) {
		t.Errorf("body %s", rr.Body.String())
	}

	for _, q := range []string{"month=13", "year=abc", "month=0"} {
		if rr := do(srv, httptest.NewRequest(http.MethodGet, "/expenses/kpis?"+q, nil)); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", q, rr.Code)
		}
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, newFakeService(), Config{RateLimitPerMinute: 1})
	if rr := do(srv, httptest.NewRequest(http.MethodGet, "/health", nil)); rr.Code != http.StatusOK {
		t.Fatalf("first = %d", rr.Code)
	}
	rr := do(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second = %d", rr.Code)
	}
	if !strings.Contains(detail(t, rr), "Rate limit") {
		t.Errorf("detail %q", rr.Body.String())
	}
}

func TestUnknownRouteIsJSON(t *testing.T) {
	srv := newTestServer(t, newFakeService(), Config{})
	rr := do(srv, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound || detail(t, rr) == "" {
		t.Fatalf("status %d body %s", rr.Code, rr.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, newFakeService(), Config{})
	do(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	rr := do(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "http_requests_total 2") {
		t.Fatalf("metrics body %s", rr.Body.String())
	}
}
