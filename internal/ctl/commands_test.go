package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
)

// fakeAPI records the last request and answers with canned JSON.
type fakeAPI struct {
	method, path, query string
	body                string
	filename            string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.method, f.path, f.query = r.Method, r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/expenses/import":
			file, header, err := r.FormFile("file")
			if err != nil {
				t.Errorf("form file: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(file)
			f.filename, f.body = header.Filename, string(data)
			_, _ = io.WriteString(w, `{"imported":2,"expenses":[]}`)
		case r.Method == http.MethodGet && r.URL.Path == "/expenses":
			_, _ = io.WriteString(w, `[
				{"id":7,"date":"2025-01-05","description":"MERCADONA","amount":-42.1,"category":"Alimentación","subcategory":"Supermercado","is_corrected":true},
				{"id":8,"date":"2025-01-31","description":"NOMINA","amount":1500,"category":null,"subcategory":null,"is_corrected":false}
			]`)
		case r.Method == http.MethodGet && r.URL.Path == "/expenses/kpis":
			_, _ = io.WriteString(w, `{"total":150,"count":3,"by_category":{"Hogar":100,"Ocio":50},"by_month":{"2025-02":50,"2025-01":100}}`)
		case r.Method == http.MethodPut && r.URL.Path == "/expenses/7":
			data, _ := io.ReadAll(r.Body)
			f.body = string(data)
			_, _ = io.WriteString(w, `{"id":7,"date":"2025-01-05","description":"MERCADONA","amount":-42.1,"category":"Hogar","is_corrected":true}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/expenses/7":
			_, _ = io.WriteString(w, `{"deleted":7}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "expense not found"})
		}
	})
}

func run(t *testing.T, name string, args ...string) (*fakeAPI, string, string, subcommands.ExitStatus) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	var out, errOut bytes.Buffer
	s := &Settings{APIURL: srv.URL, Out: &out, Err: &errOut}
	for _, c := range Commands(s) {
		if c.Name() != name {
			continue
		}
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		c.SetFlags(fs)
		if err := fs.Parse(args); err != nil {
			t.Fatalf("parse %v: %v", args, err)
		}
		status := c.Execute(context.Background(), fs)
		return api, out.String(), errOut.String(), status
	}
	t.Fatalf("no command %q", name)
	return nil, "", "", subcommands.ExitFailure
}

func TestImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enero.csv")
	if err := os.WriteFile(path, []byte("Fecha;Concepto;Importe\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	api, out, _, status := run(t, "import", path)
	if status != subcommands.ExitSuccess {
		t.Fatalf("status %v", status)
	}
	if api.filename != "enero.csv" || !strings.HasPrefix(api.body, "Fecha;") {
		t.Errorf("uploaded %q %q", api.filename, api.body)
	}
	if out != "2 gastos importados correctamente\n" {
		t.Errorf("out = %q", out)
	}

	if _, _, _, status := run(t, "import"); status != subcommands.ExitUsageError {
		t.Errorf("missing file: %v", status)
	}
	if _, _, errOut, status := run(t, "import", filepath.Join(t.TempDir(), "missing.csv")); status != subcommands.ExitFailure || errOut == "" {
		t.Errorf("unreadable file: %v %q", status, errOut)
	}
}

func TestList(t *testing.T) {
	api, out, _, status := run(t, "list", "-category", "Hogar", "-from", "2025-01-01", "-limit", "20")
	if status != subcommands.ExitSuccess {
		t.Fatalf("status %v", status)
	}
	if api.query != "category=Hogar&limit=20&start_date=2025-01-01" {
		t.Errorf("query = %q", api.query)
	}
	for _, want := range []string{"MERCADONA", "-42,10\u00a0€", "Alimentación *", "Sin categoría", "1500,00\u00a0€", "2 registros"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, _, errOut, status := run(t, "list", "-from", "05/01/2025"); status != subcommands.ExitFailure || !strings.Contains(errOut, "invalid date") {
		t.Errorf("bad date: %v %q", status, errOut)
	}
}

func TestKPIs(t *testing.T) {
	api, out, _, status := run(t, "kpis", "-year", "2025", "-month", "1")
	if status != subcommands.ExitSuccess {
		t.Fatalf("status %v", status)
	}
	if api.query != "month=1&year=2025" {
		t.Errorf("query = %q", api.query)
	}
	for _, want := range []string{"150,00\u00a0€", "50,00\u00a0€", "Hogar", "67%", "33%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "2025-01") > strings.Index(out, "2025-02") {
		t.Error("months should be listed in order")
	}

	if _, _, _, status := run(t, "kpis", "-month", "13"); status != subcommands.ExitFailure {
		t.Errorf("invalid month: %v", status)
	}
}

func TestCategorize(t *testing.T) {
	api, out, _, status := run(t, "categorize", "7", "Hogar")
	if status != subcommands.ExitSuccess {
		t.Fatalf("status %v", status)
	}
	if api.body != `{"category":"Hogar"}` {
		t.Errorf("body = %s", api.body)
	}
	if !strings.Contains(out, "Hogar") {
		t.Errorf("out = %q", out)
	}

	if _, _, _, status := run(t, "categorize", "x", "Hogar"); status != subcommands.ExitFailure {
		t.Errorf("bad id: %v", status)
	}
	if _, _, _, status := run(t, "categorize", "7", " "); status != subcommands.ExitFailure {
		t.Errorf("blank category: %v", status)
	}
}

func TestDelete(t *testing.T) {
	api, out, _, status := run(t, "delete", "7")
	if status != subcommands.ExitSuccess || api.method != http.MethodDelete || out != "deleted 7\n" {
		t.Fatalf("status %v out %q", status, out)
	}
	_, _, errOut, status := run(t, "delete", "8")
	if status != subcommands.ExitFailure || !strings.Contains(errOut, "expense 8 not found") {
		t.Errorf("missing row: %v %q", status, errOut)
	}
}
