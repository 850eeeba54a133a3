// Package http serves the expenses REST API.
//
// This file implements parsing and validation of path, query and body
// parameters shared by the handlers.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gastos/internal/core"

	"github.com/go-chi/chi/v5"
)

const maxUpdateBody = 64 << 10

// ParseID reads the {id} path parameter.
func ParseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", raw)
	}
	return id, nil
}

// ParseExpenseFilter reads skip, limit, category, start_date and end_date.
// Absent parameters keep their zero value; limit 0 means the default page.
func ParseExpenseFilter(query url.Values) (core.ExpenseFilter, error) {
	var filter core.ExpenseFilter

	if v := strings.TrimSpace(query.Get("skip")); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil || skip < 0 {
			return filter, fmt.Errorf("%w: skip must be a non-negative integer", core.ErrInvalidPage)
		}
		filter.Skip = skip
	}
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("%w: limit must be a positive integer", core.ErrInvalidPage)
		}
		filter.Limit = limit
	}
	if v := sanitizeInput(query.Get("category")); v != "" {
		filter.Category = &v
	}
	for _, p := range []struct {
		name string
		dst  **core.Date
	}{
		{"start_date", &filter.StartDate},
		{"end_date", &filter.EndDate},
	} {
		v := strings.TrimSpace(query.Get(p.name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return filter, fmt.Errorf("%s: %w", p.name, err)
		}
		*p.dst = &d
	}
	return filter, nil
}

// ParseKPIFilter reads the optional year and month parameters.
func ParseKPIFilter(query url.Values) (core.KPIFilter, error) {
	var filter core.KPIFilter
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("%w: %q", core.ErrInvalidYear, v)
		}
		filter.Year = &y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("%w: %q", core.ErrInvalidMonth, v)
		}
		filter.Month = &m
	}
	return filter, filter.Validate()
}

// RequestBodyParser reads a JSON or form-encoded body once and exposes its
// fields, telling absent keys apart from empty ones.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxUpdateBody))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
		}
		return p.err
	}
	if trimmed[0] == '[' {
		p.err = fmt.Errorf("invalid body: expected an object")
		return p.err
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Optional returns the sanitized value of key, or nil when the key is absent
// or JSON null.
func (p *RequestBodyParser) Optional(key string) *string {
	if p.jsonData != nil {
		val, ok := p.jsonData[key]
		if !ok || val == nil {
			return nil
		}
		s := sanitizeInput(stringValue(val))
		return &s
	}
	if p.formData != nil {
		if _, ok := p.formData[key]; !ok {
			return nil
		}
		s := sanitizeInput(p.formData.Get(key))
		return &s
	}
	return nil
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// ParseExpenseUpdate reads {category?, subcategory?} from the request body.
func ParseExpenseUpdate(r *http.Request) (core.ExpenseUpdate, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.ExpenseUpdate{}, err
	}
	update := core.ExpenseUpdate{
		Category:    p.Optional("category"),
		Subcategory: p.Optional("subcategory"),
	}
	return update.Normalize(), nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
