// Package client talks to the expenses REST API. It does no retries and no
// caching; every non-2xx reply becomes an *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gastos/internal/core"
)

const (
	DefaultBaseURL = "http://localhost:8000"

	maxErrorBody = 4 << 10
	userAgent    = "gastos-client/1.0"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default transport, e.g. to set a timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for the API at baseURL. An empty baseURL uses
// DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Import uploads a bank export as the multipart field "file".
func (c *Client) Import(ctx context.Context, filename string, r io.Reader) (core.ImportResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return core.ImportResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return core.ImportResult{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return core.ImportResult{}, fmt.Errorf("close multipart body: %w", err)
	}

	var result core.ImportResult
	err = c.do(ctx, http.MethodPost, "/expenses/import", nil, &body, mw.FormDataContentType(), &result)
	return result, err
}

// ListExpenses returns the first page of expenses, newest first.
func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return c.SearchExpenses(ctx, core.ExpenseFilter{})
}

// SearchExpenses lists expenses narrowed by filter. Zero fields are not sent.
func (c *Client) SearchExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error) {
	q := url.Values{}
	if filter.Skip > 0 {
		q.Set("skip", strconv.Itoa(filter.Skip))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Category != nil {
		q.Set("category", *filter.Category)
	}
	if filter.StartDate != nil {
		q.Set("start_date", filter.StartDate.String())
	}
	if filter.EndDate != nil {
		q.Set("end_date", filter.EndDate.String())
	}

	var expenses []core.Expense
	if err := c.do(ctx, http.MethodGet, "/expenses", q, nil, "", &expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// UpdateExpense sends only the non-nil fields of update.
func (c *Client) UpdateExpense(ctx context.Context, id int64, update core.ExpenseUpdate) (core.Expense, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return core.Expense{}, fmt.Errorf("encode update: %w", err)
	}
	var expense core.Expense
	err = c.do(ctx, http.MethodPut, expensePath(id), nil, bytes.NewReader(payload), "application/json", &expense)
	return expense, err
}

func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, expensePath(id), nil, nil, "", nil)
}

// GetKPIs fetches the spending summary. Nil filter fields are not sent.
func (c *Client) GetKPIs(ctx context.Context, filter core.KPIFilter) (core.KPISummary, error) {
	q := url.Values{}
	if filter.Year != nil {
		q.Set("year", strconv.Itoa(*filter.Year))
	}
	if filter.Month != nil {
		q.Set("month", strconv.Itoa(*filter.Month))
	}
	var summary core.KPISummary
	err := c.do(ctx, http.MethodGet, "/expenses/kpis", q, nil, "", &summary)
	return summary, err
}

func expensePath(id int64) string {
	return "/expenses/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func newAPIError(method, path string, resp *http.Response) *APIError {
	apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			apiErr.Detail = s
		} else {
			apiErr.Detail = string(body.Detail)
		}
		return apiErr
	}
	apiErr.Detail = strings.TrimSpace(string(data))
	return apiErr
}
