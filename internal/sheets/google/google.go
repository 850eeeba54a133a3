package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gastos/internal/core"
	ports "gastos/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const DefaultSheetName = "Gastos"

// Ensure interface conformance
var _ ports.ExpenseMirror = (*Client)(nil)

// valuesAPI is the slice of the Sheets API the mirror uses. Rows are 1-based.
type valuesAPI interface {
	Read(ctx context.Context, rng string) ([][]any, error)
	BatchUpdate(ctx context.Context, data []*gsheet.ValueRange) error
	Append(ctx context.Context, rng string, rows [][]any) error
	DeleteRow(ctx context.Context, sheet string, row int) error
}

// Client mirrors expenses into one sheet, one row per expense keyed by the
// id in column A.
type Client struct {
	api   valuesAPI
	sheet string
	// Writes are serialized so concurrent upserts cannot both append the same id.
	mu sync.Mutex
}

// NewFromEnv creates a Sheets client using a service account.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Gastos").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	sheet := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	return New(ctx, spreadsheetID, sheet)
}

func New(ctx context.Context, spreadsheetID, sheet string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceAPI{svc: svc, spreadsheetID: spreadsheetID}, sheet), nil
}

func newClient(api valuesAPI, sheet string) *Client {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &Client{api: api, sheet: sheet}
}

// newSheetsService authenticates with a service account when one is
// configured, otherwise with a saved OAuth user token.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var auth goption.ClientOption
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		auth = goption.WithCredentialsJSON([]byte(serviceAccountJSON))
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		auth = goption.WithCredentialsJSON(data)
	default:
		ts, ok, err := userTokenSource(ctx)
		if !ok {
			return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS, or an OAuth client and token)")
		}
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Using OAuth user token", "path", TokenFile())
		auth = goption.WithTokenSource(ts)
	}

	service, err := gsheet.NewService(ctx, auth, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) Upsert(ctx context.Context, expenses []core.Expense) error {
	if len(expenses) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := c.rowIndex(ctx)
	if err != nil {
		return err
	}

	var updates []*gsheet.ValueRange
	var appends [][]any
	for _, e := range expenses {
		if row, ok := index[e.ID]; ok {
			updates = append(updates, &gsheet.ValueRange{
				Range:  fmt.Sprintf("%s!A%d:G%d", c.sheet, row, row),
				Values: [][]any{ports.Row(e)},
			})
			continue
		}
		appends = append(appends, ports.Row(e))
	}

	if len(updates) > 0 {
		if err := c.api.BatchUpdate(ctx, updates); err != nil {
			return fmt.Errorf("update rows in %s: %w", c.sheet, err)
		}
	}
	if len(appends) > 0 {
		if err := c.api.Append(ctx, c.sheet+"!A:G", appends); err != nil {
			return fmt.Errorf("append rows to %s: %w", c.sheet, err)
		}
	}

	slog.InfoContext(ctx, "Expenses mirrored to sheet",
		"sheet", c.sheet,
		"updated", len(updates),
		"appended", len(appends))
	return nil
}

func (c *Client) Remove(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := c.rowIndex(ctx)
	if err != nil {
		return err
	}
	row, ok := index[id]
	if !ok {
		slog.DebugContext(ctx, "Expense not in sheet, nothing to remove", "id", id)
		return nil
	}
	if err := c.api.DeleteRow(ctx, c.sheet, row); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", row, c.sheet, err)
	}
	return nil
}

// rowIndex maps expense ids to sheet rows, writing the header first when
// the sheet is empty.
func (c *Client) rowIndex(ctx context.Context) (map[int64]int, error) {
	values, err := c.api.Read(ctx, c.sheet+"!A:A")
	if err != nil {
		return nil, fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}
	if len(values) == 0 {
		header := make([]any, len(ports.Header))
		for i, h := range ports.Header {
			header[i] = h
		}
		err := c.api.BatchUpdate(ctx, []*gsheet.ValueRange{{
			Range:  c.sheet + "!A1:G1",
			Values: [][]any{header},
		}})
		if err != nil {
			return nil, fmt.Errorf("write header to %s: %w", c.sheet, err)
		}
		return map[int64]int{}, nil
	}
	return indexIDs(values), nil
}

func indexIDs(values [][]any) map[int64]int {
	index := make(map[int64]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
		if err != nil {
			// Header or foreign content.
			continue
		}
		index[id] = i + 1
	}
	return index
}

// serviceAPI implements valuesAPI on the Sheets v4 service.
type serviceAPI struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

func (s *serviceAPI) Read(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceAPI) BatchUpdate(ctx context.Context, data []*gsheet.ValueRange) error {
	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}
	_, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (s *serviceAPI) Append(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (s *serviceAPI) DeleteRow(ctx context.Context, sheet string, row int) error {
	sheetID, err := s.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (s *serviceAPI) sheetID(ctx context.Context, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.sheetIDs[title]; ok {
		return id, nil
	}

	spreadsheet, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	s.sheetIDs = make(map[string]int64, len(spreadsheet.Sheets))
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil {
			s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok := s.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", title)
	}
	return id, nil
}
