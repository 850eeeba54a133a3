package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const (
	DefaultListLimit = 500
	MaxListLimit     = 5000
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertExpenses stores a batch of expenses in one transaction and returns
// them with their assigned ids and timestamps.
func (r *SQLiteRepository) InsertExpenses(ctx context.Context, expenses []core.Expense) ([]core.Expense, error) {
	if len(expenses) == 0 {
		return []core.Expense{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	now := r.now().Format(time.RFC3339Nano)
	saved := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		row, err := q.CreateExpense(ctx, CreateExpenseParams{
			Date:        e.Date.String(),
			Description: e.Description,
			Amount:      e.Amount.String(),
			Category:    nullString(e.Category),
			Subcategory: nullString(e.Subcategory),
			CreatedAt:   now,
		})
		if err != nil {
			return nil, fmt.Errorf("create expense %q: %w", e.Description, err)
		}
		expense, err := toExpense(row)
		if err != nil {
			return nil, err
		}
		saved = append(saved, expense)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Expenses saved to SQLite", "count", len(saved))
	return saved, nil
}

// ListExpenses returns expenses newest first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit < 1 || limit > MaxListLimit || filter.Skip < 0 {
		return nil, fmt.Errorf("%w: skip=%d limit=%d", core.ErrInvalidPage, filter.Skip, limit)
	}

	params := ListExpensesParams{
		Category: nullString(filter.Category),
		Limit:    int64(limit),
		Offset:   int64(filter.Skip),
	}
	if filter.StartDate != nil {
		params.StartDate = sql.NullString{String: filter.StartDate.String(), Valid: true}
	}
	if filter.EndDate != nil {
		params.EndDate = sql.NullString{String: filter.EndDate.String(), Valid: true}
	}

	rows, err := r.queries.ListExpenses(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return toExpenses(rows)
}

// ListExpensesInPeriod returns every expense in the filter's year/month scope.
func (r *SQLiteRepository) ListExpensesInPeriod(ctx context.Context, filter core.KPIFilter) ([]core.Expense, error) {
	var params ListExpensesInPeriodParams
	if filter.Year != nil {
		params.Year = sql.NullString{String: fmt.Sprintf("%04d", *filter.Year), Valid: true}
	}
	if filter.Month != nil {
		params.Month = sql.NullString{String: fmt.Sprintf("%02d", *filter.Month), Valid: true}
	}

	rows, err := r.queries.ListExpensesInPeriod(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list expenses in period: %w", err)
	}
	return toExpenses(rows)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return toExpense(row)
}

// UpdateExpense applies a partial update. Setting a category marks the
// expense as corrected and records the correction for future imports, all
// in the same transaction.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, update core.ExpenseUpdate) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	current, err := q.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}

	now := r.now().Format(time.RFC3339Nano)
	params := UpdateExpenseParams{
		Category:    current.Category,
		Subcategory: current.Subcategory,
		IsCorrected: current.IsCorrected,
		UpdatedAt:   now,
		ID:          id,
	}
	if update.Category != nil {
		params.Category = sql.NullString{String: *update.Category, Valid: true}
		params.IsCorrected = 1

		if err := q.UpsertCorrection(ctx, UpsertCorrectionParams{
			DescriptionPattern: core.CorrectionPattern(current.Description),
			Category:           *update.Category,
			Subcategory:        nullString(update.Subcategory),
			CreatedAt:          now,
		}); err != nil {
			return core.Expense{}, fmt.Errorf("upsert correction: %w", err)
		}
	}
	if update.Subcategory != nil {
		params.Subcategory = sql.NullString{String: *update.Subcategory, Valid: true}
	}

	row, err := q.UpdateExpense(ctx, params)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit transaction: %w", err)
	}
	return toExpense(row)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	affected, err := r.queries.DeleteExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// TopCorrections returns the most used corrections first.
func (r *SQLiteRepository) TopCorrections(ctx context.Context, limit int) ([]core.Correction, error) {
	rows, err := r.queries.TopCorrections(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	corrections := make([]core.Correction, 0, len(rows))
	for _, row := range rows {
		createdAt, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
		corrections = append(corrections, core.Correction{
			ID:          row.ID,
			Pattern:     row.DescriptionPattern,
			Category:    row.Category,
			Subcategory: stringPtr(row.Subcategory),
			UsageCount:  int(row.UsageCount),
			CreatedAt:   createdAt,
		})
	}
	return corrections, nil
}

func toExpenses(rows []ExpenseRow) ([]core.Expense, error) {
	expenses := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := toExpense(row)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

func toExpense(row ExpenseRow) (core.Expense, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", row.ID, err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: parse amount %q: %w", row.ID, row.Amount, err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, row.UpdatedAt)

	return core.Expense{
		ID:          row.ID,
		Date:        date,
		Description: row.Description,
		Amount:      amount,
		Category:    stringPtr(row.Category),
		Subcategory: stringPtr(row.Subcategory),
		IsCorrected: row.IsCorrected != 0,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
