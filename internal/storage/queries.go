package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ExpenseRow mirrors a row of the expenses table.
type ExpenseRow struct {
	ID          int64
	Date        string
	Description string
	Amount      string
	Category    sql.NullString
	Subcategory sql.NullString
	IsCorrected int64
	CreatedAt   string
	UpdatedAt   string
}

// CorrectionRow mirrors a row of the corrections table.
type CorrectionRow struct {
	ID                 int64
	DescriptionPattern string
	Category           string
	Subcategory        sql.NullString
	UsageCount         int64
	CreatedAt          string
}

const expenseColumns = `id, date, description, amount, category, subcategory, is_corrected, created_at, updated_at`

func scanExpense(row interface{ Scan(...interface{}) error }) (ExpenseRow, error) {
	var i ExpenseRow
	err := row.Scan(
		&i.ID,
		&i.Date,
		&i.Description,
		&i.Amount,
		&i.Category,
		&i.Subcategory,
		&i.IsCorrected,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (date, description, amount, category, subcategory, is_corrected, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 0, ?, ?)
RETURNING ` + expenseColumns

type CreateExpenseParams struct {
	Date        string
	Description string
	Amount      string
	Category    sql.NullString
	Subcategory sql.NullString
	CreatedAt   string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (ExpenseRow, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.Date,
		arg.Description,
		arg.Amount,
		arg.Category,
		arg.Subcategory,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return scanExpense(row)
}

const getExpense = `-- name: GetExpense :one
SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (ExpenseRow, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id))
}

const listExpenses = `-- name: ListExpenses :many
SELECT ` + expenseColumns + ` FROM expenses
WHERE (? IS NULL OR category = ?)
  AND (? IS NULL OR date >= ?)
  AND (? IS NULL OR date <= ?)
ORDER BY date DESC, id DESC
LIMIT ? OFFSET ?`

type ListExpensesParams struct {
	Category  sql.NullString
	StartDate sql.NullString
	EndDate   sql.NullString
	Limit     int64
	Offset    int64
}

func (q *Queries) ListExpenses(ctx context.Context, arg ListExpensesParams) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses,
		arg.Category, arg.Category,
		arg.StartDate, arg.StartDate,
		arg.EndDate, arg.EndDate,
		arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExpenses(rows)
}

const listExpensesInPeriod = `-- name: ListExpensesInPeriod :many
SELECT ` + expenseColumns + ` FROM expenses
WHERE (? IS NULL OR substr(date, 1, 4) = ?)
  AND (? IS NULL OR substr(date, 6, 2) = ?)
ORDER BY date ASC, id ASC`

type ListExpensesInPeriodParams struct {
	Year  sql.NullString
	Month sql.NullString
}

func (q *Queries) ListExpensesInPeriod(ctx context.Context, arg ListExpensesInPeriodParams) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesInPeriod, arg.Year, arg.Year, arg.Month, arg.Month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExpenses(rows)
}

func collectExpenses(rows *sql.Rows) ([]ExpenseRow, error) {
	var items []ExpenseRow
	for rows.Next() {
		i, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateExpense = `-- name: UpdateExpense :one
UPDATE expenses
SET category = ?, subcategory = ?, is_corrected = ?, updated_at = ?
WHERE id = ?
RETURNING ` + expenseColumns

type UpdateExpenseParams struct {
	Category    sql.NullString
	Subcategory sql.NullString
	IsCorrected int64
	UpdatedAt   string
	ID          int64
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (ExpenseRow, error) {
	row := q.db.QueryRowContext(ctx, updateExpense,
		arg.Category,
		arg.Subcategory,
		arg.IsCorrected,
		arg.UpdatedAt,
		arg.ID,
	)
	return scanExpense(row)
}

const deleteExpense = `-- name: DeleteExpense :execrows
DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const topCorrections = `-- name: TopCorrections :many
SELECT id, description_pattern, category, subcategory, usage_count, created_at
FROM corrections
ORDER BY usage_count DESC, id ASC
LIMIT ?`

func (q *Queries) TopCorrections(ctx context.Context, limit int64) ([]CorrectionRow, error) {
	rows, err := q.db.QueryContext(ctx, topCorrections, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CorrectionRow
	for rows.Next() {
		var i CorrectionRow
		if err := rows.Scan(
			&i.ID,
			&i.DescriptionPattern,
			&i.Category,
			&i.Subcategory,
			&i.UsageCount,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertCorrection = `-- name: UpsertCorrection :exec
INSERT INTO corrections (description_pattern, category, subcategory, usage_count, created_at)
VALUES (?, ?, ?, 1, ?)
ON CONFLICT(description_pattern) DO UPDATE SET
    category = excluded.category,
    subcategory = excluded.subcategory,
    usage_count = corrections.usage_count + 1`

type UpsertCorrectionParams struct {
	DescriptionPattern string
	Category           string
	Subcategory        sql.NullString
	CreatedAt          string
}

func (q *Queries) UpsertCorrection(ctx context.Context, arg UpsertCorrectionParams) error {
	_, err := q.db.ExecContext(ctx, upsertCorrection,
		arg.DescriptionPattern,
		arg.Category,
		arg.Subcategory,
		arg.CreatedAt,
	)
	return err
}
