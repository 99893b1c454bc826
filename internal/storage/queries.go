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

// Expense is the row shape of the expenses table.
type Expense struct {
	ID       int64
	Category string
	Amount   float64
	Month    string
}

type CreateExpenseParams struct {
	Category string
	Amount   float64
	Month    string
}

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (category, amount, month)
VALUES (?, ?, ?)
RETURNING id, category, amount, month
`

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense, arg.Category, arg.Amount, arg.Month)
	var i Expense
	err := row.Scan(&i.ID, &i.Category, &i.Amount, &i.Month)
	return i, err
}

const listExpenses = `-- name: ListExpenses :many
SELECT id, category, amount, month FROM expenses
ORDER BY id
`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Expense{}
	for rows.Next() {
		var i Expense
		if err := rows.Scan(&i.ID, &i.Category, &i.Amount, &i.Month); err != nil {
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

type CategorySum struct {
	Category string
	Total    float64
}

const getCategorySums = `-- name: GetCategorySums :many
SELECT category, SUM(amount) AS total
FROM expenses
GROUP BY category
`

func (q *Queries) GetCategorySums(ctx context.Context) ([]CategorySum, error) {
	rows, err := q.db.QueryContext(ctx, getCategorySums)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CategorySum{}
	for rows.Next() {
		var i CategorySum
		if err := rows.Scan(&i.Category, &i.Total); err != nil {
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

type MonthSum struct {
	Month string
	Total float64
}

const getMonthSums = `-- name: GetMonthSums :many
SELECT month, SUM(amount) AS total
FROM expenses
GROUP BY month
`

func (q *Queries) GetMonthSums(ctx context.Context) ([]MonthSum, error) {
	rows, err := q.db.QueryContext(ctx, getMonthSums)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MonthSum{}
	for rows.Next() {
		var i MonthSum
		if err := rows.Scan(&i.Month, &i.Total); err != nil {
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

const countExpenses = `-- name: CountExpenses :one
SELECT COUNT(*) FROM expenses
`

func (q *Queries) CountExpenses(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countExpenses)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteAllExpenses = `-- name: DeleteAllExpenses :execrows
DELETE FROM expenses
`

func (q *Queries) DeleteAllExpenses(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAllExpenses)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
