package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for driver expense repository operations.
var (
	ErrExpenseNotFound = errors.New("driver expense not found")
)

// GetDriverExpense returns the expense recorded for a date.
func (r *Repository) GetDriverExpense(ctx context.Context, date time.Time) (*model.DriverExpense, error) {
	query := `
		SELECT expense_date, amount, notes, updated_at
		FROM driver_expenses
		WHERE expense_date = $1
	`

	e, err := scanExpense(r.pool.QueryRow(ctx, query, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to get driver expense: %w", err)
	}
	return e, nil
}

// UpsertDriverExpense creates or replaces the expense for e.Date.
func (r *Repository) UpsertDriverExpense(ctx context.Context, e *model.DriverExpense) error {
	query := `
		INSERT INTO driver_expenses (expense_date, amount, notes, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (expense_date) DO UPDATE SET
			amount = EXCLUDED.amount,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING expense_date, amount, notes, updated_at
	`

	saved, err := scanExpense(r.pool.QueryRow(ctx, query, e.Date, e.Amount, e.Notes))
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %s", ErrConstraint, err.Error())
		}
		return fmt.Errorf("failed to save driver expense: %w", err)
	}

	*e = *saved
	return nil
}

// ListDriverExpenses returns the daily expenses between start and end inclusive.
func (r *Repository) ListDriverExpenses(ctx context.Context, start, end time.Time) ([]model.DriverExpense, error) {
	query := `
		SELECT expense_date, amount, notes, updated_at
		FROM driver_expenses
		WHERE expense_date BETWEEN $1 AND $2
		ORDER BY expense_date
	`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list driver expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]model.DriverExpense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan driver expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating driver expenses: %w", err)
	}

	return expenses, nil
}

func scanExpense(row pgx.Row) (*model.DriverExpense, error) {
	var e model.DriverExpense
	err := row.Scan(&e.Date, &e.Amount, &e.Notes, &e.UpdatedAt)
	return &e, err
}
