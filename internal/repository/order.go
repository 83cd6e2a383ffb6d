package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Common errors for order repository operations.
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderFilter narrows ListOrders. Zero values match everything.
type OrderFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	CustomerID int64
	Statuses   []string
	Territory  string
}

const orderSelect = `
	SELECT o.id, o.customer_id, c.name, o.order_date, o.delivery_date, o.total_cases,
	       o.total_cost, o.payment_cash, o.payment_check, o.payment_credit, o.driver_expense,
	       o.is_one_time_delivery, o.status, o.created_at, o.updated_at
	FROM orders o
	JOIN customers c ON c.id = o.customer_id
`

// ListOrders returns orders by delivery date, then customer name.
func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	query := orderSelect + ` WHERE 1=1`
	args := []any{}
	argIndex := 1

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND o.delivery_date >= $%d", argIndex)
		args = append(args, *filter.StartDate)
		argIndex++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND o.delivery_date <= $%d", argIndex)
		args = append(args, *filter.EndDate)
		argIndex++
	}

	if filter.CustomerID != 0 {
		query += fmt.Sprintf(" AND o.customer_id = $%d", argIndex)
		args = append(args, filter.CustomerID)
		argIndex++
	}

	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND o.status = ANY($%d)", argIndex)
		args = append(args, pq.Array(filter.Statuses))
		argIndex++
	}

	if filter.Territory != "" {
		query += fmt.Sprintf(" AND c.territory = $%d", argIndex)
		args = append(args, filter.Territory)
	}

	query += " ORDER BY o.delivery_date, c.name, o.id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// GetOrder retrieves an order by ID.
func (r *Repository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// CreateOrder inserts an order and adds its contribution to the customer's balance.
func (r *Repository) CreateOrder(ctx context.Context, o *model.Order) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (
				customer_id, order_date, delivery_date, total_cases, total_cost,
				payment_cash, payment_check, payment_credit, driver_expense,
				is_one_time_delivery, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id
		`,
			o.CustomerID,
			o.OrderDate,
			o.DeliveryDate,
			o.TotalCases,
			o.TotalCost,
			o.PaymentCash,
			o.PaymentCheck,
			o.PaymentCredit,
			o.DriverExpense,
			o.IsOneTimeDelivery,
			string(o.Status),
		).Scan(&id)
		if err != nil {
			return err
		}

		if err := adjustBalance(ctx, tx, o.CustomerID, o.BalanceContribution()); err != nil {
			return err
		}

		created, err := scanOrder(tx.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
		if err != nil {
			return err
		}
		*o = *created
		return nil
	})

	return mapOrderWriteError("create", err)
}

// UpdateOrder locks the order, applies mutate to a copy and persists the result.
// The balance moves by the change in contribution, across customers if the
// order was reassigned.
func (r *Repository) UpdateOrder(ctx context.Context, id int64, mutate func(*model.Order) error) (*model.Order, error) {
	var updated *model.Order

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		before, err := scanOrder(tx.QueryRow(ctx, orderSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id))
		if err != nil {
			return err
		}

		after := *before
		if err := mutate(&after); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE orders
			SET customer_id = $2, order_date = $3, delivery_date = $4, total_cases = $5,
			    total_cost = $6, payment_cash = $7, payment_check = $8, payment_credit = $9,
			    driver_expense = $10, is_one_time_delivery = $11, status = $12, updated_at = NOW()
			WHERE id = $1
		`,
			id,
			after.CustomerID,
			after.OrderDate,
			after.DeliveryDate,
			after.TotalCases,
			after.TotalCost,
			after.PaymentCash,
			after.PaymentCheck,
			after.PaymentCredit,
			after.DriverExpense,
			after.IsOneTimeDelivery,
			string(after.Status),
		)
		if err != nil {
			return err
		}

		if before.CustomerID == after.CustomerID {
			delta := after.BalanceContribution().Sub(before.BalanceContribution())
			if err := adjustBalance(ctx, tx, after.CustomerID, delta); err != nil {
				return err
			}
		} else {
			if err := adjustBalance(ctx, tx, before.CustomerID, before.BalanceContribution().Neg()); err != nil {
				return err
			}
			if err := adjustBalance(ctx, tx, after.CustomerID, after.BalanceContribution()); err != nil {
				return err
			}
		}

		updated, err = scanOrder(tx.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
		return err
	})
	if err != nil {
		return nil, mapOrderWriteError("update", err)
	}

	return updated, nil
}

// DeleteOrder removes an order and reverses its balance contribution.
func (r *Repository) DeleteOrder(ctx context.Context, id int64) (*model.Order, error) {
	var deleted *model.Order

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, orderSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id))
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
			return err
		}
		if err := adjustBalance(ctx, tx, o.CustomerID, o.BalanceContribution().Neg()); err != nil {
			return err
		}

		deleted = o
		return nil
	})
	if err != nil {
		return nil, mapOrderWriteError("delete", err)
	}

	return deleted, nil
}

// adjustBalance adds delta to a customer's balance inside tx.
func adjustBalance(ctx context.Context, tx pgx.Tx, customerID int64, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}

	result, err := tx.Exec(ctx,
		`UPDATE customers SET balance = balance + $2, updated_at = NOW() WHERE id = $1`,
		customerID, delta,
	)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func mapOrderWriteError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrOrderNotFound
	case errors.Is(err, ErrCustomerNotFound), isForeignKeyViolation(err):
		return ErrCustomerNotFound
	case isCheckViolation(err):
		return fmt.Errorf("%w: %s", ErrConstraint, err.Error())
	}

	// Errors raised by the caller's mutate func pass through untouched.
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	return fmt.Errorf("failed to %s order: %w", op, err)
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status string
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.CustomerName,
		&o.OrderDate,
		&o.DeliveryDate,
		&o.TotalCases,
		&o.TotalCost,
		&o.PaymentCash,
		&o.PaymentCheck,
		&o.PaymentCredit,
		&o.DriverExpense,
		&o.IsOneTimeDelivery,
		&status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	o.Status = model.OrderStatus(status)
	return &o, err
}
