package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// Common errors for customer repository operations.
var (
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrCustomerHasOrders = errors.New("customer has orders")
)

// CustomerFilter narrows ListCustomers. Zero values match everything.
type CustomerFilter struct {
	Territories []string
	DeliveryDay string
	Query       string // Case-insensitive name substring
}

const customerColumns = `id, name, address, delivery_day, account_type, territory, balance, created_at, updated_at`

// ListCustomers returns customers ordered by name.
func (r *Repository) ListCustomers(ctx context.Context, filter CustomerFilter) ([]model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE 1=1`
	args := []any{}
	argIndex := 1

	if len(filter.Territories) > 0 {
		query += fmt.Sprintf(" AND territory = ANY($%d)", argIndex)
		args = append(args, pq.Array(filter.Territories))
		argIndex++
	}

	if filter.DeliveryDay != "" {
		query += fmt.Sprintf(" AND delivery_day = $%d", argIndex)
		args = append(args, filter.DeliveryDay)
		argIndex++
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", argIndex)
		args = append(args, "%"+escapeLike(q)+"%")
	}

	query += " ORDER BY name, id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]model.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}

	return customers, nil
}

// GetCustomer retrieves a customer by ID.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	c, err := scanCustomer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return c, nil
}

// CreateCustomer inserts a customer with a zero balance.
func (r *Repository) CreateCustomer(ctx context.Context, c *model.Customer) error {
	query := `
		INSERT INTO customers (name, address, delivery_day, account_type, territory)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + customerColumns

	created, err := scanCustomer(r.pool.QueryRow(ctx, query,
		c.Name,
		c.Address,
		c.DeliveryDay,
		c.AccountType,
		c.Territory,
	))
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %s", ErrConstraint, err.Error())
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}

	*c = *created
	return nil
}

// CreateCustomers inserts a batch of customers in one transaction.
// Either every row is inserted or none is.
func (r *Repository) CreateCustomers(ctx context.Context, customers []model.Customer) ([]int64, error) {
	if len(customers) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(customers))
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range customers {
			batch.Queue(`
				INSERT INTO customers (name, address, delivery_day, account_type, territory)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, c.Name, c.Address, c.DeliveryDay, c.AccountType, c.Territory)
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < len(customers); i++ {
			var id int64
			if err := results.QueryRow().Scan(&id); err != nil {
				results.Close()
				return fmt.Errorf("batch insert customer %d: %w", i, err)
			}
			ids = append(ids, id)
		}
		return results.Close()
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// UpdateCustomer updates the editable fields. Balance is left alone.
func (r *Repository) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	query := `
		UPDATE customers
		SET name = $2, address = $3, delivery_day = $4, account_type = $5, territory = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + customerColumns

	updated, err := scanCustomer(r.pool.QueryRow(ctx, query,
		c.ID,
		c.Name,
		c.Address,
		c.DeliveryDay,
		c.AccountType,
		c.Territory,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCustomerNotFound
		}
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %s", ErrConstraint, err.Error())
		}
		return fmt.Errorf("failed to update customer: %w", err)
	}

	*c = *updated
	return nil
}

// DeleteCustomer removes a customer that has no orders.
func (r *Repository) DeleteCustomer(ctx context.Context, id int64) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var hasOrders bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE customer_id = $1)`, id,
		).Scan(&hasOrders); err != nil {
			return fmt.Errorf("failed to check customer orders: %w", err)
		}
		if hasOrders {
			return ErrCustomerHasOrders
		}

		result, err := tx.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return ErrCustomerNotFound
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCustomerHasOrders), errors.Is(err, ErrCustomerNotFound):
		return err
	case isForeignKeyViolation(err):
		// An order was inserted between the check and the delete.
		return ErrCustomerHasOrders
	default:
		return fmt.Errorf("failed to delete customer: %w", err)
	}
}

// ListTerritories returns the distinct territory names, sorted.
func (r *Repository) ListTerritories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT territory FROM customers ORDER BY territory`)
	if err != nil {
		return nil, fmt.Errorf("failed to list territories: %w", err)
	}

	territories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan territories: %w", err)
	}
	return territories, nil
}

func scanCustomer(row pgx.Row) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Address,
		&c.DeliveryDay,
		&c.AccountType,
		&c.Territory,
		&c.Balance,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return &c, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
