// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/shopspring/decimal"
)

func init() {
	// The dashboard pages do arithmetic on money fields, so they go out as
	// JSON numbers rather than quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// CustomerRequest is the body of POST and PUT /api/customers.
type CustomerRequest struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	DeliveryDay string `json:"delivery_day"`
	AccountType string `json:"account_type"`
	Territory   string `json:"territory"`
}

// OrderRequest is the body of POST and PUT /api/orders. Every field is
// optional so the order grid can send a status-only PUT. payment_received
// is accepted for compatibility and ignored.
type OrderRequest struct {
	CustomerID        *FlexID          `json:"customer_id"`
	OrderDate         *string          `json:"order_date"`
	DeliveryDate      *string          `json:"delivery_date"`
	TotalCases        *int             `json:"total_cases"`
	TotalCost         *decimal.Decimal `json:"total_cost"`
	UnitPrice         *decimal.Decimal `json:"unit_price"`
	PaymentCash       *decimal.Decimal `json:"payment_cash"`
	PaymentCheck      *decimal.Decimal `json:"payment_check"`
	PaymentCredit     *decimal.Decimal `json:"payment_credit"`
	PaymentReceived   *decimal.Decimal `json:"payment_received"`
	DriverExpense     *decimal.Decimal `json:"driver_expense"`
	IsOneTimeDelivery *bool            `json:"is_one_time_delivery"`
	Status            *string          `json:"status"`
}

// ParseDates converts the optional YYYY-MM-DD fields.
func (r OrderRequest) ParseDates() (orderDate, deliveryDate *time.Time, err error) {
	if orderDate, err = parseDatePtr("order_date", r.OrderDate); err != nil {
		return nil, nil, err
	}
	if deliveryDate, err = parseDatePtr("delivery_date", r.DeliveryDate); err != nil {
		return nil, nil, err
	}
	return orderDate, deliveryDate, nil
}

// FlexID is an integer id the pages may send either as a number or as the
// string value of a form field. An empty string means no id.
type FlexID int64

// UnmarshalJSON accepts 5, "5", "" and null.
func (id *FlexID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*id = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	if raw == "" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("id %s is not a positive integer", b)
	}
	*id = FlexID(n)
	return nil
}

// Int64 returns the id as a pointer, nil when absent or zero.
func (id *FlexID) Int64() *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	v := int64(*id)
	return &v
}

// LegacyCustomerRequest is what the customer page sends to PUT /customers:
// the usual fields plus the id in the body.
type LegacyCustomerRequest struct {
	ID FlexID `json:"id"`
	CustomerRequest
}

// LegacyOrderRequest is what the order page sends to PUT /orders.
type LegacyOrderRequest struct {
	ID FlexID `json:"id"`
	OrderRequest
}

// IDRequest carries only a record id, as in DELETE /customers.
type IDRequest struct {
	ID FlexID `json:"id"`
}

// StatusRequest is the body of PATCH /api/orders/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// ExpenseRequest is the body of PUT /api/driver-expenses/{date}.
type ExpenseRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Notes  string           `json:"notes"`
}

// LegacyExpenseRequest is the body the dashboard posts to /api/daily_driver_expense.
type LegacyExpenseRequest struct {
	Date   string           `json:"date"`
	Amount *decimal.Decimal `json:"amount"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// DateFieldError reports a malformed date field.
type DateFieldError struct {
	Field string
	Value string
}

func (e *DateFieldError) Error() string {
	return fmt.Sprintf("%s: %q is not a YYYY-MM-DD date", e.Field, e.Value)
}

func parseDatePtr(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	d, err := model.ParseDate(*value)
	if err != nil {
		return nil, &DateFieldError{Field: field, Value: *value}
	}
	return &d, nil
}
