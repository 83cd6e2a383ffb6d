package model

import (
	"time"

	"github.com/deliverydesk/deliverydesk/internal/ledger"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a delivery order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsValid checks if the status is one of the known values.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a delivery order with its payment breakdown.
type Order struct {
	ID                int64
	CustomerID        int64
	CustomerName      string // Read-only join
	OrderDate         time.Time
	DeliveryDate      time.Time
	TotalCases        int
	TotalCost         decimal.Decimal
	PaymentCash       decimal.Decimal
	PaymentCheck      decimal.Decimal
	PaymentCredit     decimal.Decimal
	DriverExpense     decimal.Decimal
	IsOneTimeDelivery bool
	Status            OrderStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Line returns the money side of the order.
func (o *Order) Line() ledger.Line {
	return ledger.Line{
		Cases:  o.TotalCases,
		Cost:   o.TotalCost,
		Cash:   o.PaymentCash,
		Check:  o.PaymentCheck,
		Credit: o.PaymentCredit,
	}
}

// PaymentReceived is always derived from the three payment columns.
func (o *Order) PaymentReceived() decimal.Decimal {
	return o.Line().Received()
}

// IsCancelled reports whether the order is excluded from balances and reports.
func (o *Order) IsCancelled() bool {
	return o.Status == OrderStatusCancelled
}

// BalanceContribution is what this order adds to its customer's balance.
func (o *Order) BalanceContribution() decimal.Decimal {
	return ledger.BalanceContribution(o.Line(), o.IsCancelled())
}
