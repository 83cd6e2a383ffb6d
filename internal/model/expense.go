package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DriverExpense is the daily operating cost entered on the dashboard.
type DriverExpense struct {
	Date      time.Time
	Amount    decimal.Decimal
	Notes     string
	UpdatedAt time.Time
}
