package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryDays lists the accepted delivery_day values in week order.
var DeliveryDays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// NormalizeDeliveryDay maps "monday", "MON" or "Monday" to "Monday".
// The second result is false for anything that is not a weekday name.
func NormalizeDeliveryDay(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return "", false
	}
	for _, day := range DeliveryDays {
		lower := strings.ToLower(day)
		if s == lower || (len(s) <= len(lower) && strings.HasPrefix(lower, s)) {
			return day, true
		}
	}
	return "", false
}

// Customer is a delivery account.
type Customer struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	DeliveryDay string          `json:"delivery_day"`
	AccountType string          `json:"account_type"`
	Territory   string          `json:"territory"`
	Balance     decimal.Decimal `json:"balance"` // Maintained from orders, never client-editable
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
