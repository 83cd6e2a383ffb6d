// Package ledger holds the order arithmetic shared by the API, the reports and
// the exports: cost calculation, payment validation and column totals.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation errors.
var (
	ErrNegativeAmount = errors.New("amounts cannot be negative")
	ErrOverpayment    = errors.New("payments cannot exceed total cost")
)

// FieldError ties a validation error to the offending field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// CostFor returns cases × unitPrice rounded to cents.
func CostFor(cases int, unitPrice decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(cases)).Mul(unitPrice).Round(2)
}

// CheckAmount returns a FieldError when d is negative.
func CheckAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return &FieldError{Field: field, Err: ErrNegativeAmount}
	}
	return nil
}

// Line is the money side of a single order.
type Line struct {
	Cases  int
	Cost   decimal.Decimal
	Cash   decimal.Decimal
	Check  decimal.Decimal
	Credit decimal.Decimal
}

// Received is cash + check + credit.
func (l Line) Received() decimal.Decimal {
	return l.Cash.Add(l.Check).Add(l.Credit)
}

// Outstanding is what the customer still owes on this line.
func (l Line) Outstanding() decimal.Decimal {
	return l.Cost.Sub(l.Received())
}

// Validate rejects negative amounts and payments above cost.
func (l Line) Validate() error {
	if l.Cases < 0 {
		return &FieldError{Field: "total_cases", Err: ErrNegativeAmount}
	}

	amounts := []struct {
		field string
		value decimal.Decimal
	}{
		{"total_cost", l.Cost},
		{"payment_cash", l.Cash},
		{"payment_check", l.Check},
		{"payment_credit", l.Credit},
	}
	for _, a := range amounts {
		if err := CheckAmount(a.field, a.value); err != nil {
			return err
		}
	}

	if l.Received().GreaterThan(l.Cost) {
		return &FieldError{Field: "payment_received", Err: ErrOverpayment}
	}
	return nil
}

// BalanceContribution is what the line adds to the customer's balance.
// Cancelled orders contribute nothing.
func BalanceContribution(l Line, cancelled bool) decimal.Decimal {
	if cancelled {
		return decimal.Zero
	}
	return l.Outstanding()
}

// Totals accumulates column sums over a set of lines.
type Totals struct {
	Count       int
	Cases       int
	Cost        decimal.Decimal
	Cash        decimal.Decimal
	Check       decimal.Decimal
	Credit      decimal.Decimal
	Received    decimal.Decimal
	Outstanding decimal.Decimal
}

// Add folds one line into the totals.
func (t *Totals) Add(l Line) {
	t.Count++
	t.Cases += l.Cases
	t.Cost = t.Cost.Add(l.Cost)
	t.Cash = t.Cash.Add(l.Cash)
	t.Check = t.Check.Add(l.Check)
	t.Credit = t.Credit.Add(l.Credit)
	t.Received = t.Received.Add(l.Received())
	t.Outstanding = t.Outstanding.Add(l.Outstanding())
}

// Merge folds another set of totals into t.
func (t *Totals) Merge(o Totals) {
	t.Count += o.Count
	t.Cases += o.Cases
	t.Cost = t.Cost.Add(o.Cost)
	t.Cash = t.Cash.Add(o.Cash)
	t.Check = t.Check.Add(o.Check)
	t.Credit = t.Credit.Add(o.Credit)
	t.Received = t.Received.Add(o.Received)
	t.Outstanding = t.Outstanding.Add(o.Outstanding)
}

// NetIncome is payments received minus the given expense.
func (t Totals) NetIncome(expense decimal.Decimal) decimal.Decimal {
	return t.Received.Sub(expense)
}

// Sum reduces lines to their totals.
func Sum(lines []Line) Totals {
	var t Totals
	for _, l := range lines {
		t.Add(l)
	}
	return t
}
