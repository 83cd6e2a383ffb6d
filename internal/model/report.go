package model

import (
	"time"

	"github.com/deliverydesk/deliverydesk/internal/ledger"
	"github.com/shopspring/decimal"
)

// ReportRow aggregates one delivery date.
type ReportRow struct {
	Date          time.Time
	Totals        ledger.Totals
	DriverExpense decimal.Decimal
}

// ReportSummary aggregates the whole range.
type ReportSummary struct {
	Totals         ledger.Totals
	DriverExpenses decimal.Decimal
	NetIncome      decimal.Decimal
}

// Report is a date-range financial report.
type Report struct {
	StartDate   time.Time
	EndDate     time.Time
	Territory   string
	Rows        []ReportRow
	Summary     ReportSummary
	GeneratedAt time.Time
}

// DailySheet is the dashboard's view of a single delivery date.
type DailySheet struct {
	Date          time.Time
	Orders        []Order
	Totals        ledger.Totals
	DriverExpense decimal.Decimal
	NetIncome     decimal.Decimal
	Editable      bool
}
