package dto

import (
	"time"

	"github.com/deliverydesk/deliverydesk/internal/ledger"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/shopspring/decimal"
)

// ErrorResponse represents an API error. The pages read errorData.error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	ID                int64           `json:"id"`
	CustomerID        int64           `json:"customer_id"`
	CustomerName      string          `json:"customer_name"`
	OrderDate         string          `json:"order_date"`
	DeliveryDate      string          `json:"delivery_date"`
	TotalCases        int             `json:"total_cases"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	PaymentCash       decimal.Decimal `json:"payment_cash"`
	PaymentCheck      decimal.Decimal `json:"payment_check"`
	PaymentCredit     decimal.Decimal `json:"payment_credit"`
	PaymentReceived   decimal.Decimal `json:"payment_received"`
	Outstanding       decimal.Decimal `json:"outstanding"`
	DriverExpense     decimal.Decimal `json:"driver_expense"`
	IsOneTimeDelivery bool            `json:"is_one_time_delivery"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// DailyOrderResponse is a daily sheet row.
type DailyOrderResponse struct {
	OrderResponse
	Editable bool `json:"editable"`
}

// TotalsResponse is a column-total footer.
type TotalsResponse struct {
	OrderCount      int             `json:"order_count"`
	TotalCases      int             `json:"total_cases"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	PaymentCash     decimal.Decimal `json:"payment_cash"`
	PaymentCheck    decimal.Decimal `json:"payment_check"`
	PaymentCredit   decimal.Decimal `json:"payment_credit"`
	PaymentReceived decimal.Decimal `json:"payment_received"`
	Outstanding     decimal.Decimal `json:"outstanding"`
}

// DailySheetResponse is the dashboard's full view of one delivery date.
type DailySheetResponse struct {
	Date          string               `json:"date"`
	Editable      bool                 `json:"editable"`
	Orders        []DailyOrderResponse `json:"orders"`
	Totals        TotalsResponse       `json:"totals"`
	DriverExpense decimal.Decimal      `json:"driver_expense"`
	NetIncome     decimal.Decimal      `json:"net_income"`
}

// ReportRowResponse is one delivery date in a report.
type ReportRowResponse struct {
	DeliveryDate    string          `json:"delivery_date"`
	OrderCount      int             `json:"order_count"`
	TotalCases      int             `json:"total_cases"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	PaymentCash     decimal.Decimal `json:"payment_cash"`
	PaymentCheck    decimal.Decimal `json:"payment_check"`
	PaymentCredit   decimal.Decimal `json:"payment_credit"`
	PaymentReceived decimal.Decimal `json:"payment_received"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	DriverExpense   decimal.Decimal `json:"driver_expense"`
}

// ReportSummaryResponse totals a whole report.
type ReportSummaryResponse struct {
	TotalOrders        int             `json:"total_orders"`
	TotalCases         int             `json:"total_cases"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	TotalPayments      decimal.Decimal `json:"total_payments"`
	TotalCash          decimal.Decimal `json:"total_cash"`
	TotalCheck         decimal.Decimal `json:"total_check"`
	TotalCredit        decimal.Decimal `json:"total_credit"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	DriverExpenses     decimal.Decimal `json:"driver_expenses"`
	NetIncome          decimal.Decimal `json:"net_income"`
}

// ReportResponse is the body of GET /api/reports.
type ReportResponse struct {
	StartDate   string                `json:"start_date"`
	EndDate     string                `json:"end_date"`
	Territory   string                `json:"territory,omitempty"`
	Orders      []ReportRowResponse   `json:"orders"`
	Summary     ReportSummaryResponse `json:"summary"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// ExpenseResponse represents a daily driver expense.
type ExpenseResponse struct {
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Notes     string          `json:"notes"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LegacyResult answers the page form endpoints that have no record to return.
type LegacyResult struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

// UserResponse is the signed-in operator.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ToOrderResponse converts an Order model to OrderResponse DTO.
func ToOrderResponse(o *model.Order) OrderResponse {
	line := o.Line()
	return OrderResponse{
		ID:                o.ID,
		CustomerID:        o.CustomerID,
		CustomerName:      o.CustomerName,
		OrderDate:         model.FormatDate(o.OrderDate),
		DeliveryDate:      model.FormatDate(o.DeliveryDate),
		TotalCases:        o.TotalCases,
		TotalCost:         o.TotalCost,
		PaymentCash:       o.PaymentCash,
		PaymentCheck:      o.PaymentCheck,
		PaymentCredit:     o.PaymentCredit,
		PaymentReceived:   line.Received(),
		Outstanding:       line.Outstanding(),
		DriverExpense:     o.DriverExpense,
		IsOneTimeDelivery: o.IsOneTimeDelivery,
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// ToOrderList converts a slice of orders. Never returns nil.
func ToOrderList(orders []model.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, ToOrderResponse(&orders[i]))
	}
	return out
}

// ToDailyRows converts a daily sheet's orders, marking each row editable
// when the sheet is.
func ToDailyRows(sheet *model.DailySheet) []DailyOrderResponse {
	out := make([]DailyOrderResponse, 0, len(sheet.Orders))
	for i := range sheet.Orders {
		out = append(out, DailyOrderResponse{
			OrderResponse: ToOrderResponse(&sheet.Orders[i]),
			Editable:      sheet.Editable,
		})
	}
	return out
}

// ToTotalsResponse converts a ledger.Totals footer.
func ToTotalsResponse(t ledger.Totals) TotalsResponse {
	return TotalsResponse{
		OrderCount:      t.Count,
		TotalCases:      t.Cases,
		TotalCost:       t.Cost,
		PaymentCash:     t.Cash,
		PaymentCheck:    t.Check,
		PaymentCredit:   t.Credit,
		PaymentReceived: t.Received,
		Outstanding:     t.Outstanding,
	}
}

// ToDailySheetResponse converts a DailySheet.
func ToDailySheetResponse(sheet *model.DailySheet) DailySheetResponse {
	return DailySheetResponse{
		Date:          model.FormatDate(sheet.Date),
		Editable:      sheet.Editable,
		Orders:        ToDailyRows(sheet),
		Totals:        ToTotalsResponse(sheet.Totals),
		DriverExpense: sheet.DriverExpense,
		NetIncome:     sheet.NetIncome,
	}
}

// ToReportResponse converts a Report.
func ToReportResponse(r *model.Report) ReportResponse {
	rows := make([]ReportRowResponse, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, ReportRowResponse{
			DeliveryDate:    model.FormatDate(row.Date),
			OrderCount:      row.Totals.Count,
			TotalCases:      row.Totals.Cases,
			TotalCost:       row.Totals.Cost,
			PaymentCash:     row.Totals.Cash,
			PaymentCheck:    row.Totals.Check,
			PaymentCredit:   row.Totals.Credit,
			PaymentReceived: row.Totals.Received,
			Outstanding:     row.Totals.Outstanding,
			DriverExpense:   row.DriverExpense,
		})
	}

	s := r.Summary
	return ReportResponse{
		StartDate: model.FormatDate(r.StartDate),
		EndDate:   model.FormatDate(r.EndDate),
		Territory: r.Territory,
		Orders:    rows,
		Summary: ReportSummaryResponse{
			TotalOrders:        s.Totals.Count,
			TotalCases:         s.Totals.Cases,
			TotalRevenue:       s.Totals.Cost,
			TotalPayments:      s.Totals.Received,
			TotalCash:          s.Totals.Cash,
			TotalCheck:         s.Totals.Check,
			TotalCredit:        s.Totals.Credit,
			OutstandingBalance: s.Totals.Outstanding,
			DriverExpenses:     s.DriverExpenses,
			NetIncome:          s.NetIncome,
		},
		GeneratedAt: r.GeneratedAt,
	}
}

// ToExpenseResponse converts a DriverExpense.
func ToExpenseResponse(e *model.DriverExpense) ExpenseResponse {
	return ExpenseResponse{
		Date:      model.FormatDate(e.Date),
		Amount:    e.Amount,
		Notes:     e.Notes,
		UpdatedAt: e.UpdatedAt,
	}
}

// ToUserResponse converts the session's user.
func ToUserResponse(s *model.Session) UserResponse {
	return UserResponse{ID: s.UserID, Username: s.Username, Email: s.Email}
}
