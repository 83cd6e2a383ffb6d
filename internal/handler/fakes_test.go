package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/deliverydesk/deliverydesk/internal/importer"
	"github.com/deliverydesk/deliverydesk/internal/ledger"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// serve routes a single request through a chi router so URL params resolve.
func serve(method, pattern, target string, body io.Reader, h http.HandlerFunc, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

type fakeCustomers struct {
	customers   map[int64]*model.Customer
	territories []string
	lastQuery   service.CustomerQuery
	lastInput   service.CustomerInput
	hasOrders   map[int64]bool
	importRes   *service.ImportResult
	importName  string
	importBody  string
}

func newFakeCustomers() *fakeCustomers {
	return &fakeCustomers{
		customers: map[int64]*model.Customer{
			1: {ID: 1, Name: "Corner Deli", Address: "1 Main St", DeliveryDay: "Monday", AccountType: "Regular", Territory: "North", Balance: dec("70.50")},
		},
		territories: []string{"North", "South"},
		hasOrders:   map[int64]bool{1: true},
	}
}

func (f *fakeCustomers) List(_ context.Context, q service.CustomerQuery) ([]model.Customer, error) {
	f.lastQuery = q
	if q.DeliveryDay == "bogus" {
		return nil, &service.ValidationError{Field: "delivery_day", Message: "must be a weekday name"}
	}
	out := []model.Customer{}
	for _, c := range f.customers {
		if q.Territory == "" || c.Territory == q.Territory {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCustomers) Get(_ context.Context, id int64) (*model.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, service.ErrCustomerNotFound
	}
	return c, nil
}

func (f *fakeCustomers) Create(_ context.Context, in service.CustomerInput) (*model.Customer, error) {
	f.lastInput = in
	if strings.TrimSpace(in.Name) == "" {
		return nil, &service.ValidationError{Field: "name", Message: "is required"}
	}
	c := &model.Customer{ID: int64(len(f.customers) + 1), Name: in.Name, Territory: in.Territory, Balance: decimal.Zero}
	f.customers[c.ID] = c
	return c, nil
}

func (f *fakeCustomers) Update(_ context.Context, id int64, in service.CustomerInput) (*model.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, service.ErrCustomerNotFound
	}
	c.Name = in.Name
	c.Territory = in.Territory
	return c, nil
}

func (f *fakeCustomers) Delete(_ context.Context, id int64) error {
	if _, ok := f.customers[id]; !ok {
		return service.ErrCustomerNotFound
	}
	if f.hasOrders[id] {
		return service.ErrCustomerHasOrders
	}
	delete(f.customers, id)
	return nil
}

func (f *fakeCustomers) Territories(context.Context) ([]string, error) {
	return f.territories, nil
}

func (f *fakeCustomers) Import(_ context.Context, r io.Reader, filename string) (*service.ImportResult, error) {
	data, _ := io.ReadAll(r)
	f.importName = filename
	f.importBody = string(data)
	if f.importRes != nil {
		return f.importRes, nil
	}
	return &service.ImportResult{Created: 1, IDs: []int64{9}, Errors: []importer.RowError{{Row: 3, Error: "name: is required"}}}, nil
}

type fakeOrders struct {
	orders    map[int64]*model.Order
	sheet     *model.DailySheet
	lastInput service.OrderInput
	lastQuery service.OrderQuery
	locked    bool
}

func newFakeOrders() *fakeOrders {
	o := &model.Order{
		ID:           7,
		CustomerID:   1,
		CustomerName: "Corner Deli",
		OrderDate:    day("2024-05-10"),
		DeliveryDate: day("2024-05-10"),
		TotalCases:   10,
		TotalCost:    dec("100.00"),
		PaymentCash:  dec("60.00"),
		PaymentCheck: dec("10.00"),
		Status:       model.OrderStatusPending,
	}
	var totals ledger.Totals
	totals.Add(o.Line())
	return &fakeOrders{
		orders: map[int64]*model.Order{7: o},
		sheet: &model.DailySheet{
			Date:          day("2024-05-10"),
			Orders:        []model.Order{*o},
			Totals:        totals,
			DriverExpense: dec("25"),
			NetIncome:     dec("45"),
			Editable:      true,
		},
	}
}

func (f *fakeOrders) List(_ context.Context, q service.OrderQuery) ([]model.Order, error) {
	f.lastQuery = q
	if q.StartDate != "" && q.EndDate != "" && q.StartDate > q.EndDate {
		return nil, service.ErrInvalidDateRange
	}
	out := []model.Order{}
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrders) Get(_ context.Context, id int64) (*model.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, service.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrders) DailySheet(_ context.Context, date time.Time) (*model.DailySheet, error) {
	if !date.Equal(f.sheet.Date) {
		return &model.DailySheet{Date: date}, nil
	}
	return f.sheet, nil
}

func (f *fakeOrders) Create(_ context.Context, in service.OrderInput) (*model.Order, error) {
	f.lastInput = in
	if in.CustomerID == nil {
		return nil, &service.ValidationError{Field: "customer_id", Message: "is required"}
	}
	o := &model.Order{ID: 8, CustomerID: *in.CustomerID, Status: model.OrderStatusPending}
	if in.DeliveryDate != nil {
		o.DeliveryDate = *in.DeliveryDate
	}
	if in.TotalCost != nil {
		o.TotalCost = *in.TotalCost
	}
	if in.PaymentCash != nil {
		o.PaymentCash = *in.PaymentCash
	}
	if o.PaymentCash.GreaterThan(o.TotalCost) {
		return nil, &ledger.FieldError{Field: "payment_cash", Err: ledger.ErrOverpayment}
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeOrders) Update(_ context.Context, id int64, in service.OrderInput) (*model.Order, error) {
	f.lastInput = in
	o, ok := f.orders[id]
	if !ok {
		return nil, service.ErrOrderNotFound
	}
	if f.locked {
		return nil, service.ErrOrderLocked
	}
	if in.Status != nil {
		o.Status = model.OrderStatus(*in.Status)
	}
	return o, nil
}

func (f *fakeOrders) SetStatus(ctx context.Context, id int64, status string) (*model.Order, error) {
	if !model.OrderStatus(status).IsValid() {
		return nil, &service.ValidationError{Field: "status", Message: "must be pending, delivered or cancelled"}
	}
	return f.Update(ctx, id, service.OrderInput{Status: &status})
}

func (f *fakeOrders) Delete(_ context.Context, id int64) error {
	if _, ok := f.orders[id]; !ok {
		return service.ErrOrderNotFound
	}
	if f.locked {
		return service.ErrOrderLocked
	}
	delete(f.orders, id)
	return nil
}

type fakeExpenses struct {
	expenses map[string]*model.DriverExpense
}

func newFakeExpenses() *fakeExpenses {
	return &fakeExpenses{expenses: map[string]*model.DriverExpense{
		"2024-05-10": {Date: day("2024-05-10"), Amount: dec("25.00"), Notes: "fuel"},
	}}
}

func (f *fakeExpenses) Get(_ context.Context, date time.Time) (*model.DriverExpense, error) {
	e, ok := f.expenses[model.FormatDate(date)]
	if !ok {
		return nil, service.ErrExpenseNotFound
	}
	return e, nil
}

func (f *fakeExpenses) Save(_ context.Context, date time.Time, amount decimal.Decimal, notes string) (*model.DriverExpense, error) {
	if amount.IsNegative() {
		return nil, &ledger.FieldError{Field: "amount", Err: ledger.ErrNegativeAmount}
	}
	e := &model.DriverExpense{Date: date, Amount: amount, Notes: notes}
	f.expenses[model.FormatDate(date)] = e
	return e, nil
}

type fakeReports struct {
	last service.ReportQuery
}

func (f *fakeReports) Generate(_ context.Context, q service.ReportQuery) (*model.Report, error) {
	f.last = q
	if q.StartDate > q.EndDate {
		return nil, service.ErrInvalidDateRange
	}
	var totals ledger.Totals
	totals.Add(ledger.Line{Cases: 10, Cost: dec("100"), Cash: dec("60"), Check: dec("10")})
	return &model.Report{
		StartDate: day(q.StartDate),
		EndDate:   day(q.EndDate),
		Territory: q.Territory,
		Rows: []model.ReportRow{
			{Date: day(q.StartDate), Totals: totals, DriverExpense: dec("25")},
		},
		Summary: model.ReportSummary{
			Totals:         totals,
			DriverExpenses: dec("25"),
			NetIncome:      dec("45"),
		},
		GeneratedAt: time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC),
	}, nil
}

type fakeAuth struct {
	sessions map[string]*model.Session
	limited  bool
	loggedIn string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{sessions: map[string]*model.Session{}}
}

func (f *fakeAuth) Login(_ context.Context, username, password, clientIP string) (*model.Session, error) {
	if f.limited {
		return nil, &service.RateLimitedError{RetryAfter: 1500 * time.Millisecond}
	}
	if username != "admin" || password != "s3cret-pass" {
		return nil, service.ErrInvalidCredentials
	}
	f.loggedIn = clientIP
	s := &model.Session{ID: "sess-1", UserID: 1, Username: "admin", Email: "admin@example.com"}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeAuth) Logout(_ context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeAuth) SessionTTL() time.Duration {
	return time.Hour
}

func (f *fakeAuth) Authenticate(_ context.Context, id string) (*model.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, service.ErrSessionExpired
	}
	return s, nil
}
