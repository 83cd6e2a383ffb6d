package service

import (
	"context"
	"errors"
	"testing"

	"github.com/deliverydesk/deliverydesk/internal/metrics"
	"github.com/deliverydesk/deliverydesk/internal/model"
)

type reportTestEnv struct {
	orders    *OrderService
	customers *CustomerService
	reports   *ReportService
	store     *memStore
	cache     *memCache
	rec       *metrics.InMemoryRecorder
	north     int64
	south     int64
}

func newReportTestEnv(t *testing.T) *reportTestEnv {
	t.Helper()
	ctx := context.Background()
	store := newMemStore()
	mc := newMemCache()
	rec := metrics.NewInMemory()
	clock := fixedClock("2024-05-10")

	north := &model.Customer{Name: "North Deli", Territory: "North"}
	south := &model.Customer{Name: "South Deli", Territory: "South"}
	_ = store.CreateCustomer(ctx, north)
	_ = store.CreateCustomer(ctx, south)

	return &reportTestEnv{
		orders:    NewOrderService(store, store, mc, nil, testLogger(), rec, OrderOptions{Clock: clock}),
		customers: NewCustomerService(store, mc, nil, testLogger(), rec),
		reports:   NewReportService(store, store, mc, testLogger(), rec, ReportOptions{Clock: clock, MaxRangeDays: 31, CacheTTL: 60e9}),
		store:     store,
		cache:     mc,
		rec:       rec,
		north:     north.ID,
		south:     south.ID,
	}
}

func (e *reportTestEnv) order(t *testing.T, customerID int64, day, cost, cash, expense, status string) {
	t.Helper()
	_, err := e.orders.Create(context.Background(), OrderInput{
		CustomerID:    &customerID,
		DeliveryDate:  datePtr(day),
		TotalCost:     decPtr(cost),
		PaymentCash:   decPtr(cash),
		DriverExpense: decPtr(expense),
		Status:        &status,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
}

func TestReportService_GroupsByDate(t *testing.T) {
	t.Parallel()
	env := newReportTestEnv(t)
	ctx := context.Background()

	env.order(t, env.north, "2024-05-01", "100", "60", "5", "delivered")
	env.order(t, env.south, "2024-05-01", "40", "40", "0", "pending")
	env.order(t, env.north, "2024-05-03", "200", "0", "0", "pending")
	env.order(t, env.north, "2024-05-03", "999", "999", "0", "cancelled")
	env.order(t, env.north, "2024-06-01", "77", "0", "0", "pending")
	_ = env.store.UpsertDriverExpense(ctx, &model.DriverExpense{Date: date("2024-05-02"), Amount: dec("25")})

	r, err := env.reports.Generate(ctx, ReportQuery{StartDate: "2024-05-01", EndDate: "2024-05-31"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(r.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(r.Rows))
	}
	first := r.Rows[0]
	if model.FormatDate(first.Date) != "2024-05-01" || first.Totals.Count != 2 || !first.Totals.Received.Equal(dec("100")) {
		t.Errorf("unexpected first row: %+v", first)
	}
	if model.FormatDate(r.Rows[1].Date) != "2024-05-02" || !r.Rows[1].DriverExpense.Equal(dec("25")) {
		t.Errorf("expense-only day missing: %+v", r.Rows[1])
	}

	s := r.Summary
	if s.Totals.Count != 3 || !s.Totals.Cost.Equal(dec("340")) || !s.Totals.Outstanding.Equal(dec("240")) {
		t.Errorf("unexpected summary totals: %+v", s.Totals)
	}
	if !s.DriverExpenses.Equal(dec("30")) || !s.NetIncome.Equal(dec("70")) {
		t.Errorf("expenses = %s net = %s", s.DriverExpenses, s.NetIncome)
	}
}

func TestReportService_TerritoryIgnoresDailyExpense(t *testing.T) {
	t.Parallel()
	env := newReportTestEnv(t)
	ctx := context.Background()

	env.order(t, env.north, "2024-05-01", "100", "60", "5", "delivered")
	env.order(t, env.south, "2024-05-01", "40", "40", "0", "pending")
	_ = env.store.UpsertDriverExpense(ctx, &model.DriverExpense{Date: date("2024-05-01"), Amount: dec("25")})

	r, err := env.reports.Generate(ctx, ReportQuery{StartDate: "2024-05-01", EndDate: "2024-05-01", Territory: "North"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if r.Territory != "North" || r.Summary.Totals.Count != 1 {
		t.Errorf("unexpected report: %+v", r.Summary)
	}
	if !r.Summary.DriverExpenses.Equal(dec("5")) {
		t.Errorf("driver expenses = %s, want 5", r.Summary.DriverExpenses)
	}
}

func TestReportService_Validation(t *testing.T) {
	t.Parallel()
	env := newReportTestEnv(t)
	ctx := context.Background()

	if _, err := env.reports.Generate(ctx, ReportQuery{StartDate: "2024-05-09", EndDate: "2024-05-01"}); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
	if _, err := env.reports.Generate(ctx, ReportQuery{StartDate: "2024-01-01", EndDate: "2024-05-01"}); !errors.Is(err, ErrRangeTooLong) {
		t.Errorf("expected ErrRangeTooLong, got %v", err)
	}
	if _, err := env.reports.Generate(ctx, ReportQuery{StartDate: "yesterday"}); err == nil {
		t.Error("expected date format error")
	}

	r, err := env.reports.Generate(ctx, ReportQuery{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if model.FormatDate(r.StartDate) != "2024-05-10" || model.FormatDate(r.EndDate) != "2024-05-10" {
		t.Errorf("dates should default to today, got %s..%s", model.FormatDate(r.StartDate), model.FormatDate(r.EndDate))
	}
}

func TestReportService_CacheInvalidatedByWrites(t *testing.T) {
	t.Parallel()
	env := newReportTestEnv(t)
	ctx := context.Background()
	q := ReportQuery{StartDate: "2024-05-01", EndDate: "2024-05-02"}

	env.order(t, env.north, "2024-05-01", "100", "0", "0", "pending")

	if _, err := env.reports.Generate(ctx, q); err != nil {
		t.Fatal(err)
	}
	again, err := env.reports.Generate(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if snap := env.rec.Snapshot(); snap.ReportCacheHits != 1 || snap.ReportCacheMisses != 1 {
		t.Errorf("hits = %d misses = %d", snap.ReportCacheHits, snap.ReportCacheMisses)
	}
	if !again.Summary.Totals.Cost.Equal(dec("100")) {
		t.Errorf("cached report lost totals: %+v", again.Summary.Totals)
	}

	env.order(t, env.north, "2024-05-02", "50", "0", "0", "pending")

	fresh, err := env.reports.Generate(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh.Summary.Totals.Cost.Equal(dec("150")) {
		t.Errorf("write did not invalidate cache: cost = %s", fresh.Summary.Totals.Cost)
	}
}

func TestReportService_CustomerMoveInvalidatesTerritoryReport(t *testing.T) {
	t.Parallel()
	env := newReportTestEnv(t)
	ctx := context.Background()
	q := ReportQuery{StartDate: "2024-05-01", EndDate: "2024-05-01", Territory: "North"}

	env.order(t, env.north, "2024-05-01", "100", "0", "0", "pending")

	cached, err := env.reports.Generate(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(cached.Rows))
	}

	in := validCustomerInput()
	in.Territory = "South"
	if _, err := env.customers.Update(ctx, env.north, in); err != nil {
		t.Fatal(err)
	}

	moved, err := env.reports.Generate(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(moved.Rows) != 0 || !moved.Summary.Totals.Cost.IsZero() {
		t.Errorf("North report still shows the moved customer: rows = %d cost = %s", len(moved.Rows), moved.Summary.Totals.Cost)
	}
	if snap := env.rec.Snapshot(); snap.ReportCacheHits != 0 {
		t.Errorf("report served from a stale cache entry, hits = %d", snap.ReportCacheHits)
	}
}
