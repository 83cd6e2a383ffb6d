package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deliverydesk/deliverydesk/internal/metrics"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/repository"
)

// ReportInvalidator drops cached reports after a write.
type ReportInvalidator interface {
	BumpReportGeneration(ctx context.Context) error
}

func invalidateReports(ctx context.Context, inv ReportInvalidator, logger *slog.Logger) {
	if inv == nil {
		return
	}
	if err := inv.BumpReportGeneration(ctx); err != nil {
		logger.Warn("failed to invalidate report cache", "error", err)
	}
}

// ReportOptions configures ReportService.
type ReportOptions struct {
	Clock        Clock
	MaxRangeDays int
	CacheTTL     time.Duration
}

// ReportService builds date-range financial reports.
type ReportService struct {
	orders   OrderStore
	expenses ExpenseStore
	cache    ReportCache
	logger   *slog.Logger
	metrics  metrics.Recorder
	opts     ReportOptions
}

// NewReportService creates a new ReportService. cache may be nil.
func NewReportService(orders OrderStore, expenses ExpenseStore, cache ReportCache, logger *slog.Logger, recorder metrics.Recorder, opts ReportOptions) *ReportService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ReportService{
		orders:   orders,
		expenses: expenses,
		cache:    cache,
		logger:   logger.With("component", "service.report"),
		metrics:  recorder,
		opts:     opts,
	}
}

// ReportQuery holds raw report parameters. Empty dates mean today.
type ReportQuery struct {
	StartDate string
	EndDate   string
	Territory string
}

// Generate returns the report for the query, from cache when possible.
func (s *ReportService) Generate(ctx context.Context, q ReportQuery) (*model.Report, error) {
	today := s.opts.Clock.Today()
	start, err := parseOptionalDate("start_date", q.StartDate, today)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate("end_date", q.EndDate, today)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if s.opts.MaxRangeDays > 0 && days > s.opts.MaxRangeDays {
		return nil, fmt.Errorf("%w: at most %d days", ErrRangeTooLong, s.opts.MaxRangeDays)
	}
	territory := strings.TrimSpace(q.Territory)

	params := strings.Join([]string{model.FormatDate(start), model.FormatDate(end), territory}, "|")
	generation, cached := s.fromCache(ctx, params)
	if cached != nil {
		return cached, nil
	}

	began := time.Now()
	report, err := s.build(ctx, start, end, territory)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveReportDuration(time.Since(began))

	if s.cache != nil && generation >= 0 {
		if data, err := json.Marshal(report); err == nil {
			if err := s.cache.SetReport(ctx, generation, params, data, s.opts.CacheTTL); err != nil {
				s.logger.Warn("failed to cache report", "error", err)
			}
		}
	}

	return report, nil
}

// fromCache returns the current generation and, on a hit, the cached report.
// A generation of -1 means the cache is unavailable.
func (s *ReportService) fromCache(ctx context.Context, params string) (int64, *model.Report) {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return -1, nil
	}

	generation, err := s.cache.ReportGeneration(ctx)
	if err != nil {
		s.logger.Warn("report cache unavailable", "error", err)
		return -1, nil
	}

	data, hit, err := s.cache.GetReport(ctx, generation, params)
	if err != nil {
		s.logger.Warn("report cache read failed", "error", err)
		return generation, nil
	}
	if !hit {
		s.metrics.IncReportCacheMiss()
		return generation, nil
	}

	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		s.metrics.IncReportCacheMiss()
		return generation, nil
	}
	s.metrics.IncReportCacheHit()
	return generation, &report
}

func (s *ReportService) build(ctx context.Context, start, end time.Time, territory string) (*model.Report, error) {
	orders, err := s.orders.ListOrders(ctx, repository.OrderFilter{
		StartDate: &start,
		EndDate:   &end,
		Statuses:  []string{string(model.OrderStatusPending), string(model.OrderStatusDelivered)},
		Territory: territory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	// The daily expense is not tied to a territory, so a territory report
	// only counts per-order driver expenses.
	var expenses []model.DriverExpense
	if territory == "" {
		expenses, err = s.expenses.ListDriverExpenses(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to list driver expenses: %w", err)
		}
	}

	report := buildReport(start, end, territory, orders, expenses)
	report.GeneratedAt = time.Now().UTC()
	return report, nil
}

// buildReport groups non-cancelled orders by delivery date.
func buildReport(start, end time.Time, territory string, orders []model.Order, expenses []model.DriverExpense) *model.Report {
	byDate := make(map[string]*model.ReportRow)
	row := func(date time.Time) *model.ReportRow {
		key := model.FormatDate(date)
		r, ok := byDate[key]
		if !ok {
			r = &model.ReportRow{Date: date, DriverExpense: decimal.Zero}
			byDate[key] = r
		}
		return r
	}

	for i := range orders {
		o := &orders[i]
		if o.IsCancelled() {
			continue
		}
		r := row(o.DeliveryDate)
		r.Totals.Add(o.Line())
		r.DriverExpense = r.DriverExpense.Add(o.DriverExpense)
	}
	for _, e := range expenses {
		if e.Amount.IsZero() {
			continue
		}
		r := row(e.Date)
		r.DriverExpense = r.DriverExpense.Add(e.Amount)
	}

	report := &model.Report{
		StartDate: start,
		EndDate:   end,
		Territory: territory,
		Rows:      make([]model.ReportRow, 0, len(byDate)),
		Summary:   model.ReportSummary{DriverExpenses: decimal.Zero},
	}
	for _, r := range byDate {
		report.Rows = append(report.Rows, *r)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].Date.Before(report.Rows[j].Date)
	})

	for _, r := range report.Rows {
		report.Summary.Totals.Merge(r.Totals)
		report.Summary.DriverExpenses = report.Summary.DriverExpenses.Add(r.DriverExpense)
	}
	report.Summary.NetIncome = report.Summary.Totals.NetIncome(report.Summary.DriverExpenses)
	return report
}
