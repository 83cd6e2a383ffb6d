package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deliverydesk/deliverydesk/internal/events"
	"github.com/deliverydesk/deliverydesk/internal/ledger"
	"github.com/deliverydesk/deliverydesk/internal/metrics"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/repository"
)

// OrderOptions configures OrderService.
type OrderOptions struct {
	Clock Clock
	// LockPastOrders rejects changes to orders delivered before today.
	LockPastOrders bool
}

// OrderService handles order business logic.
type OrderService struct {
	orders   OrderStore
	expenses ExpenseStore
	reports  ReportInvalidator
	events   Emitter
	logger   *slog.Logger
	metrics  metrics.Recorder
	clock    Clock
	lockPast bool
}

// NewOrderService creates a new OrderService. reports may be nil.
func NewOrderService(orders OrderStore, expenses ExpenseStore, reports ReportInvalidator, emitter Emitter, logger *slog.Logger, recorder metrics.Recorder, opts OrderOptions) *OrderService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &OrderService{
		orders:   orders,
		expenses: expenses,
		reports:  reports,
		events:   emitter,
		logger:   logger.With("component", "service.order"),
		metrics:  recorder,
		clock:    opts.Clock,
		lockPast: opts.LockPastOrders,
	}
}

// OrderInput carries client-supplied order fields. Nil means "not sent":
// defaults on create, unchanged on update. payment_received is never an
// input; it is always derived from the three payment fields.
type OrderInput struct {
	CustomerID        *int64
	OrderDate         *time.Time
	DeliveryDate      *time.Time
	TotalCases        *int
	TotalCost         *decimal.Decimal
	UnitPrice         *decimal.Decimal // When set, total_cost = cases × unit_price
	PaymentCash       *decimal.Decimal
	PaymentCheck      *decimal.Decimal
	PaymentCredit     *decimal.Decimal
	DriverExpense     *decimal.Decimal
	IsOneTimeDelivery *bool
	Status            *string
}

// OrderQuery filters List. Dates are YYYY-MM-DD; Status may be a
// comma-separated list.
type OrderQuery struct {
	StartDate  string
	EndDate    string
	CustomerID int64
	Status     string
}

// List returns orders matching the query.
func (s *OrderService) List(ctx context.Context, q OrderQuery) ([]model.Order, error) {
	filter := repository.OrderFilter{CustomerID: q.CustomerID}

	if q.StartDate != "" {
		start, err := parseOptionalDate("start_date", q.StartDate, time.Time{})
		if err != nil {
			return nil, err
		}
		filter.StartDate = &start
	}
	if q.EndDate != "" {
		end, err := parseOptionalDate("end_date", q.EndDate, time.Time{})
		if err != nil {
			return nil, err
		}
		filter.EndDate = &end
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, ErrInvalidDateRange
	}

	for _, raw := range strings.Split(q.Status, ",") {
		status := model.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
		if status == "" {
			continue
		}
		if !status.IsValid() {
			return nil, invalid("status", "must be pending, delivered or cancelled")
		}
		filter.Statuses = append(filter.Statuses, string(status))
	}

	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Get returns a single order.
func (s *OrderService) Get(ctx context.Context, id int64) (*model.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// DailySheet returns every order delivered on date with the day's totals.
// Cancelled orders are listed but left out of the totals.
func (s *OrderService) DailySheet(ctx context.Context, date time.Time) (*model.DailySheet, error) {
	orders, err := s.orders.ListOrders(ctx, repository.OrderFilter{StartDate: &date, EndDate: &date})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	sheet := &model.DailySheet{
		Date:     date,
		Orders:   orders,
		Editable: date.Equal(s.clock.Today()),
	}

	orderExpenses := decimal.Zero
	for i := range orders {
		if orders[i].IsCancelled() {
			continue
		}
		sheet.Totals.Add(orders[i].Line())
		orderExpenses = orderExpenses.Add(orders[i].DriverExpense)
	}

	daily := decimal.Zero
	expense, err := s.expenses.GetDriverExpense(ctx, date)
	switch {
	case err == nil:
		daily = expense.Amount
	case errors.Is(err, repository.ErrExpenseNotFound):
	default:
		return nil, fmt.Errorf("failed to get driver expense: %w", err)
	}

	sheet.DriverExpense = daily.Add(orderExpenses)
	sheet.NetIncome = sheet.Totals.NetIncome(sheet.DriverExpense)
	return sheet, nil
}

// Create validates and inserts an order, updating the customer's balance.
func (s *OrderService) Create(ctx context.Context, in OrderInput) (*model.Order, error) {
	if in.CustomerID == nil || *in.CustomerID <= 0 {
		return nil, invalid("customer_id", "is required")
	}
	if in.DeliveryDate == nil {
		return nil, invalid("delivery_date", "is required")
	}

	today := s.clock.Today()
	o := &model.Order{
		OrderDate: today,
		Status:    model.OrderStatusPending,
	}
	if err := in.apply(o); err != nil {
		return nil, err
	}

	if err := s.orders.CreateOrder(ctx, o); err != nil {
		return nil, s.mapWriteError("create", err)
	}

	s.afterWrite(ctx, events.ActionCreated, o)
	return o, nil
}

// Update applies a partial update and re-validates the merged order.
func (s *OrderService) Update(ctx context.Context, id int64, in OrderInput) (*model.Order, error) {
	today := s.clock.Today()

	updated, err := s.orders.UpdateOrder(ctx, id, func(o *model.Order) error {
		if err := s.checkLocked(o, today); err != nil {
			return err
		}
		if err := in.apply(o); err != nil {
			return err
		}
		return s.checkLocked(o, today)
	})
	if err != nil {
		return nil, s.mapWriteError("update", err)
	}

	s.afterWrite(ctx, events.ActionUpdated, updated)
	return updated, nil
}

// SetStatus changes only the order's status.
func (s *OrderService) SetStatus(ctx context.Context, id int64, status string) (*model.Order, error) {
	return s.Update(ctx, id, OrderInput{Status: &status})
}

// Delete removes an order and reverses its balance contribution.
func (s *OrderService) Delete(ctx context.Context, id int64) error {
	if s.lockPast {
		o, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkLocked(o, s.clock.Today()); err != nil {
			return err
		}
	}

	deleted, err := s.orders.DeleteOrder(ctx, id)
	if err != nil {
		return s.mapWriteError("delete", err)
	}

	s.afterWrite(ctx, events.ActionDeleted, deleted)
	return nil
}

func (s *OrderService) checkLocked(o *model.Order, today time.Time) error {
	if s.lockPast && o.DeliveryDate.Before(today) {
		return ErrOrderLocked
	}
	return nil
}

func (s *OrderService) mapWriteError(op string, err error) error {
	var verr *ValidationError
	var ferr *ledger.FieldError
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return ErrOrderNotFound
	case errors.Is(err, repository.ErrCustomerNotFound):
		return ErrCustomerNotFound
	case errors.Is(err, ErrOrderLocked), errors.As(err, &verr), errors.As(err, &ferr):
		return err
	case errors.Is(err, repository.ErrConstraint):
		return invalid("order", "violates amount constraints")
	}
	return fmt.Errorf("failed to %s order: %w", op, err)
}

func (s *OrderService) afterWrite(ctx context.Context, action string, o *model.Order) {
	s.metrics.IncOrderWrite(action)
	invalidateReports(ctx, s.reports, s.logger)
	s.events.Emit(ctx, events.EntityOrder, idString(o.ID), action, orderEventPayload(o))
}

// apply merges the input into o and validates the result.
func (in OrderInput) apply(o *model.Order) error {
	if in.CustomerID != nil {
		if *in.CustomerID <= 0 {
			return invalid("customer_id", "must be a positive id")
		}
		o.CustomerID = *in.CustomerID
	}
	if in.OrderDate != nil {
		o.OrderDate = *in.OrderDate
	}
	if in.DeliveryDate != nil {
		o.DeliveryDate = *in.DeliveryDate
	}
	if in.TotalCases != nil {
		o.TotalCases = *in.TotalCases
	}

	money := []struct {
		field string
		in    *decimal.Decimal
		dst   *decimal.Decimal
	}{
		{"total_cost", in.TotalCost, &o.TotalCost},
		{"payment_cash", in.PaymentCash, &o.PaymentCash},
		{"payment_check", in.PaymentCheck, &o.PaymentCheck},
		{"payment_credit", in.PaymentCredit, &o.PaymentCredit},
		{"driver_expense", in.DriverExpense, &o.DriverExpense},
	}
	for _, m := range money {
		if m.in != nil {
			*m.dst = m.in.Round(2)
		}
	}

	if in.UnitPrice != nil {
		if err := ledger.CheckAmount("unit_price", *in.UnitPrice); err != nil {
			return err
		}
		o.TotalCost = ledger.CostFor(o.TotalCases, *in.UnitPrice)
	}

	if in.IsOneTimeDelivery != nil {
		o.IsOneTimeDelivery = *in.IsOneTimeDelivery
	}
	if in.Status != nil {
		status := model.OrderStatus(strings.ToLower(strings.TrimSpace(*in.Status)))
		if !status.IsValid() {
			return invalid("status", "must be pending, delivered or cancelled")
		}
		o.Status = status
	}

	if o.DeliveryDate.IsZero() {
		return invalid("delivery_date", "is required")
	}
	if err := o.Line().Validate(); err != nil {
		return err
	}
	return ledger.CheckAmount("driver_expense", o.DriverExpense)
}

func orderEventPayload(o *model.Order) map[string]any {
	return map[string]any{
		"customer_id":      o.CustomerID,
		"delivery_date":    model.FormatDate(o.DeliveryDate),
		"total_cases":      o.TotalCases,
		"total_cost":       o.TotalCost.StringFixed(2),
		"payment_received": o.PaymentReceived().StringFixed(2),
		"status":           string(o.Status),
	}
}
