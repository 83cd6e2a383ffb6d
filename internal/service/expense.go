package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/deliverydesk/deliverydesk/internal/events"
	"github.com/deliverydesk/deliverydesk/internal/ledger"
	"github.com/deliverydesk/deliverydesk/internal/metrics"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/repository"
)

const maxNotesLength = 1000

// ExpenseService handles the daily driver expense.
type ExpenseService struct {
	store   ExpenseStore
	reports ReportInvalidator
	events  Emitter
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewExpenseService creates a new ExpenseService. reports may be nil.
func NewExpenseService(store ExpenseStore, reports ReportInvalidator, emitter Emitter, logger *slog.Logger, recorder metrics.Recorder) *ExpenseService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &ExpenseService{
		store:   store,
		reports: reports,
		events:  emitter,
		logger:  logger.With("component", "service.expense"),
		metrics: recorder,
	}
}

// Get returns the expense recorded for date.
func (s *ExpenseService) Get(ctx context.Context, date time.Time) (*model.DriverExpense, error) {
	e, err := s.store.GetDriverExpense(ctx, date)
	if err != nil {
		if errors.Is(err, repository.ErrExpenseNotFound) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to get driver expense: %w", err)
	}
	return e, nil
}

// Save creates or replaces the expense for date.
func (s *ExpenseService) Save(ctx context.Context, date time.Time, amount decimal.Decimal, notes string) (*model.DriverExpense, error) {
	if err := ledger.CheckAmount("amount", amount); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return nil, invalid("notes", "must be at most %d characters", maxNotesLength)
	}

	e := &model.DriverExpense{
		Date:   date,
		Amount: amount.Round(2),
		Notes:  notes,
	}
	if err := s.store.UpsertDriverExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to save driver expense: %w", err)
	}

	s.metrics.IncExpenseSaved()
	invalidateReports(ctx, s.reports, s.logger)
	s.events.Emit(ctx, events.EntityExpense, model.FormatDate(date), events.ActionSaved, map[string]any{
		"amount": e.Amount.StringFixed(2),
		"notes":  e.Notes,
	})
	return e, nil
}
