package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deliverydesk/deliverydesk/internal/handler/dto"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/service"
)

// ExpenseService is the driver expense behaviour the handlers need.
type ExpenseService interface {
	Get(ctx context.Context, date time.Time) (*model.DriverExpense, error)
	Save(ctx context.Context, date time.Time, amount decimal.Decimal, notes string) (*model.DriverExpense, error)
}

// ExpenseHandler handles daily driver expense requests.
type ExpenseHandler struct {
	svc    ExpenseService
	logger *slog.Logger
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(svc ExpenseService, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{svc: svc, logger: logger}
}

// Get handles GET /api/driver-expenses/{date} and its legacy alias.
// A day with nothing recorded is a 404; the dashboard reads that as zero.
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r, "date")
	if !ok {
		return
	}
	e, err := h.svc.Get(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToExpenseResponse(e))
}

// Put handles PUT /api/driver-expenses/{date}.
func (h *ExpenseHandler) Put(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r, "date")
	if !ok {
		return
	}
	var req dto.ExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount == nil {
		writeFieldError(w, "amount", "amount is required")
		return
	}
	h.save(w, r, date, *req.Amount, req.Notes)
}

// LegacySave handles POST /api/daily_driver_expense {date, amount}.
// Notes already recorded for the day are kept.
func (h *ExpenseHandler) LegacySave(w http.ResponseWriter, r *http.Request) {
	var req dto.LegacyExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		writeFieldError(w, "date", err.Error())
		return
	}
	if req.Amount == nil {
		writeFieldError(w, "amount", "amount is required")
		return
	}

	notes := ""
	existing, err := h.svc.Get(r.Context(), date)
	switch {
	case err == nil:
		notes = existing.Notes
	case !errors.Is(err, service.ErrExpenseNotFound):
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.save(w, r, date, *req.Amount, notes)
}

func (h *ExpenseHandler) save(w http.ResponseWriter, r *http.Request, date time.Time, amount decimal.Decimal, notes string) {
	e, err := h.svc.Save(r.Context(), date, amount, notes)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToExpenseResponse(e))
}
