package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/export"
	"github.com/deliverydesk/deliverydesk/internal/handler/dto"
	"github.com/deliverydesk/deliverydesk/internal/metrics"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/service"
)

// OrderService is the order behaviour the handlers need.
type OrderService interface {
	List(ctx context.Context, q service.OrderQuery) ([]model.Order, error)
	Get(ctx context.Context, id int64) (*model.Order, error)
	DailySheet(ctx context.Context, date time.Time) (*model.DailySheet, error)
	Create(ctx context.Context, in service.OrderInput) (*model.Order, error)
	Update(ctx context.Context, id int64, in service.OrderInput) (*model.Order, error)
	SetStatus(ctx context.Context, id int64, status string) (*model.Order, error)
	Delete(ctx context.Context, id int64) error
}

// CustomerGetter loads the customer printed on an invoice.
type CustomerGetter interface {
	Get(ctx context.Context, id int64) (*model.Customer, error)
}

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	svc       OrderService
	customers CustomerGetter
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderService, customers CustomerGetter, logger *slog.Logger, recorder metrics.Recorder) *OrderHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &OrderHandler{svc: svc, customers: customers, logger: logger, metrics: recorder}
}

// List handles GET /api/orders?start_date&end_date&customer_id&status.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := service.OrderQuery{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Status:    q.Get("status"),
	}
	if raw := q.Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeFieldError(w, "customer_id", "customer_id must be a positive integer")
			return
		}
		query.CustomerID = id
	}

	orders, err := h.svc.List(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToOrderList(orders))
}

// Daily handles GET /api/orders/{date}. It returns a bare array because
// that is what the dashboard table loads.
func (h *OrderHandler) Daily(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r, "date")
	if !ok {
		return
	}
	sheet, err := h.svc.DailySheet(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToDailyRows(sheet))
}

// DailySheet handles GET /api/orders/{date}/sheet.
func (h *OrderHandler) DailySheet(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r, "date")
	if !ok {
		return
	}
	sheet, err := h.svc.DailySheet(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToDailySheetResponse(sheet))
}

// Get handles GET /api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToOrderResponse(o))
}

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeOrderInput(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ToOrderResponse(o))
}

// Update handles PUT /api/orders/{id}. Omitted fields keep their value.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, ok := decodeOrderInput(w, r)
	if !ok {
		return
	}
	h.update(w, r, id, in)
}

// LegacyUpdate handles PUT /orders, where the order page sends the id in the
// body, both from the edit form and from the status toggle.
func (h *OrderHandler) LegacyUpdate(w http.ResponseWriter, r *http.Request) {
	var req dto.LegacyOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		writeFieldError(w, "id", "id is required")
		return
	}
	in, ok := orderInput(w, req.OrderRequest)
	if !ok {
		return
	}
	h.update(w, r, int64(req.ID), in)
}

func (h *OrderHandler) update(w http.ResponseWriter, r *http.Request, id int64, in service.OrderInput) {
	o, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToOrderResponse(o))
}

// SetStatus handles PATCH /api/orders/{id}/status.
func (h *OrderHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.svc.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToOrderResponse(o))
}

// Delete handles DELETE /api/orders/{id}.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invoice handles GET /api/orders/{id}/invoice.
func (h *OrderHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	c, err := h.customers.Get(r.Context(), o.CustomerID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteInvoicePDF(&buf, export.Invoice{Order: o, Customer: c}); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.metrics.IncExport("invoice")
	writeAttachment(w, export.FormatPDF.ContentType(), export.InvoiceFileName(o.ID), buf.Bytes())
}

func decodeOrderInput(w http.ResponseWriter, r *http.Request) (service.OrderInput, bool) {
	var req dto.OrderRequest
	if !decodeJSON(w, r, &req) {
		return service.OrderInput{}, false
	}
	return orderInput(w, req)
}

func orderInput(w http.ResponseWriter, req dto.OrderRequest) (service.OrderInput, bool) {
	orderDate, deliveryDate, err := req.ParseDates()
	if err != nil {
		var derr *dto.DateFieldError
		if errors.As(err, &derr) {
			writeFieldError(w, derr.Field, derr.Error())
		} else {
			writeFieldError(w, "date", err.Error())
		}
		return service.OrderInput{}, false
	}
	return service.OrderInput{
		CustomerID:        req.CustomerID.Int64(),
		OrderDate:         orderDate,
		DeliveryDate:      deliveryDate,
		TotalCases:        req.TotalCases,
		TotalCost:         req.TotalCost,
		UnitPrice:         req.UnitPrice,
		PaymentCash:       req.PaymentCash,
		PaymentCheck:      req.PaymentCheck,
		PaymentCredit:     req.PaymentCredit,
		DriverExpense:     req.DriverExpense,
		IsOneTimeDelivery: req.IsOneTimeDelivery,
		Status:            req.Status,
	}, true
}

// writeAttachment sends a fully rendered file download.
func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
