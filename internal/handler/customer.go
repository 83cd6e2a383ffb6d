package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/deliverydesk/deliverydesk/internal/handler/dto"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/service"
)

// importFormMemory is how much of a multipart upload is buffered in memory
// before spilling to a temp file.
const importFormMemory = 4 << 20

// CustomerService is the customer behaviour the handlers need.
type CustomerService interface {
	List(ctx context.Context, q service.CustomerQuery) ([]model.Customer, error)
	Get(ctx context.Context, id int64) (*model.Customer, error)
	Create(ctx context.Context, in service.CustomerInput) (*model.Customer, error)
	Update(ctx context.Context, id int64, in service.CustomerInput) (*model.Customer, error)
	Delete(ctx context.Context, id int64) error
	Territories(ctx context.Context) ([]string, error)
	Import(ctx context.Context, r io.Reader, filename string) (*service.ImportResult, error)
}

// CustomerHandler handles customer-related HTTP requests.
type CustomerHandler struct {
	svc    CustomerService
	logger *slog.Logger
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(svc CustomerService, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{svc: svc, logger: logger}
}

// List handles GET /api/customers.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	customers, err := h.svc.List(r.Context(), service.CustomerQuery{
		Territory:   q.Get("territory"),
		DeliveryDay: q.Get("delivery_day"),
		Query:       q.Get("q"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if customers == nil {
		customers = []model.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

// Get handles GET /api/customers/{id}.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Create handles POST /api/customers.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.Create(r.Context(), customerInput(req))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Update handles PUT /api/customers/{id}.
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.CustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.update(w, r, id, req)
}

// LegacyUpdate handles PUT /customers, where the customer page sends the id
// in the body.
func (h *CustomerHandler) LegacyUpdate(w http.ResponseWriter, r *http.Request) {
	var req dto.LegacyCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		writeFieldError(w, "id", "id is required")
		return
	}
	h.update(w, r, int64(req.ID), req.CustomerRequest)
}

func (h *CustomerHandler) update(w http.ResponseWriter, r *http.Request, id int64, req dto.CustomerRequest) {
	c, err := h.svc.Update(r.Context(), id, customerInput(req))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/customers/{id}.
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// LegacyDelete handles DELETE /customers with {"id": ...} in the body. The
// page parses every response as JSON, so it answers 200 with a body.
func (h *CustomerHandler) LegacyDelete(w http.ResponseWriter, r *http.Request) {
	var req dto.IDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		writeFieldError(w, "id", "id is required")
		return
	}
	if err := h.svc.Delete(r.Context(), int64(req.ID)); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.LegacyResult{Success: true, ID: int64(req.ID)})
}

// Territories handles GET /api/territories.
func (h *CustomerHandler) Territories(w http.ResponseWriter, r *http.Request) {
	territories, err := h.svc.Territories(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if territories == nil {
		territories = []string{}
	}
	writeJSON(w, http.StatusOK, territories)
}

// Import handles POST /api/customers/import with a multipart "file" field.
func (h *CustomerHandler) Import(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeFieldError(w, "file", "expected a multipart/form-data upload")
		return
	}
	if err := r.ParseMultipartForm(importFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge, "upload too large")
			return
		}
		writeFieldError(w, "file", "could not read upload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFieldError(w, "file", "file is required")
		return
	}
	defer file.Close()

	res, err := h.svc.Import(r.Context(), file, header.Filename)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	status := http.StatusCreated
	if res.Created == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func customerInput(req dto.CustomerRequest) service.CustomerInput {
	return service.CustomerInput{
		Name:        req.Name,
		Address:     req.Address,
		DeliveryDay: req.DeliveryDay,
		AccountType: req.AccountType,
		Territory:   req.Territory,
	}
}
