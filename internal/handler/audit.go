package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/deliverydesk/deliverydesk/internal/model"
)

// AuditService reads the audit trail.
type AuditService interface {
	List(ctx context.Context, entity, entityID string, limit int) ([]model.AuditEntry, error)
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	svc    AuditService
	logger *slog.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(svc AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, logger: logger}
}

// List handles GET /api/audit?entity=&entity_id=&limit=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeFieldError(w, "limit", "limit must be an integer")
			return
		}
		limit = n
	}

	entries, err := h.svc.List(r.Context(), q.Get("entity"), q.Get("entity_id"), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
