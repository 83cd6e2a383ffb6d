package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/deliverydesk/deliverydesk/internal/export"
	"github.com/deliverydesk/deliverydesk/internal/handler/dto"
	"github.com/deliverydesk/deliverydesk/internal/metrics"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/service"
)

// ReportService builds date-range reports.
type ReportService interface {
	Generate(ctx context.Context, q service.ReportQuery) (*model.Report, error)
}

// ReportHandler serves reports and their file exports.
type ReportHandler struct {
	svc     ReportService
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(svc ReportService, logger *slog.Logger, recorder metrics.Recorder) *ReportHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ReportHandler{svc: svc, logger: logger, metrics: recorder}
}

// Get handles GET /api/reports?start_date&end_date&territory.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Generate(r.Context(), reportQuery(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToReportResponse(report))
}

// Export handles GET /api/reports/export?format=pdf|xlsx|csv. The file is
// rendered in full before any header is sent so failures still get a JSON
// error body.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeFieldError(w, "format", err.Error())
		return
	}

	report, err := h.svc.Generate(r.Context(), reportQuery(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReport(&buf, report, format); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.metrics.IncExport(string(format))
	writeAttachment(w, format.ContentType(), export.ReportFileName(report, format), buf.Bytes())
}

func reportQuery(r *http.Request) service.ReportQuery {
	q := r.URL.Query()
	return service.ReportQuery{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Territory: q.Get("territory"),
	}
}
