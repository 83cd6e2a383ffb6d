// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deliverydesk/deliverydesk/internal/export"
	"github.com/deliverydesk/deliverydesk/internal/handler/dto"
	"github.com/deliverydesk/deliverydesk/internal/ledger"
	"github.com/deliverydesk/deliverydesk/internal/middleware"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/service"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeValidation   = "VALIDATION_ERROR"
	codeInvalidJSON  = "INVALID_JSON"
	codeNotFound     = "NOT_FOUND"
	codeConflict     = "CONFLICT"
	codeLocked       = "ORDER_LOCKED"
	codeUnauthorized = "UNAUTHORIZED"
	codeRateLimited  = "RATE_LIMITED"
	codeTooLarge     = "PAYLOAD_TOO_LARGE"
	codeInternal     = "INTERNAL_ERROR"
)

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

func writeFieldError(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: message, Code: codeValidation, Field: field})
}

// writeServiceError maps service-layer errors to HTTP responses. Anything
// unrecognised is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		verr    *service.ValidationError
		ferr    *ledger.FieldError
		derr    *dto.DateFieldError
		limited *service.RateLimitedError
	)

	switch {
	case errors.As(err, &verr):
		writeFieldError(w, verr.Field, verr.Error())
	case errors.As(err, &ferr):
		writeFieldError(w, ferr.Field, ferr.Error())
	case errors.As(err, &derr):
		writeFieldError(w, derr.Field, derr.Error())
	case errors.Is(err, service.ErrNegativeAmount),
		errors.Is(err, service.ErrOverpayment),
		errors.Is(err, service.ErrInvalidDateRange),
		errors.Is(err, service.ErrRangeTooLong),
		errors.Is(err, export.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrExpenseNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, service.ErrCustomerHasOrders),
		errors.Is(err, service.ErrUserExists):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, service.ErrOrderLocked):
		writeError(w, http.StatusForbidden, codeLocked, err.Error())
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, codeRateLimited, limited.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
	default:
		logger.Error("request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

// decodeJSON reads the request body into dst. It writes the error response
// itself and returns false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, codeInvalidJSON, "request body is required")
		default:
			writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON body")
		}
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid "+name)
		return 0, false
	}
	return id, true
}

// pathDate parses a YYYY-MM-DD URL parameter.
func pathDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := chi.URLParam(r, name)
	d, err := model.ParseDate(raw)
	if err != nil {
		writeFieldError(w, name, err.Error())
		return time.Time{}, false
	}
	return d, true
}
