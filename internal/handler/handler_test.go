package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/export"
	"github.com/deliverydesk/deliverydesk/internal/handler/dto"
	"github.com/deliverydesk/deliverydesk/internal/ledger"
	"github.com/deliverydesk/deliverydesk/internal/service"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != codeNotFound {
		t.Errorf("NotFound wrote %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	MethodNotAllowed(rec, httptest.NewRequest(http.MethodTrace, "/api/orders", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("MethodNotAllowed wrote %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestWriteServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"validation", &service.ValidationError{Field: "name", Message: "is required"}, http.StatusBadRequest, codeValidation, "name"},
		{"ledger field", &ledger.FieldError{Field: "payment_cash", Err: ledger.ErrOverpayment}, http.StatusBadRequest, codeValidation, "payment_cash"},
		{"wrapped overpayment", fmt.Errorf("update: %w", service.ErrOverpayment), http.StatusBadRequest, codeValidation, ""},
		{"date range", service.ErrInvalidDateRange, http.StatusBadRequest, codeValidation, ""},
		{"bad format", fmt.Errorf("%w: %q", export.ErrUnsupportedFormat, "doc"), http.StatusBadRequest, codeValidation, ""},
		{"customer missing", service.ErrCustomerNotFound, http.StatusNotFound, codeNotFound, ""},
		{"expense missing", service.ErrExpenseNotFound, http.StatusNotFound, codeNotFound, ""},
		{"has orders", service.ErrCustomerHasOrders, http.StatusConflict, codeConflict, ""},
		{"user exists", service.ErrUserExists, http.StatusConflict, codeConflict, ""},
		{"locked", service.ErrOrderLocked, http.StatusForbidden, codeLocked, ""},
		{"bad credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, codeUnauthorized, ""},
		{"rate limited", &service.RateLimitedError{RetryAfter: 2 * time.Second}, http.StatusTooManyRequests, codeRateLimited, ""},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, codeInternal, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil), testLogger(), tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeError(t, rec)
			if body.Code != tt.wantCode || body.Field != tt.wantField {
				t.Errorf("body = %+v", body)
			}
			if tt.wantStatus == http.StatusInternalServerError && body.Error != "internal server error" {
				t.Errorf("internal details leaked: %q", body.Error)
			}
		})
	}
}

func TestWriteServiceError_RetryAfter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil), testLogger(),
		&service.RateLimitedError{RetryAfter: 1500 * time.Millisecond})

	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantOK   bool
		wantCode int
	}{
		{"valid", `{"status":"delivered"}`, true, 0},
		{"empty", ``, false, http.StatusBadRequest},
		{"malformed", `{"status":`, false, http.StatusBadRequest},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", jsonBody(tt.body))
		var dst dto.StatusRequest
		ok := decodeJSON(rec, req, &dst)
		if ok != tt.wantOK {
			t.Errorf("%s: ok = %v", tt.name, ok)
		}
		if !ok && rec.Code != tt.wantCode {
			t.Errorf("%s: status = %d", tt.name, rec.Code)
		}
	}
}
