package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/service"
)

func TestCustomerHandler_List(t *testing.T) {
	t.Parallel()
	fake := newFakeCustomers()
	h := NewCustomerHandler(fake, testLogger())

	rec := serve(http.MethodGet, "/api/customers", "/api/customers?territory=North&delivery_day=mon&q=deli", nil, h.List)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	want := service.CustomerQuery{Territory: "North", DeliveryDay: "mon", Query: "deli"}
	if fake.lastQuery != want {
		t.Errorf("query = %+v", fake.lastQuery)
	}

	var got []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0]["balance"] != 70.5 {
		t.Errorf("balance should be a JSON number, got %+v", got)
	}
}

func TestCustomerHandler_ListEmptyIsArray(t *testing.T) {
	t.Parallel()
	h := NewCustomerHandler(newFakeCustomers(), testLogger())

	rec := serve(http.MethodGet, "/api/customers", "/api/customers?territory=Nowhere", nil, h.List)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCustomerHandler_CRUD(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		pattern    string
		target     string
		body       string
		handler    func(*CustomerHandler) http.HandlerFunc
		wantStatus int
	}{
		{"get", http.MethodGet, "/api/customers/{id}", "/api/customers/1", "", func(h *CustomerHandler) http.HandlerFunc { return h.Get }, http.StatusOK},
		{"get missing", http.MethodGet, "/api/customers/{id}", "/api/customers/99", "", func(h *CustomerHandler) http.HandlerFunc { return h.Get }, http.StatusNotFound},
		{"get bad id", http.MethodGet, "/api/customers/{id}", "/api/customers/abc", "", func(h *CustomerHandler) http.HandlerFunc { return h.Get }, http.StatusBadRequest},
		{"create", http.MethodPost, "/api/customers", "/api/customers", `{"name":"Bakery","address":"2 Elm","delivery_day":"Tue","account_type":"Regular","territory":"South"}`, func(h *CustomerHandler) http.HandlerFunc { return h.Create }, http.StatusCreated},
		{"create invalid", http.MethodPost, "/api/customers", "/api/customers", `{"name":""}`, func(h *CustomerHandler) http.HandlerFunc { return h.Create }, http.StatusBadRequest},
		{"create bad json", http.MethodPost, "/api/customers", "/api/customers", `{"name":`, func(h *CustomerHandler) http.HandlerFunc { return h.Create }, http.StatusBadRequest},
		{"update", http.MethodPut, "/api/customers/{id}", "/api/customers/1", `{"name":"Corner Deli","territory":"East"}`, func(h *CustomerHandler) http.HandlerFunc { return h.Update }, http.StatusOK},
		{"delete with orders", http.MethodDelete, "/api/customers/{id}", "/api/customers/1", "", func(h *CustomerHandler) http.HandlerFunc { return h.Delete }, http.StatusConflict},
		{"delete missing", http.MethodDelete, "/api/customers/{id}", "/api/customers/42", "", func(h *CustomerHandler) http.HandlerFunc { return h.Delete }, http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewCustomerHandler(newFakeCustomers(), testLogger())
			var rec *httptest.ResponseRecorder
			if tt.body == "" {
				rec = serve(tt.method, tt.pattern, tt.target, nil, tt.handler(h))
			} else {
				rec = serve(tt.method, tt.pattern, tt.target, jsonBody(tt.body), tt.handler(h))
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestCustomerHandler_DeleteWithoutOrders(t *testing.T) {
	t.Parallel()
	fake := newFakeCustomers()
	fake.hasOrders = map[int64]bool{}
	h := NewCustomerHandler(fake, testLogger())

	rec := serve(http.MethodDelete, "/api/customers/{id}", "/api/customers/1", nil, h.Delete)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
	}
	if len(fake.customers) != 0 {
		t.Error("customer not deleted")
	}
}

func TestCustomerHandler_Territories(t *testing.T) {
	t.Parallel()
	h := NewCustomerHandler(newFakeCustomers(), testLogger())

	rec := serve(http.MethodGet, "/api/territories", "/api/territories", nil, h.Territories)
	var got []string
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "North" {
		t.Errorf("territories = %v", got)
	}
}

func TestCustomerHandler_Import(t *testing.T) {
	t.Parallel()
	fake := newFakeCustomers()
	h := NewCustomerHandler(fake, testLogger())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "customers.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("name,address,delivery_day,account_type,territory\nDeli,1 Main,Mon,Regular,North\n"))
	_ = mw.Close()

	rec := serve(http.MethodPost, "/api/customers/import", "/api/customers/import", &body, h.Import, func(r *http.Request) {
		r.Header.Set("Content-Type", mw.FormDataContentType())
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if fake.importName != "customers.csv" || !strings.Contains(fake.importBody, "Deli,1 Main") {
		t.Errorf("upload not passed through: %q %q", fake.importName, fake.importBody)
	}

	var res service.ImportResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 || len(res.Errors) != 1 || res.Errors[0].Row != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestCustomerHandler_ImportRequiresMultipart(t *testing.T) {
	t.Parallel()
	h := NewCustomerHandler(newFakeCustomers(), testLogger())

	rec := serve(http.MethodPost, "/api/customers/import", "/api/customers/import", jsonBody(`{}`), h.Import)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Field != "file" {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestCustomerHandler_PageWritesTakeIDFromBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		body       string
		handler    func(*CustomerHandler) http.HandlerFunc
		wantStatus int
	}{
		{"update with string id", http.MethodPut, `{"id":"1","name":"Corner Deli","territory":"South"}`, func(h *CustomerHandler) http.HandlerFunc { return h.LegacyUpdate }, http.StatusOK},
		{"update without id", http.MethodPut, `{"name":"Corner Deli"}`, func(h *CustomerHandler) http.HandlerFunc { return h.LegacyUpdate }, http.StatusBadRequest},
		{"update missing customer", http.MethodPut, `{"id":9,"name":"Ghost"}`, func(h *CustomerHandler) http.HandlerFunc { return h.LegacyUpdate }, http.StatusNotFound},
		{"delete with orders", http.MethodDelete, `{"id":"1"}`, func(h *CustomerHandler) http.HandlerFunc { return h.LegacyDelete }, http.StatusConflict},
		{"delete bad id", http.MethodDelete, `{"id":"x"}`, func(h *CustomerHandler) http.HandlerFunc { return h.LegacyDelete }, http.StatusBadRequest},
		{"delete without id", http.MethodDelete, `{}`, func(h *CustomerHandler) http.HandlerFunc { return h.LegacyDelete }, http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewCustomerHandler(newFakeCustomers(), testLogger())
			rec := serve(tt.method, "/customers", "/customers", jsonBody(tt.body), tt.handler(h))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("page expects a JSON body: %v", err)
			}
		})
	}
}

func TestCustomerHandler_LegacyDeleteAnswersJSON(t *testing.T) {
	t.Parallel()
	fake := newFakeCustomers()
	fake.customers[2] = &model.Customer{ID: 2, Name: "Bakery"}
	h := NewCustomerHandler(fake, testLogger())

	rec := serve(http.MethodDelete, "/customers", "/customers", jsonBody(`{"id":"2"}`), h.LegacyDelete)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Success bool  `json:"success"`
		ID      int64 `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if !got.Success || got.ID != 2 {
		t.Errorf("body = %+v", got)
	}
	if _, ok := fake.customers[2]; ok {
		t.Error("customer 2 should be gone")
	}
}
