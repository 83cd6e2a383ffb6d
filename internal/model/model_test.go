package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalizeDeliveryDay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Monday", "Monday", true},
		{"  friday ", "Friday", true},
		{"SAT", "Saturday", true},
		{"thur", "Thursday", true},
		{"mo", "", false},
		{"Funday", "", false},
		{"", "", false},
		{"mondays", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeDeliveryDay(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeDeliveryDay(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestOrderStatus_IsValid(t *testing.T) {
	t.Parallel()

	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusDelivered, OrderStatusCancelled} {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []OrderStatus{"", "shipped", "Pending"} {
		if s.IsValid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestOrder_BalanceContribution(t *testing.T) {
	t.Parallel()

	o := &Order{
		TotalCost:     decimal.RequireFromString("150"),
		PaymentCash:   decimal.RequireFromString("50"),
		PaymentCredit: decimal.RequireFromString("25"),
		Status:        OrderStatusDelivered,
	}

	if !o.PaymentReceived().Equal(decimal.RequireFromString("75")) {
		t.Errorf("PaymentReceived() = %s, want 75", o.PaymentReceived())
	}
	if !o.BalanceContribution().Equal(decimal.RequireFromString("75")) {
		t.Errorf("BalanceContribution() = %s, want 75", o.BalanceContribution())
	}

	o.Status = OrderStatusCancelled
	if !o.BalanceContribution().IsZero() {
		t.Errorf("cancelled order should not contribute, got %s", o.BalanceContribution())
	}
}

func TestDateOf(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 03:00 UTC on the 2nd is still the evening of the 1st in Chicago.
	instant := time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC)
	if got := FormatDate(DateOf(instant, loc)); got != "2024-03-01" {
		t.Errorf("DateOf = %s, want 2024-03-01", got)
	}
	if got := FormatDate(DateOf(instant, time.UTC)); got != "2024-03-02" {
		t.Errorf("DateOf UTC = %s, want 2024-03-02", got)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if got.Location() != time.UTC || got.Hour() != 0 {
		t.Errorf("expected midnight UTC, got %v", got)
	}

	for _, bad := range []string{"", "2024-2-29", "02/29/2024", "2023-02-29"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) should fail", bad)
		}
	}
}
