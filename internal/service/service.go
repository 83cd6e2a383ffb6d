// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/cache"
	"github.com/deliverydesk/deliverydesk/internal/ledger"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/repository"
)

// Service errors.
var (
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrCustomerHasOrders = errors.New("cannot delete customer with existing orders")
	ErrOrderNotFound     = errors.New("order not found")
	ErrExpenseNotFound   = errors.New("no driver expense recorded for this date")
	ErrOrderLocked       = errors.New("orders from past delivery dates cannot be changed")
	ErrInvalidDateRange  = errors.New("start_date must not be after end_date")
	ErrRangeTooLong      = errors.New("date range is too long")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLoginRateLimited   = errors.New("too many login attempts")
	ErrSessionExpired     = errors.New("session expired or invalid")
	ErrUserExists         = errors.New("username or email already exists")

	// Re-exported so handlers only match on service errors.
	ErrNegativeAmount = ledger.ErrNegativeAmount
	ErrOverpayment    = ledger.ErrOverpayment
)

// ValidationError is a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// CustomerStore persists customers.
type CustomerStore interface {
	ListCustomers(ctx context.Context, filter repository.CustomerFilter) ([]model.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	CreateCustomer(ctx context.Context, c *model.Customer) error
	CreateCustomers(ctx context.Context, customers []model.Customer) ([]int64, error)
	UpdateCustomer(ctx context.Context, c *model.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error
	ListTerritories(ctx context.Context) ([]string, error)
}

// OrderStore persists orders and keeps customer balances in step.
type OrderStore interface {
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	CreateOrder(ctx context.Context, o *model.Order) error
	UpdateOrder(ctx context.Context, id int64, mutate func(*model.Order) error) (*model.Order, error)
	DeleteOrder(ctx context.Context, id int64) (*model.Order, error)
}

// ExpenseStore persists daily driver expenses.
type ExpenseStore interface {
	GetDriverExpense(ctx context.Context, date time.Time) (*model.DriverExpense, error)
	UpsertDriverExpense(ctx context.Context, e *model.DriverExpense) error
	ListDriverExpenses(ctx context.Context, start, end time.Time) ([]model.DriverExpense, error)
}

// UserStore persists dashboard users.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// AuditStore reads the audit log.
type AuditStore interface {
	ListAudit(ctx context.Context, filter repository.AuditFilter) ([]model.AuditEntry, error)
}

// ReportCache stores rendered reports under a generation counter.
type ReportCache interface {
	ReportGeneration(ctx context.Context) (int64, error)
	BumpReportGeneration(ctx context.Context) error
	GetReport(ctx context.Context, generation int64, params string) ([]byte, bool, error)
	SetReport(ctx context.Context, generation int64, params string, data []byte, ttl time.Duration) error
}

// SessionStore keeps login sessions.
type SessionStore interface {
	SaveSession(ctx context.Context, s *model.Session, ttl time.Duration) error
	GetSession(ctx context.Context, id string, ttl time.Duration) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// LoginLimiter throttles login attempts per client IP.
type LoginLimiter interface {
	CheckLoginRateLimit(ctx context.Context, ip string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
}

// Emitter records a domain event for the audit trail.
type Emitter interface {
	Emit(ctx context.Context, entity, entityID, action string, payload any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, string, string, any) {}

// Clock supplies the current time and business timezone.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// Today returns the current calendar date in the business timezone.
func (c Clock) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return model.DateOf(now(), loc)
}

// parseOptionalDate parses YYYY-MM-DD, returning fallback for "".
func parseOptionalDate(field, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := model.ParseDate(value)
	if err != nil {
		return time.Time{}, invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}
