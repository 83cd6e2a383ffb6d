package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/metrics"
)

func newAuthTestService(limiter LoginLimiter) (*AuthService, *memStore, *memCache, *metrics.InMemoryRecorder) {
	store := newMemStore()
	mc := newMemCache()
	rec := metrics.NewInMemory()
	svc := NewAuthService(store, mc, limiter, nil, testLogger(), rec, AuthOptions{
		SessionTTL:       time.Hour,
		RateLimitEnabled: true,
		RatePerMinute:    10,
		RateBurst:        5,
	})
	return svc, store, mc, rec
}

func TestAuthService_LoginLogout(t *testing.T) {
	t.Parallel()
	svc, _, mc, rec := newAuthTestService(fakeLimiter{allowed: true})
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "admin", "admin@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	session, err := svc.Login(ctx, " admin ", "s3cret-pass", "203.0.113.1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if session.ID == "" || session.Username != "admin" {
		t.Errorf("unexpected session: %+v", session)
	}

	got, err := svc.Authenticate(ctx, session.ID)
	if err != nil || got.UserID != session.UserID {
		t.Fatalf("Authenticate = %+v, %v", got, err)
	}

	if err := svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := svc.Authenticate(ctx, session.ID); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired after logout, got %v", err)
	}
	if len(mc.sessions) != 0 {
		t.Errorf("sessions left: %d", len(mc.sessions))
	}
	if rec.Snapshot().Counters["logins|success"] != 1 {
		t.Errorf("counters = %v", rec.Snapshot().Counters)
	}
}

func TestAuthService_UniformFailure(t *testing.T) {
	t.Parallel()
	svc, _, _, rec := newAuthTestService(fakeLimiter{allowed: true})
	ctx := context.Background()

	_, _ = svc.CreateUser(ctx, "admin", "admin@example.com", "s3cret-pass")

	_, wrongPass := svc.Login(ctx, "admin", "nope-nope", "203.0.113.1")
	_, noUser := svc.Login(ctx, "ghost", "s3cret-pass", "203.0.113.1")

	if !errors.Is(wrongPass, ErrInvalidCredentials) || !errors.Is(noUser, ErrInvalidCredentials) {
		t.Errorf("errors = %v / %v", wrongPass, noUser)
	}
	if wrongPass.Error() != noUser.Error() {
		t.Error("failure messages must not reveal which part was wrong")
	}
	if rec.Snapshot().Counters["logins|failure"] != 2 {
		t.Errorf("counters = %v", rec.Snapshot().Counters)
	}
}

func TestAuthService_RateLimited(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newAuthTestService(fakeLimiter{allowed: false})

	_, err := svc.Login(context.Background(), "admin", "whatever", "203.0.113.1")
	var rl *RateLimitedError
	if !errors.As(err, &rl) || !errors.Is(err, ErrLoginRateLimited) || rl.RetryAfter != 30*time.Second {
		t.Errorf("expected RateLimitedError, got %v", err)
	}
}

func TestAuthService_CreateUserValidation(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newAuthTestService(nil)
	ctx := context.Background()

	tests := []struct {
		name, username, email, password, field string
	}{
		{"no username", "", "a@example.com", "long-enough", "username"},
		{"bad email", "bob", "not-an-email", "long-enough", "email"},
		{"short password", "bob", "bob@example.com", "short", "password"},
	}
	for _, tt := range tests {
		_, err := svc.CreateUser(ctx, tt.username, tt.email, tt.password)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != tt.field {
			t.Errorf("%s: expected %s ValidationError, got %v", tt.name, tt.field, err)
		}
	}

	if _, err := svc.CreateUser(ctx, "bob", "bob@example.com", "long-enough"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := svc.CreateUser(ctx, "bob", "bob2@example.com", "long-enough"); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	t.Parallel()
	svc, store, _, _ := newAuthTestService(nil)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "admin", "admin@example.com", "")
	if err != nil || created {
		t.Errorf("no password should skip bootstrap: created=%v err=%v", created, err)
	}

	created, err = svc.EnsureAdmin(ctx, "admin", "admin@example.com", "bootstrap-pass")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin = %v, %v", created, err)
	}

	created, err = svc.EnsureAdmin(ctx, "admin", "admin@example.com", "bootstrap-pass")
	if err != nil || created {
		t.Errorf("second EnsureAdmin should be a no-op: created=%v err=%v", created, err)
	}
	if len(store.users) != 1 {
		t.Errorf("users = %d", len(store.users))
	}
}

func TestAuditService_ClampsLimit(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	svc := NewAuditService(store)

	if _, err := svc.List(context.Background(), "", "", -1); err == nil {
		t.Error("expected error for negative limit")
	}
	entries, err := svc.List(context.Background(), "order", "", 0)
	if err != nil || len(entries) != 0 {
		t.Errorf("List = %v, %v", entries, err)
	}
}
