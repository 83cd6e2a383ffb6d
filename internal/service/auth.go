package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/auth"
	"github.com/deliverydesk/deliverydesk/internal/cache"
	"github.com/deliverydesk/deliverydesk/internal/events"
	"github.com/deliverydesk/deliverydesk/internal/metrics"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/repository"
)

const maxUsernameLength = 80

// RateLimitedError carries how long the client should wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return ErrLoginRateLimited.Error()
}

func (e *RateLimitedError) Unwrap() error {
	return ErrLoginRateLimited
}

// AuthOptions configures AuthService.
type AuthOptions struct {
	SessionTTL       time.Duration
	RateLimitEnabled bool
	RatePerMinute    int
	RateBurst        int
}

// AuthService handles users, logins and sessions.
type AuthService struct {
	users    UserStore
	sessions SessionStore
	limiter  LoginLimiter
	events   Emitter
	logger   *slog.Logger
	metrics  metrics.Recorder
	opts     AuthOptions
	now      func() time.Time
}

// NewAuthService creates a new AuthService. limiter may be nil.
func NewAuthService(users UserStore, sessions SessionStore, limiter LoginLimiter, emitter Emitter, logger *slog.Logger, recorder metrics.Recorder, opts AuthOptions) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		events:   emitter,
		logger:   logger.With("component", "service.auth"),
		metrics:  recorder,
		opts:     opts,
		now:      time.Now,
	}
}

// SessionTTL is how long an idle session stays valid.
func (s *AuthService) SessionTTL() time.Duration {
	return s.opts.SessionTTL
}

// Login checks credentials and opens a session. Unknown users and wrong
// passwords get the same error and take the same time.
func (s *AuthService) Login(ctx context.Context, username, password, clientIP string) (*model.Session, error) {
	if s.limiter != nil && s.opts.RateLimitEnabled {
		res, err := s.limiter.CheckLoginRateLimit(ctx, clientIP, s.opts.RatePerMinute, s.opts.RateBurst)
		if err != nil {
			s.logger.Warn("login rate limit check failed, allowing", "error", err)
		}
		if res != nil && !res.Allowed {
			s.metrics.IncLogin("limited")
			return nil, &RateLimitedError{RetryAfter: res.RetryAfter}
		}
	}

	username = strings.TrimSpace(username)
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		auth.VerifyDummy(password)
		s.metrics.IncLogin("failure")
		return nil, ErrInvalidCredentials
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash is unreadable", "user_id", user.ID, "error", err)
	}
	if !ok {
		s.metrics.IncLogin("failure")
		return nil, ErrInvalidCredentials
	}

	session := &model.Session{
		ID:        auth.NewSessionID(),
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.SaveSession(ctx, session, s.opts.SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.metrics.IncLogin("success")
	s.events.Emit(auth.ContextWithSession(ctx, session), events.EntityUser, idString(user.ID), events.ActionLogin, map[string]any{
		"ip": clientIP,
	})
	return session, nil
}

// Logout ends a session. Unknown sessions are ignored.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Authenticate resolves a session id and slides its expiry.
func (s *AuthService) Authenticate(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionExpired
	}
	session, err := s.sessions.GetSession(ctx, sessionID, s.opts.SessionTTL)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// CreateUser validates and stores a new user.
func (s *AuthService) CreateUser(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, invalid("username", "is required")
	}
	if len(username) > maxUsernameLength {
		return nil, invalid("username", "must be at most %d characters", maxUsernameLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email", "must be a valid email address")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, invalid("password", "must be at least %d characters", auth.MinPasswordLength)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.events.Emit(ctx, events.EntityUser, idString(user.ID), events.ActionCreated, map[string]any{
		"username": user.Username,
	})
	return user, nil
}

// EnsureAdmin creates the bootstrap user unless it already exists.
// It reports whether a user was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	if password == "" {
		return false, nil
	}

	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}

	if _, err := s.CreateUser(ctx, username, email, password); err != nil {
		if errors.Is(err, ErrUserExists) {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("bootstrap admin created", "username", username)
	return true, nil
}
