package auth

import (
	"context"

	"github.com/deliverydesk/deliverydesk/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// sessionContextKey is the context key for storing the Session.
	sessionContextKey contextKey = "session"
)

// ContextWithSession adds the authenticated session to the context.
func ContextWithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext retrieves the Session from the context.
// Returns nil if not present.
func SessionFromContext(ctx context.Context) *model.Session {
	s, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok {
		return nil
	}
	return s
}

// ActorFromContext returns the username recorded on audit events.
// Returns empty string if not authenticated.
func ActorFromContext(ctx context.Context) string {
	s := SessionFromContext(ctx)
	if s == nil {
		return ""
	}
	return s.Username
}
