package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/redis/go-redis/v9"
)

// sessionPrefix is the Redis key prefix for login sessions.
const sessionPrefix = "session:"

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// SaveSession stores a session for ttl.
func (c *Cache) SaveSession(ctx context.Context, s *model.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return c.client.Set(ctx, sessionKey(s.ID), data, ttl).Err()
}

// GetSession loads a session and pushes its expiry out to ttl from now.
func (c *Cache) GetSession(ctx context.Context, id string, ttl time.Duration) (*model.Session, error) {
	data, err := c.client.GetEx(ctx, sessionKey(id), ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		// Corrupted entry - treat as logged out
		return nil, ErrSessionNotFound
	}
	s.ID = id
	return &s, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (c *Cache) DeleteSession(ctx context.Context, id string) error {
	return c.client.Del(ctx, sessionKey(id)).Err()
}

// sessionKey hashes the id so raw session tokens never appear in key listings.
func sessionKey(id string) string {
	hash := sha256.Sum256([]byte(id))
	return sessionPrefix + hex.EncodeToString(hash[:])
}
