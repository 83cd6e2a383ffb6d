package model

import (
	"encoding/json"
	"time"
)

// AuditEntry is a persisted domain event.
type AuditEntry struct {
	ID         int64           `json:"id"`
	EventID    string          `json:"event_id"` // ULID, idempotency key
	Entity     string          `json:"entity"`
	EntityID   string          `json:"entity_id"`
	Action     string          `json:"action"`
	Actor      string          `json:"actor,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	RecordedAt time.Time       `json:"recorded_at"`
}
