// Package events publishes domain events for every mutation and persists
// them to the audit log.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entities that emit events.
const (
	EntityCustomer = "customer"
	EntityOrder    = "order"
	EntityExpense  = "expense"
	EntityUser     = "user"
)

// Actions recorded on events.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionImported = "imported"
	ActionSaved    = "saved"
	ActionLogin    = "login"
)

// Event is the wire format on the stream and on Kafka.
type Event struct {
	ID         string          `json:"id"` // ULID, idempotency key
	Entity     string          `json:"entity"`
	EntityID   string          `json:"entity_id"`
	Action     string          `json:"action"`
	Actor      string          `json:"actor,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Type returns "entity.action", e.g. "order.updated".
func (e Event) Type() string {
	return e.Entity + "." + e.Action
}

// New builds an event with a fresh ULID and the payload marshaled to JSON.
func New(entity, entityID, action, actor string, payload any) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s.%s payload: %w", entity, action, err)
		}
		raw = data
	}

	return Event{
		ID:         ulid.Make().String(),
		Entity:     entity,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Publisher delivers a single event to one sink.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
