package events

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
)

const (
	maxEntityLength   = 40
	maxEntityIDLength = 64
	maxActorLength    = 80
	maxPayloadBytes   = 64 * 1024
)

// Validate checks an event read back from the stream before it is persisted.
func Validate(e Event) error {
	if _, err := ulid.ParseStrict(e.ID); err != nil {
		return fmt.Errorf("id must be a ULID: %w", err)
	}
	if e.Entity == "" || len(e.Entity) > maxEntityLength {
		return fmt.Errorf("entity length out of bounds")
	}
	if e.EntityID == "" || len(e.EntityID) > maxEntityIDLength {
		return fmt.Errorf("entity_id length out of bounds")
	}
	if e.Action == "" || len(e.Action) > maxEntityLength {
		return fmt.Errorf("action length out of bounds")
	}
	if len(e.Actor) > maxActorLength {
		return fmt.Errorf("actor too long")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at must be set")
	}
	if len(e.Payload) > maxPayloadBytes {
		return fmt.Errorf("payload too large")
	}
	if len(e.Payload) > 0 && !json.Valid(e.Payload) {
		return fmt.Errorf("payload is not valid JSON")
	}
	return nil
}
