package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// StreamKey is the Redis stream carrying domain events.
	StreamKey = "stream:desk_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:desk_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000
)

// StreamPublisher appends events to the Redis stream.
type StreamPublisher struct {
	redis *redis.Client
}

// NewStreamPublisher creates a publisher on the given client.
func NewStreamPublisher(client *redis.Client) *StreamPublisher {
	return &StreamPublisher{redis: client}
}

// Publish XADDs the event as a single JSON "payload" field.
func (p *StreamPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"type":    e.Type(),
			"payload": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	return nil
}
