package events

import (
	"fmt"
	"os"
	"time"
)

// NewConsumerID creates a per-process consumer name for the Redis consumer group.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "desk"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}
