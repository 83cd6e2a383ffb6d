package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deliverydesk/deliverydesk/internal/metrics"
	"github.com/deliverydesk/deliverydesk/internal/model"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "audit_writers"

	// DefaultBatchSize is the max events per batch.
	DefaultBatchSize = 200

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the max retries for batch processing.
	DefaultMaxRetries = 3

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 30 * time.Second

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 5 * time.Second
)

// AuditStore persists audit entries. Inserts must ignore duplicate event ids.
type AuditStore interface {
	BulkInsertAudit(ctx context.Context, entries []model.AuditEntry) error
}

// Worker moves events from the Redis stream into the audit log.
type Worker struct {
	redis           *redis.Client
	store           AuditStore
	logger          *slog.Logger
	metrics         metrics.Recorder
	consumerID      string
	batchSize       int
	blockTimeout    time.Duration
	maxRetries      int
	backoffBase     time.Duration
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration
	claimStartID    string
	lastClaim       time.Time
	lastMetrics     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a new audit worker.
func NewWorker(client *redis.Client, store AuditStore, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:           client,
		store:           store,
		logger:          logger.With("component", "events.worker", "consumer_id", consumerID),
		metrics:         recorder,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		maxRetries:      DefaultMaxRetries,
		backoffBase:     time.Second,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
		claimStartID:    "0-0",
	}
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("audit worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("audit worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("audit worker stopping")
			return ctx.Err()
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Shutdown stops the worker, completing any in-flight batch.
// It matches server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("audit worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			w.logger.Info("audit worker shutdown complete")
			return nil
		case <-ctx.Done():
			w.logger.Warn("audit worker shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist.
func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads and processes a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	claimed, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}

	messages := claimed
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	if len(messages) == 0 {
		return nil
	}

	entries, messageIDs := w.parseMessages(ctx, messages)
	if len(entries) == 0 {
		// Everything was dead-lettered; ACK so the group moves on.
		return w.ackMessages(ctx, messageIDs)
	}

	if err := w.processBatchWithRetry(ctx, entries); err != nil {
		w.logger.Error("batch processing failed after retries",
			"batch_size", len(entries),
			"error", err,
		)
		// Do not ACK so the messages can be reclaimed later.
		return err
	}

	return w.ackMessages(ctx, messageIDs)
}

// maybeClaimPending reclaims messages another consumer left pending too long.
func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}

	w.lastClaim = time.Now()
	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.metricsInterval <= 0 {
		return
	}
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetEventQueueDepth(group.Pending + group.Lag)
			return
		}
	}
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetClaimIdle overrides the default pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// readBatch reads messages from the stream using XREADGROUP.
func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()

	if errors.Is(err, redis.Nil) || (err == nil && len(streams) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	return streams[0].Messages, nil
}

// parseMessages converts stream messages to audit entries.
// Malformed or invalid messages are moved to the dead-letter stream.
func (w *Worker) parseMessages(ctx context.Context, messages []redis.XMessage) ([]model.AuditEntry, []string) {
	entries := make([]model.AuditEntry, 0, len(messages))
	messageIDs := make([]string, 0, len(messages))

	for _, msg := range messages {
		messageIDs = append(messageIDs, msg.ID)

		entry, reason, err := decodeMessage(msg)
		if err != nil {
			w.deadLetterMessage(ctx, msg, reason, err.Error())
			continue
		}
		entries = append(entries, entry)
	}

	return entries, messageIDs
}

// decodeMessage turns one stream message into an audit entry. On failure it
// also returns the dead-letter reason.
func decodeMessage(msg redis.XMessage) (model.AuditEntry, string, error) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return model.AuditEntry{}, "invalid_format", errors.New("payload field missing or not a string")
	}

	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return model.AuditEntry{}, "unmarshal_error", err
	}
	if err := Validate(e); err != nil {
		return model.AuditEntry{}, "validation_error", err
	}

	return model.AuditEntry{
		EventID:    e.ID,
		Entity:     e.Entity,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Actor:      e.Actor,
		Payload:    e.Payload,
		OccurredAt: e.OccurredAt,
	}, "", nil
}

// deadLetterMessage moves a poison message to the dead-letter stream.
func (w *Worker) deadLetterMessage(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering poison message",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	_, err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: 10000, // Keep last 10k poison messages
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()

	if err != nil {
		w.logger.Error("failed to write to dead-letter stream",
			"message_id", msg.ID,
			"error", err,
		)
	}

	w.metrics.IncEventProcessed("dead_lettered")
}

// processBatchWithRetry attempts to persist a batch with exponential backoff.
func (w *Worker) processBatchWithRetry(ctx context.Context, entries []model.AuditEntry) error {
	var lastErr error

	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		err := w.processBatch(ctx, entries)
		if err == nil {
			return nil
		}
		lastErr = err

		backoff := time.Duration(1<<attempt) * w.backoffBase
		w.logger.Warn("batch processing failed, retrying",
			"attempt", attempt,
			"backoff_seconds", backoff.Seconds(),
			"error", err,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	for range entries {
		w.metrics.IncEventProcessed("failed")
	}
	return lastErr
}

// processBatch inserts entries; duplicates are ignored by the store.
func (w *Worker) processBatch(ctx context.Context, entries []model.AuditEntry) error {
	start := time.Now()

	if err := w.store.BulkInsertAudit(ctx, entries); err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}

	w.logger.Debug("batch processed",
		"events_count", len(entries),
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
	)

	w.metrics.ObserveEventBatch(len(entries), time.Since(start))
	for range entries {
		w.metrics.IncEventProcessed("success")
	}

	return nil
}

// ackMessages acknowledges processed messages.
func (w *Worker) ackMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// isConsumerGroupExistsError checks if the error is "BUSYGROUP" (group exists).
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
