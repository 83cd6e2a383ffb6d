package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/deliverydesk/deliverydesk/internal/auth"
	"github.com/deliverydesk/deliverydesk/internal/metrics"
)

// PublishTimeout bounds each sink's publish of a single event.
const PublishTimeout = 500 * time.Millisecond

// Emitter fans events out to every configured sink without blocking the caller.
type Emitter struct {
	sinks   []namedSink
	logger  *slog.Logger
	metrics metrics.Recorder
	timeout time.Duration
	wg      sync.WaitGroup
}

type namedSink struct {
	name string
	pub  Publisher
}

// NewEmitter creates an emitter with no sinks; add them with AddSink.
func NewEmitter(logger *slog.Logger, recorder metrics.Recorder) *Emitter {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Emitter{
		logger:  logger.With("component", "events.emitter"),
		metrics: recorder,
		timeout: PublishTimeout,
	}
}

// AddSink registers a publisher under a name used in logs.
func (e *Emitter) AddSink(name string, pub Publisher) {
	e.sinks = append(e.sinks, namedSink{name: name, pub: pub})
}

// Emit records a mutation. The actor is taken from the request's session.
// Errors are logged but not returned (fire-and-forget).
func (e *Emitter) Emit(ctx context.Context, entity, entityID, action string, payload any) {
	if len(e.sinks) == 0 {
		return
	}

	event, err := New(entity, entityID, action, auth.ActorFromContext(ctx), payload)
	if err != nil {
		e.logger.Warn("failed to build event", "type", entity+"."+action, "error", err)
		e.metrics.IncEventPublished("dropped")
		return
	}

	for _, sink := range e.sinks {
		sink := sink
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.publish(sink, event)
		}()
	}
}

func (e *Emitter) publish(sink namedSink, event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if err := sink.pub.Publish(ctx, event); err != nil {
		e.logger.Warn("failed to publish event",
			"sink", sink.name,
			"type", event.Type(),
			"entity_id", event.EntityID,
			"error", err,
		)
		e.metrics.IncEventPublished("dropped")
		return
	}

	e.logger.Debug("event published",
		"sink", sink.name,
		"type", event.Type(),
		"event_id", event.ID,
	)
	e.metrics.IncEventPublished("success")
}

// Shutdown waits for in-flight publishes to finish or ctx to expire.
func (e *Emitter) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
