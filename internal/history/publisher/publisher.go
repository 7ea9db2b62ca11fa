// Package publisher fans recorded history events out to downstream
// consumers (notifications, analytics) over a background worker. Delivery is
// best-effort: a full inbox drops the event and a failing sink is logged,
// never surfaced to the write path.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"rostertrail/internal/history/metrics"
)

// Event is the wire shape of one recorded history entry.
type Event struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"` // "audit" or "photo"
	ActorID       string    `json:"actor_id"`
	EntityType    string    `json:"entity_type,omitempty"`
	EntityID      string    `json:"entity_id,omitempty"`
	Action        string    `json:"action,omitempty"`
	ChangedFields []string  `json:"changed_fields,omitempty"`
	PhotoKind     string    `json:"photo_kind,omitempty"`
	ContentHash   string    `json:"content_hash,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Sink delivers events to an external system.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher owns a bounded inbox between recorders and the worker loop.
type Publisher struct {
	inbox   chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a publisher with the given inbox capacity.
func New(buffer int, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		inbox:   make(chan Event, buffer),
		logger:  logger,
		metrics: m,
	}
}

// Emit enqueues an event without blocking. When the inbox is full the event
// is dropped and counted; the recorder's write path must never wait on
// downstream consumers.
func (p *Publisher) Emit(event Event) {
	select {
	case p.inbox <- event:
	default:
		p.metrics.IncrementPublishDropped()
		if p.logger != nil {
			p.logger.Warn("history event dropped, publisher inbox full",
				"event_id", event.ID,
				"kind", event.Kind,
			)
		}
	}
}

// Run consumes the inbox and delivers events to the sink until ctx is
// cancelled. Sink failures are logged and the event abandoned; the loop
// itself only exits on cancellation.
func (p *Publisher) Run(ctx context.Context, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-p.inbox:
			if err := sink.Publish(ctx, event); err != nil {
				if p.logger != nil {
					p.logger.Warn("history event publish failed",
						"event_id", event.ID,
						"kind", event.Kind,
						"error", err,
					)
				}
			}
		}
	}
}
