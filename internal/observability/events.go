package observability

import (
	"context"
	"time"
)

// Publisher is the outbound event sink. Satisfied by rabbitmq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// EventEnvelope wraps connection lifecycle and pipeline events published to
// the topic exchange.
type EventEnvelope struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	OccurredAt    string         `json:"occurred_at"`
	Service       string         `json:"service"`
	SessionID     string         `json:"session_id,omitempty"`
	UserID        *int           `json:"user_id,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	IP            string         `json:"ip,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// NewEvent builds an envelope stamped with the current time.
func NewEvent(eventType string) EventEnvelope {
	return EventEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       "chat-backend",
	}
}

var defaultPublisher Publisher

// SetPublisher installs the process-wide event sink.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent sends an envelope; errors are counted, not propagated to the
// caller's flow.
func PublishEvent(ctx context.Context, routingKey string, envelope EventEnvelope) {
	if defaultPublisher == nil {
		return
	}
	if err := defaultPublisher.Publish(ctx, routingKey, envelope); err != nil {
		IncAMQPPublishError()
	}
}
