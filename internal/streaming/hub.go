package streaming

import "context"

// Event is a real-time event emitted during action invocation.
type Event struct {
	InvocationID string `json:"invocation_id"`
	Action       string `json:"action,omitempty"`
	EventType    string `json:"event_type"`
	Payload      any    `json:"payload,omitempty"`
}

// Filter specifies which events a subscriber wants to receive.
type Filter struct {
	InvocationID string   `json:"invocation_id,omitempty"`
	Action       string   `json:"action,omitempty"`
	EventTypes   []string `json:"event_types,omitempty"`
}

// Hub provides pub/sub for real-time invocation events.
type Hub interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, filter Filter) (<-chan Event, func(), error)
}
