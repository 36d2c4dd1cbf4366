// Package pubsub fans out data source lifecycle events to listeners.
package pubsub

import (
	"context"
	"time"
)

// EventType names what happened to a registered payload.
type EventType string

const (
	RegisteredEvent  EventType = "registered"
	ParsedEvent      EventType = "parsed"
	ParseFailedEvent EventType = "parse_failed"
	ReleasedEvent    EventType = "released"
)

// Event is one published occurrence with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber hands out event channels.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher accepts events.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
