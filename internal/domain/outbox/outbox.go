package outbox

import "context"

// Event is any domain event with a name identifier.
type Event interface {
	EventName() string
}

// Headers travel alongside an event on the broker.
type Headers map[string]string

// Handler processes a published event.
type Handler func(ctx context.Context, e Event, h Headers) error

// Publisher publishes events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event, h Headers) error
}

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
