package shared

import "context"

// EventHandler reacts to published events.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types to deliver; empty means every type.
	EventTypes() []string
}

// EventPublisher is what the webhook endpoint depends on. A nil error means
// the events were accepted for handling, so the delivery can be acknowledged.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus routes published events to subscribed handlers. Stop waits for
// accepted events to finish or for ctx to expire.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
