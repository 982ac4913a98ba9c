package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact published on the event bus. Subject identifies the
// record the event is about (for storefront events, the order id).
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	Subject() string
}

// EventHeader carries the fields every event shares. Embed it in concrete
// event structs.
type EventHeader struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	SubjectID string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEventHeader stamps a new event of eventType about subject
func NewEventHeader(eventType, subject string) EventHeader {
	return EventHeader{
		ID:        uuid.New(),
		Type:      eventType,
		SubjectID: subject,
		Timestamp: time.Now().UTC(),
	}
}

func (h *EventHeader) EventID() uuid.UUID    { return h.ID }
func (h *EventHeader) EventType() string     { return h.Type }
func (h *EventHeader) OccurredAt() time.Time { return h.Timestamp }
func (h *EventHeader) Subject() string       { return h.SubjectID }
