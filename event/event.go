package event

import (
	"time"

	"github.com/google/uuid"
)

// Event event interface
type Event interface {
	// Name event name (unique identifier, such as "breaker.tripped")
	Name() string
}

// BaseEvent base class for events, can be embedded into specific event structs
type BaseEvent struct {
	ID         string    `json:"id"`
	EventName  string    `json:"name"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent creates a base event stamped with a fresh id
func NewEvent(name string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		EventName:  name,
		OccurredAt: at,
	}
}

// Name returns the event name
func (e BaseEvent) Name() string {
	return e.EventName
}
