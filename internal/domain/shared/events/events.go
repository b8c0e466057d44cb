package events

import "time"

// DomainEvent is raised by aggregates and drained into the outbox.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder collects pending events on an aggregate until the
// application layer drains them inside the same transaction.
type EventRecorder struct {
	pending []DomainEvent
}

// Record appends an event to the pending list.
func (r *EventRecorder) Record(event DomainEvent) {
	r.pending = append(r.pending, event)
}

// PendingEvents returns recorded events in order.
func (r *EventRecorder) PendingEvents() []DomainEvent {
	return r.pending
}

// ClearEvents drops the pending list after it has been persisted.
func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}
