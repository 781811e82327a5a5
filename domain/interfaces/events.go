package interfaces

import "potsync/events"

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher holds events until the surrounding transaction commits
type TransactionalEventPublisher interface {
	EventPublisher

	// Flush delivers pending events after a successful commit
	Flush() error

	// Discard drops pending events after a rollback
	Discard()
}
