package events

import (
	"context"
	"sync"
	"time"

	"potsync/domain/entities"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeTransferExecuted    EventType = "transfer_executed"
	EventTypeCooldownStarted     EventType = "cooldown_started"
	EventTypeAccountDisconnected EventType = "account_disconnected"
	EventTypeInsufficientFunds   EventType = "insufficient_funds"
	EventTypeSyncCompleted       EventType = "sync_completed"
)

// AllEventTypes lists every event type emitted by the reconciliation engine
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeTransferExecuted,
		EventTypeCooldownStarted,
		EventTypeAccountDisconnected,
		EventTypeInsufficientFunds,
		EventTypeSyncCompleted,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// TransferExecutedEvent represents money moved into or out of a pot
type TransferExecutedEvent struct {
	RunID            string                     `json:"run_id"`
	AccountType      string                     `json:"account_type"`
	PotID            string                     `json:"pot_id"`
	Direction        entities.TransferDirection `json:"direction"`
	Kind             entities.TransferKind      `json:"kind"`
	Amount           int64                      `json:"amount"`
	PotBalanceBefore int64                      `json:"pot_balance_before"`
	PotBalanceAfter  int64                      `json:"pot_balance_after"`
}

func (e TransferExecutedEvent) Type() EventType {
	return EventTypeTransferExecuted
}

// CooldownStartedEvent represents an account entering a cooldown
type CooldownStartedEvent struct {
	RunID          string    `json:"run_id"`
	AccountType    string    `json:"account_type"`
	Until          time.Time `json:"until"`
	RefCardBalance int64     `json:"ref_card_balance"`
	RefPotBalance  int64     `json:"ref_pot_balance"`
}

func (e CooldownStartedEvent) Type() EventType {
	return EventTypeCooldownStarted
}

// AccountDisconnectedEvent represents a credit account whose credentials were revoked
type AccountDisconnectedEvent struct {
	RunID       string `json:"run_id"`
	AccountType string `json:"account_type"`
	Reason      string `json:"reason"`
}

func (e AccountDisconnectedEvent) Type() EventType {
	return EventTypeAccountDisconnected
}

// InsufficientFundsEvent represents a transfer skipped for lack of funds
type InsufficientFundsEvent struct {
	RunID       string                `json:"run_id"`
	AccountType string                `json:"account_type"`
	PotID       string                `json:"pot_id"`
	Kind        entities.TransferKind `json:"kind"`
	Amount      int64                 `json:"amount"`
}

func (e InsufficientFundsEvent) Type() EventType {
	return EventTypeInsufficientFunds
}

// SyncCompletedEvent represents the end of a reconciliation tick
type SyncCompletedEvent struct {
	RunID         string                 `json:"run_id"`
	Status        entities.SyncRunStatus `json:"status"`
	Reason        string                 `json:"reason,omitempty"`
	TransferCount int                    `json:"transfer_count"`
	Duration      time.Duration          `json:"duration"`
}

func (e SyncCompletedEvent) Type() EventType {
	return EventTypeSyncCompleted
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Handlers run asynchronously so a slow subscriber never blocks a tick
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish stashes an event until Flush
func (b *TransactionalBus) Publish(e Event) error {
	b.pending = append(b.pending, e)
	return nil
}

// Pending returns the events waiting for commit
func (b *TransactionalBus) Pending() []Event {
	return b.pending
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush() error {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing pending events")

	// Emission is detached from the transaction context which may already be done
	eventCtx := context.Background()

	for _, ev := range b.pending {
		if b.real != nil {
			b.real.Emit(eventCtx, ev)
		}
	}
	b.pending = nil
	return nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
