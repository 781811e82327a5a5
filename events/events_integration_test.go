package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"potsync/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEventDeliveryIntegration tests the flow from TransactionalBus to the main Bus
func TestEventDeliveryIntegration(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan TransferExecutedEvent, 1)
	mainBus.Subscribe(EventTypeTransferExecuted, func(ctx context.Context, event Event) {
		if transfer, ok := event.(TransferExecutedEvent); ok {
			eventReceived <- transfer
		} else {
			t.Errorf("Expected TransferExecutedEvent, got %T", event)
		}
	})

	testEvent := TransferExecutedEvent{
		RunID:            "run-1",
		AccountType:      "amex",
		PotID:            "pot_1",
		Direction:        entities.TransferDirectionDeposit,
		Kind:             entities.TransferKindSpending,
		Amount:           99000,
		PotBalanceBefore: 1000,
		PotBalanceAfter:  100000,
	}

	require.NoError(t, transactionalBus.Publish(testEvent))
	assert.Len(t, transactionalBus.Pending(), 1)
	require.NoError(t, transactionalBus.Flush())
	assert.Empty(t, transactionalBus.Pending())

	select {
	case received := <-eventReceived:
		assert.Equal(t, testEvent, received)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

// TestDiscardDropsPendingEvents tests that rolled back events are never delivered
func TestDiscardDropsPendingEvents(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	delivered := make(chan Event, 1)
	mainBus.Subscribe(EventTypeCooldownStarted, func(ctx context.Context, event Event) {
		delivered <- event
	})

	require.NoError(t, transactionalBus.Publish(CooldownStartedEvent{AccountType: "amex"}))
	transactionalBus.Discard()
	require.NoError(t, transactionalBus.Flush())

	select {
	case ev := <-delivered:
		t.Fatalf("Unexpected delivery of %T", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestSubscribeAllReceivesEveryType tests the catch-all subscription used by forwarders
func TestSubscribeAllReceivesEveryType(t *testing.T) {
	mainBus := NewBus()

	var mu sync.Mutex
	seen := make(map[EventType]bool)
	var wg sync.WaitGroup
	wg.Add(len(AllEventTypes()))

	mainBus.SubscribeAll(func(ctx context.Context, event Event) {
		defer wg.Done()
		mu.Lock()
		seen[event.Type()] = true
		mu.Unlock()
	})

	ctx := context.Background()
	mainBus.Emit(ctx, TransferExecutedEvent{})
	mainBus.Emit(ctx, CooldownStartedEvent{})
	mainBus.Emit(ctx, AccountDisconnectedEvent{})
	mainBus.Emit(ctx, InsufficientFundsEvent{})
	mainBus.Emit(ctx, SyncCompletedEvent{})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Not all events were delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, eventType := range AllEventTypes() {
		assert.True(t, seen[eventType], "missing %s", eventType)
	}
}

// TestHandlerPanicIsRecovered tests that one panicking handler does not affect others
func TestHandlerPanicIsRecovered(t *testing.T) {
	mainBus := NewBus()

	delivered := make(chan struct{}, 1)
	mainBus.Subscribe(EventTypeSyncCompleted, func(ctx context.Context, event Event) {
		panic("boom")
	})
	mainBus.Subscribe(EventTypeSyncCompleted, func(ctx context.Context, event Event) {
		delivered <- struct{}{}
	})

	mainBus.Emit(context.Background(), SyncCompletedEvent{Status: entities.SyncRunStatusCompleted})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("Healthy handler was not called")
	}
}
