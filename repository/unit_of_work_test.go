package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"potsync/domain/entities"
	"potsync/events"
	"potsync/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	received []events.Event
}

func (h *recordingHandler) handle(ctx context.Context, event events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, event)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func TestUnitOfWork_CommitPersistsAndFlushesEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	handler := &recordingHandler{}
	bus.Subscribe(events.EventTypeTransferExecuted, handler.handle)

	require.NoError(t, NewAccountRepository(testDB.DB).UpsertCredit(ctx, testutil.CreateTestCreditAccount("amex", "pot_amex", 100)))

	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	require.NoError(t, uow.AccountRepository().SetBaseline(ctx, "amex", 600))
	transfer := testutil.CreateTestPotTransfer("run-1", "amex", entities.TransferKindSpending, 500, 100)
	require.NoError(t, uow.PotTransferRepository().Record(ctx, transfer))
	require.NoError(t, uow.EventBus().Publish(events.TransferExecutedEvent{RunID: "run-1", AccountType: "amex", Amount: 500}))

	assert.Equal(t, 0, handler.count(), "events must wait for commit")
	require.NoError(t, uow.Commit())

	assert.Eventually(t, func() bool { return handler.count() == 1 }, time.Second, 10*time.Millisecond)

	baseline, err := NewAccountRepository(testDB.DB).GetBaseline(ctx, "amex")
	require.NoError(t, err)
	assert.Equal(t, int64(600), baseline)
}

func TestUnitOfWork_RollbackDiscardsWritesAndEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	handler := &recordingHandler{}
	bus.SubscribeAll(handler.handle)

	require.NoError(t, NewAccountRepository(testDB.DB).UpsertCredit(ctx, testutil.CreateTestCreditAccount("amex", "pot_amex", 100)))

	uow := NewUnitOfWorkFactory(testDB.DB, bus).Create()
	require.NoError(t, uow.Begin(ctx))

	until := time.Now().Add(time.Hour)
	require.NoError(t, uow.AccountRepository().SetCooldown(ctx, "amex", testutil.CreateTestCooldown(until, 100, 50)))
	require.NoError(t, uow.EventBus().Publish(events.CooldownStartedEvent{RunID: "run-1", AccountType: "amex"}))
	require.NoError(t, uow.Rollback())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, handler.count())

	cooldown, err := NewAccountRepository(testDB.DB).GetCooldown(ctx, "amex")
	require.NoError(t, err)
	assert.False(t, cooldown.IsSet())
}

func TestUnitOfWork_Lifecycle(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	uow := NewUnitOfWorkFactory(testDB.DB, nil).Create()

	assert.Panics(t, func() { uow.AccountRepository() })
	assert.Error(t, uow.Commit())
	assert.NoError(t, uow.Rollback())

	require.NoError(t, uow.Begin(ctx))
	assert.Error(t, uow.Begin(ctx))
	require.NoError(t, uow.Commit())
	assert.NoError(t, uow.Rollback(), "rollback after commit is a no-op")
}
