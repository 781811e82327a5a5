package repository

import (
	"context"
	"errors"
	"fmt"

	"potsync/application"
	"potsync/database"
	"potsync/domain/interfaces"
	"potsync/events"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// unitOfWork implements application.UnitOfWork
type unitOfWork struct {
	db              *database.DB
	tx              pgx.Tx
	ctx             context.Context
	publisher       interfaces.TransactionalEventPublisher
	accountRepo     interfaces.AccountRepository
	settingsRepo    interfaces.SettingsRepository
	potTransferRepo interfaces.PotTransferRepository
	syncRunRepo     interfaces.SyncRunRepository
}

type unitOfWorkFactory struct {
	db  *database.DB
	bus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. Events published
// inside a unit of work reach bus only after a successful commit.
func NewUnitOfWorkFactory(db *database.DB, bus *events.Bus) application.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:  db,
		bus: bus,
	}
}

// Create creates a new UnitOfWork with its own transactional publisher
func (f *unitOfWorkFactory) Create() application.UnitOfWork {
	return f.CreateWithPublisher(events.NewTransactionalBus(f.bus))
}

// CreateWithPublisher creates a new UnitOfWork with a specific transactional publisher
func (f *unitOfWorkFactory) CreateWithPublisher(publisher interfaces.TransactionalEventPublisher) application.UnitOfWork {
	return &unitOfWork{
		db:        f.db,
		publisher: publisher,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.accountRepo = newAccountRepositoryWithTx(tx)
	u.settingsRepo = newSettingsRepositoryWithTx(tx)
	u.potTransferRepo = newPotTransferRepositoryWithTx(tx)
	u.syncRunRepo = newSyncRunRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.publisher != nil {
		if err := u.publisher.Flush(); err != nil {
			log.WithError(err).Warn("Failed to flush events after commit")
		}
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.publisher != nil {
		u.publisher.Discard()
	}

	return nil
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() interfaces.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// SettingsRepository returns the settings repository for this unit of work
func (u *unitOfWork) SettingsRepository() interfaces.SettingsRepository {
	if u.settingsRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.settingsRepo
}

// PotTransferRepository returns the pot transfer ledger for this unit of work
func (u *unitOfWork) PotTransferRepository() interfaces.PotTransferRepository {
	if u.potTransferRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.potTransferRepo
}

// SyncRunRepository returns the sync run repository for this unit of work
func (u *unitOfWork) SyncRunRepository() interfaces.SyncRunRepository {
	if u.syncRunRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.syncRunRepo
}

// EventBus returns the transactional event publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.publisher == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.publisher
}
