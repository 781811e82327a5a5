package interfaces

import (
	"context"
	"time"

	"potsync/domain/entities"
)

// BalanceAggregator computes the adjusted balance owed on a credit facility
type BalanceAggregator interface {
	// AdjustedBalance sums settled balances and provider-eligible pending charges
	// across every card of the facility, in minor units
	AdjustedBalance(ctx context.Context, facility CreditFacilityClient) (int64, error)
}

// BaselineTracker reads and writes the last-acknowledged card balance
type BaselineTracker interface {
	// Get returns the stored baseline
	Get(ctx context.Context, accountType string) (int64, error)

	// Set stores a new baseline and confirms it by reading it back
	Set(ctx context.Context, accountType string, baseline int64) error
}

// CooldownManager owns every cooldown decision. No other component compares cooldown timestamps.
type CooldownManager interface {
	// Status derives the cooldown state of an account snapshot at the current time
	Status(account *entities.CreditAccount) entities.CooldownStatus

	// Query re-reads the persisted cooldown and derives its state
	Query(ctx context.Context, accountType string) (entities.CooldownStatus, error)

	// ConfirmActive performs an independent persisted check that the cooldown has not elapsed
	ConfirmActive(ctx context.Context, accountType string) (bool, error)

	// Start begins a cooldown with the given reference balances and returns its end time
	Start(ctx context.Context, accountType string, cardBalance, potBalance int64) (time.Time, error)

	// Clear removes any cooldown on the account
	Clear(ctx context.Context, accountType string) error
}

// TransferRequest describes one pot transfer to attempt
type TransferRequest struct {
	RunID            string
	AccountType      string
	PotID            string
	Kind             entities.TransferKind
	Amount           int64
	PotBalanceBefore int64
	DedupeToken      string
}

// TransferResult is the outcome of a transfer attempt.
// Exactly one of Transfer and Failure is set.
type TransferResult struct {
	Transfer *entities.PotTransfer
	Failure  *entities.SyncError
}

// Executed returns true if money was moved
func (r TransferResult) Executed() bool {
	return r.Transfer != nil
}

// InsufficientFunds returns true if the transfer was skipped for lack of funds
func (r TransferResult) InsufficientFunds() bool {
	return r.Failure != nil && r.Failure.Kind == entities.ErrorKindInsufficientFunds
}

// TransferExecutor moves money into or out of a pot with a funds guard
type TransferExecutor interface {
	Execute(ctx context.Context, req TransferRequest) TransferResult
}
