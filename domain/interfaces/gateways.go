package interfaces

import (
	"context"

	"potsync/domain/entities"
)

// PrimaryAccountClient is an authenticated session against the primary account provider.
// All amounts are in minor currency units.
type PrimaryAccountClient interface {
	// Ping verifies that the stored credentials are still valid
	Ping(ctx context.Context) error

	// PotSelector returns which primary account (personal or joint) owns a pot
	PotSelector(ctx context.Context, potID string) (entities.AccountSelector, error)

	// GetBalance returns the available balance of the selected primary account
	GetBalance(ctx context.Context, selector entities.AccountSelector) (int64, error)

	// GetPotBalance returns the current balance of a pot
	GetPotBalance(ctx context.Context, potID string) (int64, error)

	// Deposit moves money from the owning primary account into a pot
	Deposit(ctx context.Context, potID string, amount int64, dedupeToken string) error

	// Withdraw moves money from a pot back to the owning primary account
	Withdraw(ctx context.Context, potID string, amount int64, dedupeToken string) error
}

// CreditFacilityClient is an authenticated session against one credit facility
type CreditFacilityClient interface {
	// RefreshToken refreshes the access token if it is expired or close to expiry
	RefreshToken(ctx context.Context) error

	// Ping verifies that the credentials are accepted
	Ping(ctx context.Context) error

	// Cards lists the cards exposed by the facility
	Cards(ctx context.Context) ([]entities.Card, error)

	// CardBalance returns the settled balance owed on a card in minor units
	CardBalance(ctx context.Context, cardID string) (int64, error)

	// PendingTransactions returns the pending transactions of a card.
	// Returns entities.ErrPendingUnavailable when the provider refuses access.
	PendingTransactions(ctx context.Context, cardID string) ([]entities.PendingTransaction, error)
}

// AccountGateway opens provider sessions for stored accounts
type AccountGateway interface {
	// Primary returns a client for the primary account
	Primary(ctx context.Context, account *entities.PrimaryAccount) (PrimaryAccountClient, error)

	// Credit returns a client for a credit facility
	Credit(ctx context.Context, account *entities.CreditAccount) (CreditFacilityClient, error)
}

// Notifier delivers best-effort user notifications. It never reports failure.
type Notifier interface {
	Notify(ctx context.Context, account, title, message string)
}
