package interfaces

import (
	"context"

	"potsync/domain/entities"
)

// BaselineRepository persists the per-account baseline balance
type BaselineRepository interface {
	// GetBaseline returns the stored baseline for a credit account
	GetBaseline(ctx context.Context, accountType string) (int64, error)

	// SetBaseline stores a new baseline for a credit account
	SetBaseline(ctx context.Context, accountType string, baseline int64) error
}

// CooldownRepository persists the per-account cooldown record
type CooldownRepository interface {
	// GetCooldown returns the stored cooldown record for a credit account
	GetCooldown(ctx context.Context, accountType string) (*entities.Cooldown, error)

	// SetCooldown stores a cooldown record for a credit account
	SetCooldown(ctx context.Context, accountType string, cooldown entities.Cooldown) error

	// ClearCooldown removes the cooldown timestamp and references
	ClearCooldown(ctx context.Context, accountType string) error
}

// AccountRepository defines the interface for linked account data access
type AccountRepository interface {
	BaselineRepository
	CooldownRepository

	// GetPrimary returns the primary account, or nil if none is linked
	GetPrimary(ctx context.Context) (*entities.PrimaryAccount, error)

	// ListCredit returns every linked credit account ordered by type
	ListCredit(ctx context.Context) ([]*entities.CreditAccount, error)

	// GetCredit returns one credit account, or nil if it does not exist
	GetCredit(ctx context.Context, accountType string) (*entities.CreditAccount, error)

	// UpsertPrimary creates or replaces the primary account record
	UpsertPrimary(ctx context.Context, account *entities.PrimaryAccount) error

	// UpsertCredit creates or replaces a credit account record
	UpsertCredit(ctx context.Context, account *entities.CreditAccount) error

	// SaveCredentials stores refreshed tokens for any linked account
	SaveCredentials(ctx context.Context, accountType string, credentials entities.Credentials) error

	// DeleteCredit removes a credit account and its stored credentials
	DeleteCredit(ctx context.Context, accountType string) error
}

// SettingsRepository defines the interface for runtime settings access
type SettingsRepository interface {
	// GetAll returns every stored setting as raw key/value pairs
	GetAll(ctx context.Context) (map[string]string, error)

	// Set stores a single setting value
	Set(ctx context.Context, key, value string) error
}

// PotTransferRepository defines the interface for the pot transfer ledger
type PotTransferRepository interface {
	// Record inserts a ledger entry and populates its ID and CreatedAt
	Record(ctx context.Context, transfer *entities.PotTransfer) error

	// ListByRun returns every transfer executed during a sync run
	ListByRun(ctx context.Context, runID string) ([]*entities.PotTransfer, error)

	// ListByAccount returns the most recent transfers for an account
	ListByAccount(ctx context.Context, accountType string, limit int) ([]*entities.PotTransfer, error)
}

// SyncRunRepository defines the interface for sync run history
type SyncRunRepository interface {
	// Create inserts a new sync run
	Create(ctx context.Context, run *entities.SyncRun) error

	// GetByID returns a sync run, or nil if it does not exist
	GetByID(ctx context.Context, id string) (*entities.SyncRun, error)

	// ListRecent returns the most recent sync runs, newest first
	ListRecent(ctx context.Context, limit int) ([]*entities.SyncRun, error)
}
