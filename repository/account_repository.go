package repository

import (
	"context"
	"errors"
	"fmt"

	"potsync/database"
	"potsync/domain/entities"

	"github.com/jackc/pgx/v5"
)

const creditColumns = `
	type,
	COALESCE(pot_id, ''),
	baseline_balance,
	cooldown_until,
	cooldown_ref_card_balance,
	cooldown_ref_pot_balance,
	COALESCE(access_token, ''),
	COALESCE(refresh_token, ''),
	token_expiry,
	created_at,
	updated_at
`

// AccountRepository implements interfaces.AccountRepository
type AccountRepository struct {
	q Queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx Queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

// GetBaseline returns the stored baseline for a credit account
func (r *AccountRepository) GetBaseline(ctx context.Context, accountType string) (int64, error) {
	query := `
		SELECT baseline_balance
		FROM accounts
		WHERE type = $1 AND kind = 'credit'
	`

	var baseline int64
	err := r.q.QueryRow(ctx, query, accountType).Scan(&baseline)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", entities.ErrAccountNotFound, accountType)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get baseline for %s: %w", accountType, err)
	}

	return baseline, nil
}

// SetBaseline stores a new baseline for a credit account
func (r *AccountRepository) SetBaseline(ctx context.Context, accountType string, baseline int64) error {
	query := `
		UPDATE accounts
		SET baseline_balance = $2, updated_at = NOW()
		WHERE type = $1 AND kind = 'credit'
	`

	result, err := r.q.Exec(ctx, query, accountType, baseline)
	if err != nil {
		return fmt.Errorf("failed to set baseline for %s: %w", accountType, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", entities.ErrAccountNotFound, accountType)
	}

	return nil
}

// GetCooldown returns the stored cooldown record, or nil if the account does not exist
func (r *AccountRepository) GetCooldown(ctx context.Context, accountType string) (*entities.Cooldown, error) {
	query := `
		SELECT cooldown_until, cooldown_ref_card_balance, cooldown_ref_pot_balance
		FROM accounts
		WHERE type = $1 AND kind = 'credit'
	`

	var cooldown entities.Cooldown
	err := r.q.QueryRow(ctx, query, accountType).Scan(
		&cooldown.Until,
		&cooldown.RefCardBalance,
		&cooldown.RefPotBalance,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cooldown for %s: %w", accountType, err)
	}

	return &cooldown, nil
}

// SetCooldown stores a cooldown record for a credit account
func (r *AccountRepository) SetCooldown(ctx context.Context, accountType string, cooldown entities.Cooldown) error {
	query := `
		UPDATE accounts
		SET cooldown_until = $2,
		    cooldown_ref_card_balance = $3,
		    cooldown_ref_pot_balance = $4,
		    updated_at = NOW()
		WHERE type = $1 AND kind = 'credit'
	`

	result, err := r.q.Exec(ctx, query,
		accountType,
		cooldown.Until,
		cooldown.RefCardBalance,
		cooldown.RefPotBalance,
	)
	if err != nil {
		return fmt.Errorf("failed to set cooldown for %s: %w", accountType, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", entities.ErrAccountNotFound, accountType)
	}

	return nil
}

// ClearCooldown removes the cooldown timestamp and reference snapshots
func (r *AccountRepository) ClearCooldown(ctx context.Context, accountType string) error {
	return r.SetCooldown(ctx, accountType, entities.Cooldown{})
}

// GetPrimary returns the primary account, or nil if none is linked
func (r *AccountRepository) GetPrimary(ctx context.Context) (*entities.PrimaryAccount, error) {
	query := `
		SELECT type,
		       COALESCE(access_token, ''),
		       COALESCE(refresh_token, ''),
		       token_expiry,
		       created_at,
		       updated_at
		FROM accounts
		WHERE kind = 'primary'
	`

	var account entities.PrimaryAccount
	err := r.q.QueryRow(ctx, query).Scan(
		&account.Type,
		&account.Credentials.AccessToken,
		&account.Credentials.RefreshToken,
		&account.Credentials.Expiry,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get primary account: %w", err)
	}

	return &account, nil
}

// ListCredit returns every linked credit account ordered by type
func (r *AccountRepository) ListCredit(ctx context.Context) ([]*entities.CreditAccount, error) {
	query := `SELECT ` + creditColumns + `
		FROM accounts
		WHERE kind = 'credit'
		ORDER BY type
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*entities.CreditAccount
	for rows.Next() {
		account, err := scanCreditAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credit accounts: %w", err)
	}

	return accounts, nil
}

// GetCredit returns one credit account, or nil if it does not exist
func (r *AccountRepository) GetCredit(ctx context.Context, accountType string) (*entities.CreditAccount, error) {
	query := `SELECT ` + creditColumns + `
		FROM accounts
		WHERE type = $1 AND kind = 'credit'
	`

	account, err := scanCreditAccount(r.q.QueryRow(ctx, query, accountType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit account %s: %w", accountType, err)
	}

	return account, nil
}

// UpsertPrimary creates or replaces the primary account. Linking a different
// primary account removes the previous one.
func (r *AccountRepository) UpsertPrimary(ctx context.Context, account *entities.PrimaryAccount) error {
	replace := `
		DELETE FROM accounts
		WHERE kind = 'primary' AND type <> $1
		  AND NOT EXISTS (SELECT 1 FROM accounts WHERE type = $1 AND kind = 'credit')
	`
	if _, err := r.q.Exec(ctx, replace, account.Type); err != nil {
		return fmt.Errorf("failed to replace primary account: %w", err)
	}

	query := `
		INSERT INTO accounts (type, kind, access_token, refresh_token, token_expiry)
		VALUES ($1, 'primary', NULLIF($2, ''), NULLIF($3, ''), $4)
		ON CONFLICT (type) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    token_expiry = EXCLUDED.token_expiry,
		    updated_at = NOW()
		WHERE accounts.kind = 'primary'
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		account.Type,
		account.Credentials.AccessToken,
		account.Credentials.RefreshToken,
		account.Credentials.Expiry,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s is already linked as a credit account", entities.ErrConfiguration, account.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert primary account %s: %w", account.Type, err)
	}

	return nil
}

// UpsertCredit creates or replaces a credit account record
func (r *AccountRepository) UpsertCredit(ctx context.Context, account *entities.CreditAccount) error {
	query := `
		INSERT INTO accounts (
			type, kind, pot_id, baseline_balance,
			cooldown_until, cooldown_ref_card_balance, cooldown_ref_pot_balance,
			access_token, refresh_token, token_expiry
		)
		VALUES ($1, 'credit', NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		ON CONFLICT (type) DO UPDATE
		SET pot_id = EXCLUDED.pot_id,
		    baseline_balance = EXCLUDED.baseline_balance,
		    cooldown_until = EXCLUDED.cooldown_until,
		    cooldown_ref_card_balance = EXCLUDED.cooldown_ref_card_balance,
		    cooldown_ref_pot_balance = EXCLUDED.cooldown_ref_pot_balance,
		    access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    token_expiry = EXCLUDED.token_expiry,
		    updated_at = NOW()
		WHERE accounts.kind = 'credit'
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		account.Type,
		account.PotID,
		account.BaselineBalance,
		account.Cooldown.Until,
		account.Cooldown.RefCardBalance,
		account.Cooldown.RefPotBalance,
		account.Credentials.AccessToken,
		account.Credentials.RefreshToken,
		account.Credentials.Expiry,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s is already linked as the primary account", entities.ErrConfiguration, account.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert credit account %s: %w", account.Type, err)
	}

	return nil
}

// SaveCredentials stores refreshed tokens for any linked account
func (r *AccountRepository) SaveCredentials(ctx context.Context, accountType string, credentials entities.Credentials) error {
	query := `
		UPDATE accounts
		SET access_token = NULLIF($2, ''),
		    refresh_token = NULLIF($3, ''),
		    token_expiry = $4,
		    updated_at = NOW()
		WHERE type = $1
	`

	result, err := r.q.Exec(ctx, query,
		accountType,
		credentials.AccessToken,
		credentials.RefreshToken,
		credentials.Expiry,
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials for %s: %w", accountType, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", entities.ErrAccountNotFound, accountType)
	}

	return nil
}

// DeleteCredit removes a credit account and its stored credentials
func (r *AccountRepository) DeleteCredit(ctx context.Context, accountType string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM accounts WHERE type = $1 AND kind = 'credit'`, accountType); err != nil {
		return fmt.Errorf("failed to delete credit account %s: %w", accountType, err)
	}
	return nil
}

func scanCreditAccount(row pgx.Row) (*entities.CreditAccount, error) {
	var account entities.CreditAccount
	err := row.Scan(
		&account.Type,
		&account.PotID,
		&account.BaselineBalance,
		&account.Cooldown.Until,
		&account.Cooldown.RefCardBalance,
		&account.Cooldown.RefPotBalance,
		&account.Credentials.AccessToken,
		&account.Credentials.RefreshToken,
		&account.Credentials.Expiry,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
