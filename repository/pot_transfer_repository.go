package repository

import (
	"context"
	"fmt"

	"potsync/database"
	"potsync/domain/entities"
)

const potTransferColumns = `
	id, run_id, account_type, pot_id, direction, kind, amount,
	pot_balance_before, pot_balance_after, dedupe_token, created_at
`

// PotTransferRepository implements interfaces.PotTransferRepository
type PotTransferRepository struct {
	q Queryable
}

// NewPotTransferRepository creates a new pot transfer repository
func NewPotTransferRepository(db *database.DB) *PotTransferRepository {
	return &PotTransferRepository{q: db.Pool}
}

// newPotTransferRepositoryWithTx creates a new pot transfer repository with a transaction
func newPotTransferRepositoryWithTx(tx Queryable) *PotTransferRepository {
	return &PotTransferRepository{q: tx}
}

// Record inserts a ledger entry and populates its ID and CreatedAt
func (r *PotTransferRepository) Record(ctx context.Context, transfer *entities.PotTransfer) error {
	if err := transfer.Validate(); err != nil {
		return fmt.Errorf("invalid pot transfer: %w", err)
	}

	query := `
		INSERT INTO pot_transfers (
			run_id, account_type, pot_id, direction, kind, amount,
			pot_balance_before, pot_balance_after, dedupe_token
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		transfer.RunID,
		transfer.AccountType,
		transfer.PotID,
		transfer.Direction,
		transfer.Kind,
		transfer.Amount,
		transfer.PotBalanceBefore,
		transfer.PotBalanceAfter,
		transfer.DedupeToken,
	).Scan(&transfer.ID, &transfer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record pot transfer for %s: %w", transfer.AccountType, err)
	}

	return nil
}

// ListByRun returns every transfer executed during a sync run in execution order
func (r *PotTransferRepository) ListByRun(ctx context.Context, runID string) ([]*entities.PotTransfer, error) {
	query := `SELECT ` + potTransferColumns + `
		FROM pot_transfers
		WHERE run_id = $1
		ORDER BY id
	`
	return r.list(ctx, query, runID)
}

// ListByAccount returns the most recent transfers for an account, newest first
func (r *PotTransferRepository) ListByAccount(ctx context.Context, accountType string, limit int) ([]*entities.PotTransfer, error) {
	query := `SELECT ` + potTransferColumns + `
		FROM pot_transfers
		WHERE account_type = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	return r.list(ctx, query, accountType, limit)
}

func (r *PotTransferRepository) list(ctx context.Context, query string, args ...any) ([]*entities.PotTransfer, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pot transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*entities.PotTransfer
	for rows.Next() {
		var transfer entities.PotTransfer
		err := rows.Scan(
			&transfer.ID,
			&transfer.RunID,
			&transfer.AccountType,
			&transfer.PotID,
			&transfer.Direction,
			&transfer.Kind,
			&transfer.Amount,
			&transfer.PotBalanceBefore,
			&transfer.PotBalanceAfter,
			&transfer.DedupeToken,
			&transfer.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pot transfer: %w", err)
		}
		transfers = append(transfers, &transfer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pot transfers: %w", err)
	}

	return transfers, nil
}
