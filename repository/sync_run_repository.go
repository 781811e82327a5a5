package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"potsync/database"
	"potsync/domain/entities"

	"github.com/jackc/pgx/v5"
)

// SyncRunRepository implements interfaces.SyncRunRepository
type SyncRunRepository struct {
	q Queryable
}

// NewSyncRunRepository creates a new sync run repository
func NewSyncRunRepository(db *database.DB) *SyncRunRepository {
	return &SyncRunRepository{q: db.Pool}
}

// newSyncRunRepositoryWithTx creates a new sync run repository with a transaction
func newSyncRunRepositoryWithTx(tx Queryable) *SyncRunRepository {
	return &SyncRunRepository{q: tx}
}

// Create inserts a new sync run with its per-account outcomes as JSONB
func (r *SyncRunRepository) Create(ctx context.Context, run *entities.SyncRun) error {
	outcomes := run.Outcomes
	if outcomes == nil {
		outcomes = []entities.AccountOutcome{}
	}
	outcomesJSON, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("failed to marshal sync run outcomes: %w", err)
	}

	query := `
		INSERT INTO sync_runs (id, started_at, finished_at, status, reason, outcomes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.q.Exec(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.Status,
		run.Reason,
		outcomesJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync run %s: %w", run.ID, err)
	}

	return nil
}

// GetByID returns a sync run, or nil if it does not exist
func (r *SyncRunRepository) GetByID(ctx context.Context, id string) (*entities.SyncRun, error) {
	query := `
		SELECT id, started_at, finished_at, status, reason, outcomes
		FROM sync_runs
		WHERE id = $1
	`

	run, err := scanSyncRun(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run %s: %w", id, err)
	}

	return run, nil
}

// ListRecent returns the most recent sync runs, newest first
func (r *SyncRunRepository) ListRecent(ctx context.Context, limit int) ([]*entities.SyncRun, error) {
	query := `
		SELECT id, started_at, finished_at, status, reason, outcomes
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*entities.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}

	return runs, nil
}

func scanSyncRun(row pgx.Row) (*entities.SyncRun, error) {
	var run entities.SyncRun
	var outcomesJSON []byte

	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.Reason,
		&outcomesJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(outcomesJSON, &run.Outcomes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcomes of sync run %s: %w", run.ID, err)
	}

	return &run, nil
}
