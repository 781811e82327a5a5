package services

import (
	"context"
	"fmt"

	"potsync/domain/entities"
	"potsync/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// baselineTracker implements interfaces.BaselineTracker
type baselineTracker struct {
	repo interfaces.BaselineRepository
}

// NewBaselineTracker creates a new baseline tracker
func NewBaselineTracker(repo interfaces.BaselineRepository) interfaces.BaselineTracker {
	return &baselineTracker{repo: repo}
}

// Get returns the stored baseline for an account
func (t *baselineTracker) Get(ctx context.Context, accountType string) (int64, error) {
	baseline, err := t.repo.GetBaseline(ctx, accountType)
	if err != nil {
		return 0, fmt.Errorf("failed to get baseline for %s: %w", accountType, err)
	}
	return baseline, nil
}

// Set writes the baseline and reads it back. A mismatch is reported as a
// persistence inconsistency.
func (t *baselineTracker) Set(ctx context.Context, accountType string, baseline int64) error {
	if err := t.repo.SetBaseline(ctx, accountType, baseline); err != nil {
		return fmt.Errorf("failed to set baseline for %s: %w", accountType, err)
	}

	stored, err := t.repo.GetBaseline(ctx, accountType)
	if err != nil {
		return fmt.Errorf("failed to verify baseline for %s: %w", accountType, err)
	}
	if stored != baseline {
		log.WithFields(log.Fields{
			"account":  accountType,
			"expected": baseline,
			"stored":   stored,
		}).Error("Baseline read-back mismatch")
		return &entities.SyncError{
			Kind:    entities.ErrorKindPersistenceInconsistency,
			Account: accountType,
			Err:     fmt.Errorf("%w: baseline expected %d, stored %d", entities.ErrPersistenceInconsistency, baseline, stored),
		}
	}

	log.WithFields(log.Fields{
		"account":  accountType,
		"baseline": baseline,
	}).Debug("Baseline updated")
	return nil
}
