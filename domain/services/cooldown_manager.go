package services

import (
	"context"
	"fmt"
	"time"

	"potsync/domain/entities"
	"potsync/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// cooldownManager implements interfaces.CooldownManager
type cooldownManager struct {
	repo     interfaces.CooldownRepository
	duration time.Duration
	now      func() time.Time
}

// NewCooldownManager creates a cooldown manager. A nil clock uses time.Now.
func NewCooldownManager(repo interfaces.CooldownRepository, hours int, clock func() time.Time) interfaces.CooldownManager {
	if clock == nil {
		clock = time.Now
	}
	return &cooldownManager{
		repo:     repo,
		duration: time.Duration(hours) * time.Hour,
		now:      clock,
	}
}

// Status derives the cooldown state from an account snapshot
func (m *cooldownManager) Status(account *entities.CreditAccount) entities.CooldownStatus {
	return m.evaluate(account.Cooldown)
}

// Query derives the cooldown state from the persisted record
func (m *cooldownManager) Query(ctx context.Context, accountType string) (entities.CooldownStatus, error) {
	cooldown, err := m.repo.GetCooldown(ctx, accountType)
	if err != nil {
		return entities.CooldownStatus{}, fmt.Errorf("failed to get cooldown for %s: %w", accountType, err)
	}
	if cooldown == nil {
		return entities.CooldownStatus{State: entities.CooldownIdle}, nil
	}
	return m.evaluate(*cooldown), nil
}

// ConfirmActive re-reads the persisted cooldown and reports whether it is still running
func (m *cooldownManager) ConfirmActive(ctx context.Context, accountType string) (bool, error) {
	status, err := m.Query(ctx, accountType)
	if err != nil {
		return false, err
	}
	return status.IsActive(), nil
}

// Start persists a cooldown ending DepositCooldownHours from now, then reads it
// back to confirm the write
func (m *cooldownManager) Start(ctx context.Context, accountType string, cardBalance, potBalance int64) (time.Time, error) {
	if m.duration <= 0 {
		return time.Time{}, &entities.SyncError{
			Kind:    entities.ErrorKindConfiguration,
			Account: accountType,
			Err:     fmt.Errorf("%w: cooldown duration must be positive, got %s", entities.ErrConfiguration, m.duration),
		}
	}

	until := m.now().UTC().Add(m.duration).Truncate(time.Microsecond)
	cooldown := entities.Cooldown{
		Until:          &until,
		RefCardBalance: &cardBalance,
		RefPotBalance:  &potBalance,
	}

	if err := m.repo.SetCooldown(ctx, accountType, cooldown); err != nil {
		return time.Time{}, fmt.Errorf("failed to start cooldown for %s: %w", accountType, err)
	}

	stored, err := m.repo.GetCooldown(ctx, accountType)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to verify cooldown for %s: %w", accountType, err)
	}
	if stored == nil || stored.Until == nil || !stored.Until.Equal(until) {
		log.WithFields(log.Fields{
			"account":  accountType,
			"expected": until,
		}).Error("Cooldown read-back mismatch")
		return time.Time{}, &entities.SyncError{
			Kind:    entities.ErrorKindPersistenceInconsistency,
			Account: accountType,
			Err:     fmt.Errorf("%w: cooldown was not persisted", entities.ErrPersistenceInconsistency),
		}
	}

	log.WithFields(log.Fields{
		"account":        accountType,
		"cooldownUntil":  until,
		"refCardBalance": cardBalance,
		"refPotBalance":  potBalance,
	}).Info("Cooldown started")
	return until, nil
}

// Clear removes any cooldown on the account
func (m *cooldownManager) Clear(ctx context.Context, accountType string) error {
	if err := m.repo.ClearCooldown(ctx, accountType); err != nil {
		return fmt.Errorf("failed to clear cooldown for %s: %w", accountType, err)
	}
	log.WithField("account", accountType).Info("Cooldown cleared")
	return nil
}

func (m *cooldownManager) evaluate(cooldown entities.Cooldown) entities.CooldownStatus {
	if !cooldown.IsSet() {
		return entities.CooldownStatus{State: entities.CooldownIdle, Cooldown: cooldown}
	}
	if m.now().Before(*cooldown.Until) {
		return entities.CooldownStatus{State: entities.CooldownActive, Cooldown: cooldown}
	}
	return entities.CooldownStatus{State: entities.CooldownExpired, Cooldown: cooldown}
}
