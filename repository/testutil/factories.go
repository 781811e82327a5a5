package testutil

import (
	"time"

	"potsync/domain/entities"
)

// CreateTestPrimaryAccount creates a primary account with stored tokens
func CreateTestPrimaryAccount(accountType string) *entities.PrimaryAccount {
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	return &entities.PrimaryAccount{
		Type: accountType,
		Credentials: entities.Credentials{
			AccessToken:  "access-" + accountType,
			RefreshToken: "refresh-" + accountType,
			Expiry:       &expiry,
		},
	}
}

// CreateTestCreditAccount creates a credit account linked to a pot with no cooldown
func CreateTestCreditAccount(accountType, potID string, baseline int64) *entities.CreditAccount {
	return &entities.CreditAccount{
		Type:            accountType,
		PotID:           potID,
		BaselineBalance: baseline,
		Credentials: entities.Credentials{
			AccessToken:  "access-" + accountType,
			RefreshToken: "refresh-" + accountType,
		},
	}
}

// CreateTestCooldown creates a cooldown ending at until with reference balances
func CreateTestCooldown(until time.Time, card, pot int64) entities.Cooldown {
	until = until.UTC().Truncate(time.Microsecond)
	return entities.Cooldown{
		Until:          &until,
		RefCardBalance: &card,
		RefPotBalance:  &pot,
	}
}

// CreateTestPotTransfer creates a consistent ledger entry for the given kind
func CreateTestPotTransfer(runID, accountType string, kind entities.TransferKind, amount, before int64) *entities.PotTransfer {
	transfer := &entities.PotTransfer{
		RunID:            runID,
		AccountType:      accountType,
		PotID:            "pot_" + accountType,
		Direction:        kind.Direction(),
		Kind:             kind,
		Amount:           amount,
		PotBalanceBefore: before,
		DedupeToken:      runID + "-" + accountType + "-" + string(kind),
	}
	transfer.PotBalanceAfter = before + transfer.SignedAmount()
	return transfer
}

// CreateTestSyncRun creates a finished sync run with the given outcomes
func CreateTestSyncRun(id string, startedAt time.Time, status entities.SyncRunStatus, outcomes ...entities.AccountOutcome) *entities.SyncRun {
	startedAt = startedAt.UTC().Truncate(time.Microsecond)
	finishedAt := startedAt.Add(2 * time.Second)
	return &entities.SyncRun{
		ID:         id,
		StartedAt:  startedAt,
		FinishedAt: &finishedAt,
		Status:     status,
		Outcomes:   outcomes,
	}
}
