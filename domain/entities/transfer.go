package entities

import (
	"errors"
	"time"
)

// TransferDirection is the direction of money movement relative to the pot
type TransferDirection string

const (
	TransferDirectionDeposit  TransferDirection = "deposit"
	TransferDirectionWithdraw TransferDirection = "withdraw"
)

// TransferKind records which reconciliation rule produced a transfer
type TransferKind string

const (
	TransferKindSpending            TransferKind = "spending"
	TransferKindShortfallCorrection TransferKind = "shortfall_correction"
	TransferKindExcessWithdrawal    TransferKind = "excess_withdrawal"
	TransferKindOverrideDeposit     TransferKind = "override_deposit"
	TransferKindOverrideWithdrawal  TransferKind = "override_withdrawal"
)

// Direction returns the pot direction a transfer kind moves money in
func (k TransferKind) Direction() TransferDirection {
	switch k {
	case TransferKindExcessWithdrawal, TransferKindOverrideWithdrawal:
		return TransferDirectionWithdraw
	default:
		return TransferDirectionDeposit
	}
}

// IsOverride returns true if the transfer was issued by the override sub-mode
func (k TransferKind) IsOverride() bool {
	return k == TransferKindOverrideDeposit || k == TransferKindOverrideWithdrawal
}

// String returns the string representation of the transfer kind
func (k TransferKind) String() string {
	return string(k)
}

// PotTransfer is a ledger entry for one executed pot deposit or withdrawal
type PotTransfer struct {
	ID               int64             `db:"id"`
	RunID            string            `db:"run_id"`
	AccountType      string            `db:"account_type"`
	PotID            string            `db:"pot_id"`
	Direction        TransferDirection `db:"direction"`
	Kind             TransferKind      `db:"kind"`
	Amount           int64             `db:"amount"`
	PotBalanceBefore int64             `db:"pot_balance_before"`
	PotBalanceAfter  int64             `db:"pot_balance_after"`
	DedupeToken      string            `db:"dedupe_token"`
	CreatedAt        time.Time         `db:"created_at"`
}

// SignedAmount returns the change applied to the pot balance
func (t *PotTransfer) SignedAmount() int64 {
	if t.Direction == TransferDirectionWithdraw {
		return -t.Amount
	}
	return t.Amount
}

// Validate performs basic validation on the ledger entry
func (t *PotTransfer) Validate() error {
	if t.Amount <= 0 {
		return errors.New("transfer amount must be positive")
	}
	if t.DedupeToken == "" {
		return errors.New("transfer requires a dedupe token")
	}
	if t.PotBalanceAfter != t.PotBalanceBefore+t.SignedAmount() {
		return errors.New("pot balance calculation is inconsistent")
	}
	return nil
}
