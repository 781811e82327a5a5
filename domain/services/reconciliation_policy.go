package services

import (
	"fmt"

	"potsync/domain/entities"
)

// Verdict is the classification of one account for one tick
type Verdict string

const (
	VerdictNoChange Verdict = "no_change"
	VerdictTransfer Verdict = "transfer"
	// VerdictSuppressed means a correction is blocked by an active cooldown
	VerdictSuppressed Verdict = "suppressed"
	// VerdictConfirmCooldown means a shortfall recurred during an active cooldown
	// and the persisted cooldown must be re-checked before suppressing
	VerdictConfirmCooldown Verdict = "confirm_cooldown"
)

// DecisionInput is everything the policy needs about one account for one tick
type DecisionInput struct {
	CardBalance        int64
	PotBalance         int64
	Baseline           int64
	Cooldown           entities.CooldownState
	OverrideOnSpending bool
}

// PlannedTransfer is one transfer the engine should attempt, in order
type PlannedTransfer struct {
	Kind   entities.TransferKind
	Amount int64
}

// Decision is the reconciliation verdict for one account.
// Transfers run in order and stop at the first failure.
type Decision struct {
	Verdict         Verdict
	Transfers       []PlannedTransfer
	AdvanceBaseline bool
	StartCooldown   bool
	Reason          string
}

// Decide classifies an account using card vs pot and card vs baseline under
// its cooldown state. It performs no I/O.
func Decide(in DecisionInput) Decision {
	if in.Cooldown == entities.CooldownActive {
		return decideActive(in)
	}
	return decideIdle(in)
}

func decideIdle(in DecisionInput) Decision {
	card, pot, baseline := in.CardBalance, in.PotBalance, in.Baseline

	switch {
	case pot < card && card != baseline:
		return Decision{
			Verdict:         VerdictTransfer,
			Transfers:       []PlannedTransfer{{Kind: entities.TransferKindSpending, Amount: card - pot}},
			AdvanceBaseline: true,
			Reason:          fmt.Sprintf("card balance moved from %d to %d", baseline, card),
		}
	case pot < card:
		return Decision{
			Verdict:       VerdictTransfer,
			Transfers:     []PlannedTransfer{{Kind: entities.TransferKindShortfallCorrection, Amount: card - pot}},
			StartCooldown: true,
			Reason:        "shortfall without new spending",
		}
	case pot > card:
		return Decision{
			Verdict:   VerdictTransfer,
			Transfers: []PlannedTransfer{{Kind: entities.TransferKindExcessWithdrawal, Amount: pot - card}},
			Reason:    "pot exceeds card balance",
		}
	default:
		return Decision{Verdict: VerdictNoChange, Reason: "balances match"}
	}
}

func decideActive(in DecisionInput) Decision {
	card, pot, baseline := in.CardBalance, in.PotBalance, in.Baseline

	if in.OverrideOnSpending && card > baseline {
		increase := card - baseline
		transfers := []PlannedTransfer{{Kind: entities.TransferKindOverrideDeposit, Amount: increase}}
		if excess := pot + increase - card; excess > 0 {
			transfers = append(transfers, PlannedTransfer{Kind: entities.TransferKindOverrideWithdrawal, Amount: excess})
		}
		return Decision{
			Verdict:         VerdictTransfer,
			Transfers:       transfers,
			AdvanceBaseline: true,
			Reason:          fmt.Sprintf("new spending of %d during cooldown", increase),
		}
	}

	switch {
	case pot < card && card != baseline:
		return Decision{
			Verdict:         VerdictTransfer,
			Transfers:       []PlannedTransfer{{Kind: entities.TransferKindSpending, Amount: card - pot}},
			AdvanceBaseline: true,
			Reason:          fmt.Sprintf("card balance moved from %d to %d", baseline, card),
		}
	case pot < card:
		return Decision{Verdict: VerdictConfirmCooldown, Reason: "shortfall recurred during cooldown"}
	case pot > card:
		return Decision{Verdict: VerdictSuppressed, Reason: "withdrawal suppressed by cooldown"}
	default:
		return Decision{Verdict: VerdictNoChange, Reason: "balances match"}
	}
}

// TotalTransferred returns the net pot change if every planned transfer succeeds
func (d Decision) TotalTransferred() int64 {
	var total int64
	for _, t := range d.Transfers {
		if t.Kind.Direction() == entities.TransferDirectionWithdraw {
			total -= t.Amount
		} else {
			total += t.Amount
		}
	}
	return total
}

// IsSuspiciousIncrease reports whether card balance jumped by more than 100%
// and more than 50000 minor units over a non-zero baseline
func IsSuspiciousIncrease(baseline, card int64) bool {
	if baseline == 0 {
		return false
	}
	change := card - baseline
	if change <= suspiciousAbsoluteThreshold {
		return false
	}
	abs := baseline
	if abs < 0 {
		abs = -abs
	}
	return change > abs
}

const suspiciousAbsoluteThreshold = 50000
