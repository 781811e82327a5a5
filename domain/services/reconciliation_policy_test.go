package services

import (
	"testing"

	"potsync/domain/entities"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		in            DecisionInput
		wantVerdict   Verdict
		wantTransfers []PlannedTransfer
		wantAdvance   bool
		wantCooldown  bool
	}{
		{
			name:        "no-op when everything matches",
			in:          DecisionInput{CardBalance: 1000, PotBalance: 1000, Baseline: 1000, Cooldown: entities.CooldownIdle},
			wantVerdict: VerdictNoChange,
		},
		{
			name:          "new spending deposits the difference",
			in:            DecisionInput{CardBalance: 100000, PotBalance: 1000, Baseline: 1000, Cooldown: entities.CooldownIdle},
			wantVerdict:   VerdictTransfer,
			wantTransfers: []PlannedTransfer{{Kind: entities.TransferKindSpending, Amount: 99000}},
			wantAdvance:   true,
		},
		{
			name:          "pot above card withdraws the excess",
			in:            DecisionInput{CardBalance: 9, PotBalance: 1000, Baseline: 9, Cooldown: entities.CooldownIdle},
			wantVerdict:   VerdictTransfer,
			wantTransfers: []PlannedTransfer{{Kind: entities.TransferKindExcessWithdrawal, Amount: 991}},
		},
		{
			name:          "shortfall without spending corrects once and starts cooldown",
			in:            DecisionInput{CardBalance: 9, PotBalance: 5, Baseline: 9, Cooldown: entities.CooldownIdle},
			wantVerdict:   VerdictTransfer,
			wantTransfers: []PlannedTransfer{{Kind: entities.TransferKindShortfallCorrection, Amount: 4}},
			wantCooldown:  true,
		},
		{
			name:          "expired cooldown behaves like idle",
			in:            DecisionInput{CardBalance: 9, PotBalance: 5, Baseline: 9, Cooldown: entities.CooldownExpired},
			wantVerdict:   VerdictTransfer,
			wantTransfers: []PlannedTransfer{{Kind: entities.TransferKindShortfallCorrection, Amount: 4}},
			wantCooldown:  true,
		},
		{
			name:          "card below baseline with shortfall deposits as spending",
			in:            DecisionInput{CardBalance: 50, PotBalance: 10, Baseline: 80, Cooldown: entities.CooldownIdle},
			wantVerdict:   VerdictTransfer,
			wantTransfers: []PlannedTransfer{{Kind: entities.TransferKindSpending, Amount: 40}},
			wantAdvance:   true,
		},
		{
			name:          "active cooldown still allows spending deposits",
			in:            DecisionInput{CardBalance: 200, PotBalance: 5, Baseline: 9, Cooldown: entities.CooldownActive},
			wantVerdict:   VerdictTransfer,
			wantTransfers: []PlannedTransfer{{Kind: entities.TransferKindSpending, Amount: 195}},
			wantAdvance:   true,
		},
		{
			name:          "active cooldown deposits when card dropped below baseline",
			in:            DecisionInput{CardBalance: 50, PotBalance: 10, Baseline: 80, Cooldown: entities.CooldownActive},
			wantVerdict:   VerdictTransfer,
			wantTransfers: []PlannedTransfer{{Kind: entities.TransferKindSpending, Amount: 40}},
			wantAdvance:   true,
		},
		{
			name:          "override cooldown deposits when card dropped below baseline",
			in:            DecisionInput{CardBalance: 50, PotBalance: 10, Baseline: 80, Cooldown: entities.CooldownActive, OverrideOnSpending: true},
			wantVerdict:   VerdictTransfer,
			wantTransfers: []PlannedTransfer{{Kind: entities.TransferKindSpending, Amount: 40}},
			wantAdvance:   true,
		},
		{
			name:        "active cooldown needs confirmation on recurring shortfall",
			in:          DecisionInput{CardBalance: 9, PotBalance: 5, Baseline: 9, Cooldown: entities.CooldownActive},
			wantVerdict: VerdictConfirmCooldown,
		},
		{
			name:        "active cooldown suppresses withdrawals",
			in:          DecisionInput{CardBalance: 9, PotBalance: 1000, Baseline: 9, Cooldown: entities.CooldownActive},
			wantVerdict: VerdictSuppressed,
		},
		{
			name:          "override deposits only the increase",
			in:            DecisionInput{CardBalance: 12, PotBalance: 5, Baseline: 9, Cooldown: entities.CooldownActive, OverrideOnSpending: true},
			wantVerdict:   VerdictTransfer,
			wantTransfers: []PlannedTransfer{{Kind: entities.TransferKindOverrideDeposit, Amount: 3}},
			wantAdvance:   true,
		},
		{
			name:        "override withdraws excess after the deposit",
			in:          DecisionInput{CardBalance: 12, PotBalance: 20, Baseline: 9, Cooldown: entities.CooldownActive, OverrideOnSpending: true},
			wantVerdict: VerdictTransfer,
			wantTransfers: []PlannedTransfer{
				{Kind: entities.TransferKindOverrideDeposit, Amount: 3},
				{Kind: entities.TransferKindOverrideWithdrawal, Amount: 11},
			},
			wantAdvance: true,
		},
		{
			name:        "override without spending keeps suppressing",
			in:          DecisionInput{CardBalance: 9, PotBalance: 1000, Baseline: 9, Cooldown: entities.CooldownActive, OverrideOnSpending: true},
			wantVerdict: VerdictSuppressed,
		},
		{
			name:          "override is ignored outside cooldown",
			in:            DecisionInput{CardBalance: 12, PotBalance: 5, Baseline: 9, Cooldown: entities.CooldownIdle, OverrideOnSpending: true},
			wantVerdict:   VerdictTransfer,
			wantTransfers: []PlannedTransfer{{Kind: entities.TransferKindSpending, Amount: 7}},
			wantAdvance:   true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Decide(tt.in)

			assert.Equal(t, tt.wantVerdict, got.Verdict)
			assert.Equal(t, tt.wantTransfers, got.Transfers)
			assert.Equal(t, tt.wantAdvance, got.AdvanceBaseline)
			assert.Equal(t, tt.wantCooldown, got.StartCooldown)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestDecide_OverrideNetsToCard(t *testing.T) {
	t.Parallel()

	in := DecisionInput{CardBalance: 12, PotBalance: 20, Baseline: 9, Cooldown: entities.CooldownActive, OverrideOnSpending: true}
	got := Decide(in)

	assert.Equal(t, in.CardBalance, in.PotBalance+got.TotalTransferred())
}

func TestIsSuspiciousIncrease(t *testing.T) {
	t.Parallel()

	assert.False(t, IsSuspiciousIncrease(0, 1000000), "zero baseline is never suspicious")
	assert.False(t, IsSuspiciousIncrease(100000, 160000), "60% rise")
	assert.False(t, IsSuspiciousIncrease(1000, 40000), "large relative rise under absolute threshold")
	assert.True(t, IsSuspiciousIncrease(40000, 100001))
	assert.False(t, IsSuspiciousIncrease(40000, 30000), "decrease")
}
