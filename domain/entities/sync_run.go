package entities

import "time"

// SyncRunStatus is the terminal status of a reconciliation tick
type SyncRunStatus string

const (
	SyncRunStatusCompleted SyncRunStatus = "completed"
	SyncRunStatusPartial   SyncRunStatus = "partial"
	SyncRunStatusFailed    SyncRunStatus = "failed"
	SyncRunStatusSkipped   SyncRunStatus = "skipped"
)

// OutcomeStatus describes what happened to one credit account during a tick
type OutcomeStatus string

const (
	OutcomeNoChange          OutcomeStatus = "no_change"
	OutcomeTransferred       OutcomeStatus = "transferred"
	OutcomeCooldownStarted   OutcomeStatus = "cooldown_started"
	OutcomeSuppressed        OutcomeStatus = "suppressed"
	OutcomeInsufficientFunds OutcomeStatus = "insufficient_funds"
	OutcomeDisconnected      OutcomeStatus = "disconnected"
	OutcomeSuspiciousBalance OutcomeStatus = "suspicious_balance"
	OutcomeError             OutcomeStatus = "error"
)

// AccountOutcome is the per-account result recorded with each sync run
type AccountOutcome struct {
	AccountType    string        `json:"account_type"`
	Status         OutcomeStatus `json:"status"`
	CardBalance    *int64        `json:"card_balance,omitempty"`
	PotBalance     *int64        `json:"pot_balance,omitempty"`
	Baseline       *int64        `json:"baseline,omitempty"`
	Transfers      []TransferLog `json:"transfers,omitempty"`
	CooldownActive bool          `json:"cooldown_active"`
	Inconsistent   bool          `json:"inconsistent,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// TransferLog is the short form of a transfer embedded in an outcome
type TransferLog struct {
	Kind   TransferKind `json:"kind"`
	Amount int64        `json:"amount"`
}

// Succeeded returns true if the account finished the tick without error or skip.
// Only succeeded accounts are eligible for the end-of-tick baseline refresh.
func (o *AccountOutcome) Succeeded() bool {
	switch o.Status {
	case OutcomeNoChange, OutcomeTransferred, OutcomeCooldownStarted, OutcomeSuppressed:
		return true
	default:
		return false
	}
}

// SyncRun is the persisted history row of one reconciliation tick
type SyncRun struct {
	ID         string           `db:"id"`
	StartedAt  time.Time        `db:"started_at"`
	FinishedAt *time.Time       `db:"finished_at"`
	Status     SyncRunStatus    `db:"status"`
	Reason     string           `db:"reason"`
	Outcomes   []AccountOutcome `db:"outcomes"`
}

// Duration returns how long the run took, or zero if it has not finished
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TransferCount returns the number of transfers executed across all accounts
func (r *SyncRun) TransferCount() int {
	count := 0
	for _, outcome := range r.Outcomes {
		count += len(outcome.Transfers)
	}
	return count
}
