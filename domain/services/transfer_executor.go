package services

import (
	"context"
	"errors"
	"fmt"

	"potsync/domain/entities"
	"potsync/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const insufficientFundsTitle = "Insufficient funds"

// transferExecutor implements interfaces.TransferExecutor against one primary account session
type transferExecutor struct {
	primary  interfaces.PrimaryAccountClient
	notifier interfaces.Notifier
}

// NewTransferExecutor creates a transfer executor
func NewTransferExecutor(primary interfaces.PrimaryAccountClient, notifier interfaces.Notifier) interfaces.TransferExecutor {
	return &transferExecutor{
		primary:  primary,
		notifier: notifier,
	}
}

// Execute performs the funds guard for the transfer direction and then moves
// the money. Insufficient funds never raise; they are returned as a failure
// after notifying the user.
func (e *transferExecutor) Execute(ctx context.Context, req interfaces.TransferRequest) interfaces.TransferResult {
	if req.Amount <= 0 {
		return failed(req.AccountType, fmt.Errorf("%w: transfer amount must be positive, got %d", entities.ErrAPIRejected, req.Amount))
	}

	direction := req.Kind.Direction()
	var err error

	switch direction {
	case entities.TransferDirectionDeposit:
		available, guardErr := e.availableFunds(ctx, req.PotID)
		if guardErr != nil {
			return failed(req.AccountType, guardErr)
		}
		if available < req.Amount {
			return e.insufficient(ctx, req, fmt.Sprintf(
				"Could not move %s into the %s pot: only %s available.",
				formatMinor(req.Amount), req.AccountType, formatMinor(available),
			))
		}
		err = e.primary.Deposit(ctx, req.PotID, req.Amount, req.DedupeToken)

	case entities.TransferDirectionWithdraw:
		if req.PotBalanceBefore < 0 {
			return failed(req.AccountType, fmt.Errorf("%w: pot %s reports negative balance %d", entities.ErrInvalidBalance, req.PotID, req.PotBalanceBefore))
		}
		if req.PotBalanceBefore < req.Amount {
			return e.insufficient(ctx, req, fmt.Sprintf(
				"Could not withdraw %s from the %s pot: it only holds %s.",
				formatMinor(req.Amount), req.AccountType, formatMinor(req.PotBalanceBefore),
			))
		}
		err = e.primary.Withdraw(ctx, req.PotID, req.Amount, req.DedupeToken)
	}

	if errors.Is(err, entities.ErrInsufficientFunds) {
		return e.insufficient(ctx, req, fmt.Sprintf(
			"The %s pot transfer of %s was declined for insufficient funds.",
			req.AccountType, formatMinor(req.Amount),
		))
	}
	if err != nil {
		return failed(req.AccountType, fmt.Errorf("failed to %s %d for pot %s: %w", direction, req.Amount, req.PotID, err))
	}

	transfer := &entities.PotTransfer{
		RunID:            req.RunID,
		AccountType:      req.AccountType,
		PotID:            req.PotID,
		Direction:        direction,
		Kind:             req.Kind,
		Amount:           req.Amount,
		PotBalanceBefore: req.PotBalanceBefore,
		DedupeToken:      req.DedupeToken,
	}
	transfer.PotBalanceAfter = req.PotBalanceBefore + transfer.SignedAmount()

	log.WithFields(log.Fields{
		"account":   req.AccountType,
		"potID":     req.PotID,
		"direction": direction,
		"kind":      req.Kind,
		"amount":    req.Amount,
		"potBefore": transfer.PotBalanceBefore,
		"potAfter":  transfer.PotBalanceAfter,
	}).Info("Pot transfer executed")

	return interfaces.TransferResult{Transfer: transfer}
}

// availableFunds returns the balance of whichever primary account owns the pot
func (e *transferExecutor) availableFunds(ctx context.Context, potID string) (int64, error) {
	selector, err := e.primary.PotSelector(ctx, potID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve owning account for pot %s: %w", potID, err)
	}
	balance, err := e.primary.GetBalance(ctx, selector)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s account balance: %w", selector, err)
	}
	return balance, nil
}

func (e *transferExecutor) insufficient(ctx context.Context, req interfaces.TransferRequest, message string) interfaces.TransferResult {
	log.WithFields(log.Fields{
		"account": req.AccountType,
		"potID":   req.PotID,
		"kind":    req.Kind,
		"amount":  req.Amount,
	}).Warn("Skipping pot transfer due to insufficient funds")

	if e.notifier != nil {
		e.notifier.Notify(ctx, req.AccountType, insufficientFundsTitle, message)
	}

	return interfaces.TransferResult{Failure: &entities.SyncError{
		Kind:    entities.ErrorKindInsufficientFunds,
		Account: req.AccountType,
		Err:     entities.ErrInsufficientFunds,
	}}
}

func failed(accountType string, err error) interfaces.TransferResult {
	return interfaces.TransferResult{Failure: entities.NewSyncError(accountType, err)}
}

func formatMinor(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
