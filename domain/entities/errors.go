package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by gateways, services and the reconciliation engine
var (
	ErrAuth                     = errors.New("authentication failed")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrTransientAPI             = errors.New("transient api failure")
	ErrAPIRejected              = errors.New("api request rejected")
	ErrPendingUnavailable       = errors.New("pending transactions unavailable")
	ErrInvalidBalance           = errors.New("invalid balance read")
	ErrPersistenceInconsistency = errors.New("persistence inconsistency")
	ErrConfiguration            = errors.New("configuration error")
	ErrAccountNotFound          = errors.New("account not found")
)

// ErrorKind classifies a sync failure for outcome reporting
type ErrorKind string

const (
	ErrorKindAuth                     ErrorKind = "auth"
	ErrorKindInsufficientFunds        ErrorKind = "insufficient_funds"
	ErrorKindTransientAPI             ErrorKind = "transient_api"
	ErrorKindAPIRejected              ErrorKind = "api_rejected"
	ErrorKindInvalidBalance           ErrorKind = "invalid_balance"
	ErrorKindPersistenceInconsistency ErrorKind = "persistence_inconsistency"
	ErrorKindConfiguration            ErrorKind = "configuration"
	ErrorKindAccountMissing           ErrorKind = "account_missing"
	ErrorKindUnknown                  ErrorKind = "unknown"
)

// SyncError ties a failure to the account it occurred on
type SyncError struct {
	Kind    ErrorKind
	Account string
	Err     error
}

// NewSyncError classifies err and wraps it for the given account
func NewSyncError(account string, err error) *SyncError {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		if syncErr.Account == "" {
			return &SyncError{Kind: syncErr.Kind, Account: account, Err: syncErr.Err}
		}
		return syncErr
	}
	return &SyncError{Kind: ClassifyError(err), Account: account, Err: err}
}

func (e *SyncError) Error() string {
	if e.Account == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Account, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the failure must abort the whole tick
func (e *SyncError) IsFatal() bool {
	switch e.Kind {
	case ErrorKindTransientAPI, ErrorKindAPIRejected, ErrorKindConfiguration, ErrorKindUnknown:
		return true
	default:
		return false
	}
}

// ClassifyError maps an error chain onto an ErrorKind
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return ErrorKindAuth
	case errors.Is(err, ErrInsufficientFunds):
		return ErrorKindInsufficientFunds
	case errors.Is(err, ErrTransientAPI):
		return ErrorKindTransientAPI
	case errors.Is(err, ErrAPIRejected):
		return ErrorKindAPIRejected
	case errors.Is(err, ErrInvalidBalance):
		return ErrorKindInvalidBalance
	case errors.Is(err, ErrPersistenceInconsistency):
		return ErrorKindPersistenceInconsistency
	case errors.Is(err, ErrConfiguration):
		return ErrorKindConfiguration
	case errors.Is(err, ErrAccountNotFound):
		return ErrorKindAccountMissing
	default:
		return ErrorKindUnknown
	}
}
