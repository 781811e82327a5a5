package entities

import "strings"

// AccountSelector identifies which primary account (personal or joint) owns a pot
type AccountSelector string

const (
	AccountSelectorPersonal AccountSelector = "personal"
	AccountSelectorJoint    AccountSelector = "joint"
)

// Provider is the normalised (upper-cased) display name of a card issuer
type Provider string

const (
	ProviderAmex        Provider = "AMEX"
	ProviderBarclaycard Provider = "BARCLAYCARD"
)

// NormalizeProvider converts a provider display name to its table key
func NormalizeProvider(displayName string) Provider {
	return Provider(strings.ToUpper(strings.TrimSpace(displayName)))
}

// Card is one card exposed by a credit facility
type Card struct {
	ID       string
	Provider Provider
}

// PendingTransaction is a not-yet-settled card transaction as reported by the provider.
// Amount is the raw decimal amount in major currency units; positive values are charges
// and negative values are refunds or payments. It may be malformed.
type PendingTransaction struct {
	ID     string
	Amount string
}
