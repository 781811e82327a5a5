package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"potsync/domain/entities"
	"potsync/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// PendingRule decides whether a provider's pending transactions count towards the balance owed
type PendingRule string

const (
	// PendingIncludeAll folds every pending amount, charges and refunds alike
	PendingIncludeAll PendingRule = "include_all"
	// PendingExclude uses the settled balance only
	PendingExclude PendingRule = "exclude"
)

// DefaultPendingRules is the provider table used when none is supplied
func DefaultPendingRules() map[entities.Provider]PendingRule {
	return map[entities.Provider]PendingRule{
		entities.ProviderAmex:        PendingIncludeAll,
		entities.ProviderBarclaycard: PendingExclude,
	}
}

// balanceAggregator computes adjusted balances across multi-card facilities
type balanceAggregator struct {
	rules map[entities.Provider]PendingRule
}

// NewBalanceAggregator creates a new balance aggregator. Providers missing from
// rules use the settled balance only.
func NewBalanceAggregator(rules map[entities.Provider]PendingRule) interfaces.BalanceAggregator {
	if rules == nil {
		rules = DefaultPendingRules()
	}
	return &balanceAggregator{rules: rules}
}

// AdjustedBalance sums the settled balance of every card plus the pending
// transactions its provider rule admits
func (a *balanceAggregator) AdjustedBalance(ctx context.Context, facility interfaces.CreditFacilityClient) (int64, error) {
	cards, err := facility.Cards(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list cards: %w", err)
	}

	var total int64
	for _, card := range cards {
		settled, err := facility.CardBalance(ctx, card.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to get balance for card %s: %w", card.ID, err)
		}
		total += settled

		if a.ruleFor(card.Provider) != PendingIncludeAll {
			continue
		}

		pending, err := a.pendingTotal(ctx, facility, card)
		if err != nil {
			return 0, err
		}
		total += pending
	}

	return total, nil
}

func (a *balanceAggregator) ruleFor(provider entities.Provider) PendingRule {
	if rule, ok := a.rules[provider]; ok {
		return rule
	}
	return PendingExclude
}

// pendingTotal sums pending amounts in major units and converts once, so the
// result does not depend on transaction order
func (a *balanceAggregator) pendingTotal(ctx context.Context, facility interfaces.CreditFacilityClient, card entities.Card) (int64, error) {
	transactions, err := facility.PendingTransactions(ctx, card.ID)
	if errors.Is(err, entities.ErrPendingUnavailable) {
		log.WithFields(log.Fields{
			"cardID":   card.ID,
			"provider": card.Provider,
		}).Warn("Pending transactions unavailable, using settled balance only")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get pending transactions for card %s: %w", card.ID, err)
	}

	sum := decimal.Zero
	for _, tx := range transactions {
		amount, err := decimal.NewFromString(strings.TrimSpace(tx.Amount))
		if err != nil {
			log.WithFields(log.Fields{
				"cardID":        card.ID,
				"transactionID": tx.ID,
				"amount":        tx.Amount,
			}).Warn("Skipping pending transaction with malformed amount")
			continue
		}
		sum = sum.Add(amount)
	}

	return ToMinorUnits(sum), nil
}

// ToMinorUnits converts a major-unit amount to minor units, rounding up so the
// amount owed is never understated
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Ceil().IntPart()
}
