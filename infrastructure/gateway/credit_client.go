package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"potsync/domain/entities"
	"potsync/domain/interfaces"
	"potsync/domain/services"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

var _ interfaces.CreditFacilityClient = (*CreditClient)(nil)

type cardsResponse struct {
	Results []struct {
		AccountID   string `json:"account_id"`
		DisplayName string `json:"display_name"`
		Provider    struct {
			DisplayName string `json:"display_name"`
		} `json:"provider"`
	} `json:"results"`
}

type cardBalanceResponse struct {
	Results []struct {
		Current  json.Number `json:"current"`
		Currency string      `json:"currency"`
	} `json:"results"`
}

type pendingResponse struct {
	Results []struct {
		TransactionID string          `json:"transaction_id"`
		Amount        json.RawMessage `json:"amount"`
	} `json:"results"`
}

// CreditClient is a session against one credit facility
type CreditClient struct {
	api    *apiClient
	tokens oauth2.TokenSource
}

func newCreditClient(api *apiClient, tokens oauth2.TokenSource) *CreditClient {
	return &CreditClient{api: api, tokens: tokens}
}

// RefreshToken refreshes the access token if it is expired or close to expiry
func (c *CreditClient) RefreshToken(ctx context.Context) error {
	if _, err := c.tokens.Token(); err != nil {
		return err
	}
	return nil
}

// Ping verifies that the credentials are accepted
func (c *CreditClient) Ping(ctx context.Context) error {
	return c.api.get(ctx, "/data/v1/me", nil, nil)
}

// Cards lists the cards exposed by the facility
func (c *CreditClient) Cards(ctx context.Context) ([]entities.Card, error) {
	var resp cardsResponse
	if err := c.api.get(ctx, "/data/v1/cards", nil, &resp); err != nil {
		return nil, err
	}

	cards := make([]entities.Card, 0, len(resp.Results))
	for _, result := range resp.Results {
		cards = append(cards, entities.Card{
			ID:       result.AccountID,
			Provider: entities.NormalizeProvider(result.Provider.DisplayName),
		})
	}
	return cards, nil
}

// CardBalance returns the settled balance owed on a card in minor units
func (c *CreditClient) CardBalance(ctx context.Context, cardID string) (int64, error) {
	var resp cardBalanceResponse
	if err := c.api.get(ctx, "/data/v1/cards/"+url.PathEscape(cardID)+"/balance", nil, &resp); err != nil {
		return 0, err
	}
	if len(resp.Results) == 0 {
		return 0, fmt.Errorf("%w: no balance reported for card %s", entities.ErrInvalidBalance, cardID)
	}

	current, err := decimal.NewFromString(resp.Results[0].Current.String())
	if err != nil {
		return 0, fmt.Errorf("%w: malformed balance %q for card %s", entities.ErrInvalidBalance, resp.Results[0].Current, cardID)
	}
	return services.ToMinorUnits(current), nil
}

// PendingTransactions returns the pending transactions of a card.
// Amounts are passed through unparsed.
func (c *CreditClient) PendingTransactions(ctx context.Context, cardID string) ([]entities.PendingTransaction, error) {
	var resp pendingResponse
	err := c.api.get(ctx, "/data/v1/cards/"+url.PathEscape(cardID)+"/transactions/pending", nil, &resp)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %v", entities.ErrPendingUnavailable, err)
	}
	if err != nil {
		return nil, err
	}

	transactions := make([]entities.PendingTransaction, 0, len(resp.Results))
	for _, result := range resp.Results {
		transactions = append(transactions, entities.PendingTransaction{
			ID:     result.TransactionID,
			Amount: strings.Trim(string(result.Amount), `"`),
		})
	}
	return transactions, nil
}
