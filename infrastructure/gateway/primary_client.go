package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"potsync/domain/entities"
	"potsync/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// Primary provider account types
const (
	accountTypePersonal = "uk_retail"
	accountTypeJoint    = "uk_retail_joint"
)

var _ interfaces.PrimaryAccountClient = (*PrimaryClient)(nil)

type whoAmIResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id"`
}

type accountsResponse struct {
	Accounts []struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Closed bool   `json:"closed"`
	} `json:"accounts"`
}

type balanceResponse struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

type pot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
	Deleted bool   `json:"deleted"`
}

type potsResponse struct {
	Pots []pot `json:"pots"`
}

// PrimaryClient is a session against the primary account provider.
// Account ids and pot owners are resolved once per session.
type PrimaryClient struct {
	api          *apiClient
	feedImageURL string

	mu        sync.Mutex
	accounts  map[entities.AccountSelector]string
	potOwners map[string]entities.AccountSelector
}

func newPrimaryClient(api *apiClient, feedImageURL string) *PrimaryClient {
	return &PrimaryClient{
		api:          api,
		feedImageURL: feedImageURL,
		potOwners:    make(map[string]entities.AccountSelector),
	}
}

// Ping verifies that the stored credentials are still valid
func (c *PrimaryClient) Ping(ctx context.Context) error {
	var resp whoAmIResponse
	if err := c.api.get(ctx, "/ping/whoami", nil, &resp); err != nil {
		return err
	}
	if !resp.Authenticated {
		return fmt.Errorf("%w: primary account session is not authenticated", entities.ErrAuth)
	}
	return nil
}

// PotSelector returns which primary account owns a pot
func (c *PrimaryClient) PotSelector(ctx context.Context, potID string) (entities.AccountSelector, error) {
	c.mu.Lock()
	selector, ok := c.potOwners[potID]
	c.mu.Unlock()
	if ok {
		return selector, nil
	}

	accounts, err := c.resolveAccounts(ctx)
	if err != nil {
		return "", err
	}

	for _, candidate := range []entities.AccountSelector{entities.AccountSelectorPersonal, entities.AccountSelectorJoint} {
		accountID, ok := accounts[candidate]
		if !ok {
			continue
		}
		pots, err := c.listPots(ctx, accountID)
		if err != nil {
			return "", err
		}
		for _, p := range pots {
			if p.ID == potID {
				c.mu.Lock()
				c.potOwners[potID] = candidate
				c.mu.Unlock()
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("%w: pot %s not found in any primary account", entities.ErrConfiguration, potID)
}

// GetBalance returns the available balance of the selected primary account
func (c *PrimaryClient) GetBalance(ctx context.Context, selector entities.AccountSelector) (int64, error) {
	accountID, err := c.accountID(ctx, selector)
	if err != nil {
		return 0, err
	}

	var resp balanceResponse
	if err := c.api.get(ctx, "/balance", url.Values{"account_id": {accountID}}, &resp); err != nil {
		return 0, fmt.Errorf("failed to get %s balance: %w", selector, err)
	}
	return resp.Balance, nil
}

// GetPotBalance returns the current balance of a pot
func (c *PrimaryClient) GetPotBalance(ctx context.Context, potID string) (int64, error) {
	selector, err := c.PotSelector(ctx, potID)
	if err != nil {
		return 0, err
	}
	accountID, err := c.accountID(ctx, selector)
	if err != nil {
		return 0, err
	}

	pots, err := c.listPots(ctx, accountID)
	if err != nil {
		return 0, err
	}
	for _, p := range pots {
		if p.ID == potID {
			return p.Balance, nil
		}
	}
	return 0, fmt.Errorf("%w: pot %s no longer exists", entities.ErrConfiguration, potID)
}

// Deposit moves money from the owning primary account into a pot
func (c *PrimaryClient) Deposit(ctx context.Context, potID string, amount int64, dedupeToken string) error {
	accountID, err := c.potAccountID(ctx, potID)
	if err != nil {
		return err
	}

	form := url.Values{
		"source_account_id": {accountID},
		"amount":            {strconv.FormatInt(amount, 10)},
		"dedupe_id":         {dedupeToken},
	}
	if err := c.api.send(ctx, http.MethodPut, "/pots/"+url.PathEscape(potID)+"/deposit", form, nil); err != nil {
		return fmt.Errorf("failed to deposit %d into pot %s: %w", amount, potID, err)
	}
	return nil
}

// Withdraw moves money from a pot back to the owning primary account
func (c *PrimaryClient) Withdraw(ctx context.Context, potID string, amount int64, dedupeToken string) error {
	accountID, err := c.potAccountID(ctx, potID)
	if err != nil {
		return err
	}

	form := url.Values{
		"destination_account_id": {accountID},
		"amount":                 {strconv.FormatInt(amount, 10)},
		"dedupe_id":              {dedupeToken},
	}
	if err := c.api.send(ctx, http.MethodPut, "/pots/"+url.PathEscape(potID)+"/withdraw", form, nil); err != nil {
		return fmt.Errorf("failed to withdraw %d from pot %s: %w", amount, potID, err)
	}
	return nil
}

// PostFeedItem shows a basic feed item in the personal account
func (c *PrimaryClient) PostFeedItem(ctx context.Context, title, body string) error {
	accountID, err := c.accountID(ctx, entities.AccountSelectorPersonal)
	if err != nil {
		return err
	}

	form := url.Values{
		"account_id":    {accountID},
		"type":          {"basic"},
		"params[title]": {title},
		"params[body]":  {body},
	}
	if c.feedImageURL != "" {
		form.Set("params[image_url]", c.feedImageURL)
	}
	return c.api.send(ctx, http.MethodPost, "/feed", form, nil)
}

func (c *PrimaryClient) potAccountID(ctx context.Context, potID string) (string, error) {
	selector, err := c.PotSelector(ctx, potID)
	if err != nil {
		return "", err
	}
	return c.accountID(ctx, selector)
}

func (c *PrimaryClient) accountID(ctx context.Context, selector entities.AccountSelector) (string, error) {
	accounts, err := c.resolveAccounts(ctx)
	if err != nil {
		return "", err
	}
	accountID, ok := accounts[selector]
	if !ok {
		return "", fmt.Errorf("%w: no open %s primary account", entities.ErrConfiguration, selector)
	}
	return accountID, nil
}

func (c *PrimaryClient) resolveAccounts(ctx context.Context) (map[entities.AccountSelector]string, error) {
	c.mu.Lock()
	cached := c.accounts
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var resp accountsResponse
	if err := c.api.get(ctx, "/accounts", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list primary accounts: %w", err)
	}

	accounts := make(map[entities.AccountSelector]string)
	for _, account := range resp.Accounts {
		if account.Closed {
			continue
		}
		switch account.Type {
		case accountTypePersonal:
			accounts[entities.AccountSelectorPersonal] = account.ID
		case accountTypeJoint:
			accounts[entities.AccountSelectorJoint] = account.ID
		}
	}

	log.WithField("accounts", len(accounts)).Debug("Resolved primary accounts")

	c.mu.Lock()
	c.accounts = accounts
	c.mu.Unlock()
	return accounts, nil
}

func (c *PrimaryClient) listPots(ctx context.Context, accountID string) ([]pot, error) {
	var resp potsResponse
	if err := c.api.get(ctx, "/pots", url.Values{"current_account_id": {accountID}}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list pots: %w", err)
	}

	pots := make([]pot, 0, len(resp.Pots))
	for _, p := range resp.Pots {
		if !p.Deleted {
			pots = append(pots, p)
		}
	}
	return pots, nil
}
