package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"potsync/config"
	"potsync/domain/entities"
	"potsync/domain/interfaces"

	"golang.org/x/oauth2"
)

var _ interfaces.AccountGateway = (*Gateway)(nil)

// Config holds provider endpoints, OAuth clients and request limits
type Config struct {
	PrimaryAPIURL string
	PrimaryOAuth  OAuthConfig
	FeedImageURL  string

	CreditAPIURL string
	CreditOAuth  OAuthConfig

	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// NewConfig derives the gateway configuration from the application config
func NewConfig(cfg *config.Config) Config {
	primaryTokenURL := strings.TrimRight(cfg.PrimaryAuthURL, "/")
	if primaryTokenURL == "" {
		primaryTokenURL = strings.TrimRight(cfg.PrimaryAPIURL, "/") + "/oauth2/token"
	}

	return Config{
		PrimaryAPIURL: strings.TrimRight(cfg.PrimaryAPIURL, "/"),
		PrimaryOAuth: OAuthConfig{
			TokenURL:     primaryTokenURL,
			ClientID:     cfg.PrimaryClientID,
			ClientSecret: cfg.PrimaryClientSecret,
		},
		CreditAPIURL: strings.TrimRight(cfg.CreditAPIURL, "/"),
		CreditOAuth: OAuthConfig{
			TokenURL:     strings.TrimRight(cfg.CreditAuthURL, "/") + "/connect/token",
			ClientID:     cfg.CreditClientID,
			ClientSecret: cfg.CreditClientSecret,
		},
		Timeout:       cfg.APITimeout(),
		MaxRetries:    cfg.APIMaxRetries,
		RetryInterval: 500 * time.Millisecond,
	}
}

// Gateway opens authenticated provider sessions for stored accounts
type Gateway struct {
	cfg       Config
	store     CredentialStore
	transport http.RoundTripper
}

// NewGateway creates a new account gateway. Refreshed tokens are saved to store.
func NewGateway(cfg Config, store CredentialStore) *Gateway {
	return &Gateway{
		cfg:       cfg,
		store:     store,
		transport: http.DefaultTransport,
	}
}

// Primary returns a client for the primary account
func (g *Gateway) Primary(ctx context.Context, account *entities.PrimaryAccount) (interfaces.PrimaryAccountClient, error) {
	client, err := g.PrimaryClient(ctx, account)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// PrimaryClient returns the concrete primary client, which also posts feed items
func (g *Gateway) PrimaryClient(ctx context.Context, account *entities.PrimaryAccount) (*PrimaryClient, error) {
	if account == nil || !account.Credentials.HasAccessToken() {
		return nil, fmt.Errorf("%w: primary account has no access token", entities.ErrAuth)
	}

	tokens := newTokenSource(ctx, g.cfg.PrimaryOAuth, g.baseClient(), account.Type, account.Credentials, g.store)
	return newPrimaryClient(g.newAPIClient("primary", g.cfg.PrimaryAPIURL, tokens), g.cfg.FeedImageURL), nil
}

// Credit returns a client for a credit facility
func (g *Gateway) Credit(ctx context.Context, account *entities.CreditAccount) (interfaces.CreditFacilityClient, error) {
	if account == nil || !account.Credentials.HasAccessToken() {
		return nil, fmt.Errorf("%w: credit account has no access token", entities.ErrAuth)
	}

	tokens := newTokenSource(ctx, g.cfg.CreditOAuth, g.baseClient(), account.Type, account.Credentials, g.store)
	return newCreditClient(g.newAPIClient(account.Type, g.cfg.CreditAPIURL, tokens), tokens), nil
}

func (g *Gateway) newAPIClient(provider, baseURL string, tokens oauth2.TokenSource) *apiClient {
	return &apiClient{
		provider: provider,
		baseURL:  baseURL,
		http: &http.Client{
			Timeout: g.cfg.Timeout,
			Transport: &oauth2.Transport{
				Source: tokens,
				Base:   g.transport,
			},
		},
		maxRetries:    g.cfg.MaxRetries,
		retryInterval: g.cfg.RetryInterval,
	}
}

// baseClient is used for token refresh requests
func (g *Gateway) baseClient() *http.Client {
	return &http.Client{
		Timeout:   g.cfg.Timeout,
		Transport: g.transport,
	}
}
