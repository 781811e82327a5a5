package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"potsync/domain/entities"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// tokenEarlyExpiry refreshes tokens this long before they expire
const tokenEarlyExpiry = 2 * time.Minute

// CredentialStore persists refreshed tokens. Implemented by the account repository.
type CredentialStore interface {
	SaveCredentials(ctx context.Context, accountType string, credentials entities.Credentials) error
}

// OAuthConfig identifies the OAuth client used to refresh tokens for a provider
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// persistingTokenSource stores every newly issued token against the account
type persistingTokenSource struct {
	ctx         context.Context
	accountType string
	base        oauth2.TokenSource
	store       CredentialStore

	mu   sync.Mutex
	last string
}

func newTokenSource(ctx context.Context, oauth OAuthConfig, httpClient *http.Client, accountType string, creds entities.Credentials, store CredentialStore) oauth2.TokenSource {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}
	if creds.Expiry != nil {
		token.Expiry = *creds.Expiry
	}

	if oauth.ClientID == "" || oauth.TokenURL == "" || creds.RefreshToken == "" {
		return oauth2.StaticTokenSource(token)
	}

	conf := &oauth2.Config{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  oauth.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	return &persistingTokenSource{
		ctx:         ctx,
		accountType: accountType,
		base:        oauth2.ReuseTokenSourceWithExpiry(token, conf.TokenSource(refreshCtx, token), tokenEarlyExpiry),
		store:       store,
		last:        creds.AccessToken,
	}
}

// Token returns a valid token, refreshing and persisting it when needed
func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, classifyTokenError(s.accountType, err)
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed && s.store != nil {
		creds := entities.Credentials{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
		}
		if !token.Expiry.IsZero() {
			expiry := token.Expiry.UTC()
			creds.Expiry = &expiry
		}

		if err := s.store.SaveCredentials(s.ctx, s.accountType, creds); err != nil {
			log.WithFields(log.Fields{
				"account": s.accountType,
				"error":   err,
			}).Warn("Failed to persist refreshed token")
		} else {
			log.WithField("account", s.accountType).Info("Refreshed access token")
		}
	}

	return token, nil
}

// classifyTokenError maps a refresh failure onto the sync error taxonomy.
// A rejected refresh token is permanent; server and network failures are transient.
func classifyTokenError(accountType string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			return fmt.Errorf("%w: token refresh for %s: %v", entities.ErrTransientAPI, accountType, err)
		}
		return fmt.Errorf("%w: token refresh for %s rejected: %v", entities.ErrAuth, accountType, err)
	}
	return fmt.Errorf("%w: token refresh for %s: %v", entities.ErrTransientAPI, accountType, err)
}
