// Package googleauth exchanges stored long-lived Google refresh tokens for
// short-lived access tokens used to call the Business Profile API.
//
// The Provider is constructed once at Lambda cold start and injected into
// the handler; only the short-lived token exists in process memory and it
// is never persisted.
package googleauth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CredentialStore loads the stored (encrypted) refresh token for an
// account. Implemented by the post store against the access_credentials
// table.
type CredentialStore interface {
	GetRefreshToken(ctx context.Context, orgID, accountID string) (string, error)
}

// Provider exchanges refresh tokens for access tokens.
type Provider struct {
	conf        *oauth2.Config
	credentials CredentialStore
	cipherKey   []byte
}

// NewProvider creates a Provider from the OAuth client credentials and the
// AES key used to decrypt stored refresh tokens.
func NewProvider(clientID, clientSecret string, credentials CredentialStore, cipherKey []byte) *Provider {
	return &Provider{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
		},
		credentials: credentials,
		cipherKey:   cipherKey,
	}
}

// SetTokenURL overrides the token endpoint, used by tests.
func (p *Provider) SetTokenURL(url string) {
	p.conf.Endpoint = oauth2.Endpoint{TokenURL: url}
}

// AccessToken loads the stored refresh token for (orgID, accountID),
// decrypts it, and exchanges it for a short-lived access token. Exchange
// failures are fatal for the invocation; retry policy belongs to the
// invoker.
func (p *Provider) AccessToken(ctx context.Context, orgID, accountID string) (string, error) {
	encrypted, err := p.credentials.GetRefreshToken(ctx, orgID, accountID)
	if err != nil {
		return "", fmt.Errorf("access token: %w", err)
	}

	refreshToken, err := DecryptToken(encrypted, p.cipherKey)
	if err != nil {
		return "", fmt.Errorf("access token: %w", err)
	}

	startTime := time.Now()
	token, err := p.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("access token: exchange refresh token: %w", err)
	}

	log.Debug().Str("accountId", accountID).Dur("elapsed", time.Since(startTime)).
		Time("expiry", token.Expiry).Msg("Access token obtained")
	return token.AccessToken, nil
}
