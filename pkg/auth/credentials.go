// Package auth loads stored user credentials and turns them into refreshing
// OAuth2 token sources for the assistant channel.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

// ErrBadCredentials indicates the credentials file is missing required fields.
var ErrBadCredentials = errors.New("auth: invalid credentials file")

// defaultTokenURL is used when the stored credentials omit a token endpoint.
const defaultTokenURL = "https://oauth2.googleapis.com/token"

// Credentials is the stored authorized-user credential format written by the
// device registration flow.
type Credentials struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RefreshToken string   `json:"refresh_token"`
	TokenURL     string   `json:"token_uri"`
	Scopes       []string `json:"scopes"`
}

// LoadCredentials reads a stored credentials file and returns a token source
// that refreshes access tokens as they expire.
func LoadCredentials(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read credentials: %w", err)
	}
	return ParseCredentials(ctx, data)
}

// ParseCredentials builds a refreshing token source from raw credential JSON.
func ParseCredentials(ctx context.Context, data []byte) (oauth2.TokenSource, error) {
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCredentials, err)
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Scopes:       creds.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL: creds.TokenURL,
		},
	}
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint.TokenURL = defaultTokenURL
	}

	token := &oauth2.Token{RefreshToken: creds.RefreshToken}
	// ReuseTokenSource caches the access token until expiry so each turn
	// does not hit the token endpoint.
	return oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx, token)), nil
}

// Validate checks that the credential fields needed for refresh are present.
func (c *Credentials) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: missing client_id", ErrBadCredentials)
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("%w: missing client_secret", ErrBadCredentials)
	}
	if c.RefreshToken == "" {
		return fmt.Errorf("%w: missing refresh_token", ErrBadCredentials)
	}
	return nil
}
