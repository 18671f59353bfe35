// Package credentials resolves remote API tokens and hands out authenticated
// clients. Resolution priority: OS keyring, then environment (including a
// local .env file).
package credentials

import (
	"context"
	"fmt"

	"taskmirror/engine"
	"taskmirror/internal/config"
	"taskmirror/remote"
)

// Source indicates where a token was found
type Source string

const (
	SourceKeyring Source = "keyring"
	SourceEnv     Source = "env"
	SourceNone    Source = "none"
)

// ResolveToken finds the API token for an account using the priority order.
// The returned Source reports where it came from.
func ResolveToken(accountName string) (string, Source, error) {
	if accountName == "" {
		return "", SourceNone, fmt.Errorf("account name is required for credential resolution")
	}

	if keyringAvailable() {
		if token, err := GetKeyringToken(accountName); err == nil && token != "" {
			return token, SourceKeyring, nil
		}
	}

	if token := GetToken(accountName); token != "" {
		return token, SourceEnv, nil
	}

	return "", SourceNone, fmt.Errorf("no API token found for account %q (tried: keyring, environment)", accountName)
}

// Gate implements engine.ClientProvider over the token resolution chain.
// A missing or revoked token is surfaced as remote.ErrReconnectRequired so
// callers present a reconnect action instead of retrying.
type Gate struct {
	cfg *config.Config
}

// NewGate creates a credential gate over the loaded configuration
func NewGate(cfg *config.Config) *Gate {
	return &Gate{cfg: cfg}
}

// GetAuthenticatedClient builds a live client for the account
func (g *Gate) GetAuthenticatedClient(ctx context.Context, accountID string) (engine.RemoteClient, error) {
	account, err := g.cfg.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if !account.Enabled {
		return nil, fmt.Errorf("account %q is disabled", accountID)
	}

	token, _, err := ResolveToken(accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrReconnectRequired, err)
	}

	baseURL := account.RemoteBaseURL
	if override := GetBaseURL(accountID); override != "" {
		baseURL = override
	}

	return remote.NewClient(baseURL, token), nil
}
