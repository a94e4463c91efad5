// Package identity implements the signed-in user session backed by Azure AD
package identity

import (
	"context"
)

// DefaultScopes are requested when the user signs in interactively
var DefaultScopes = []string{"user.read", "openid", "profile"}

// Principal is the signed-in user's identity record
type Principal struct {
	AccountID     string `json:"local_account_id"` // Stable directory object id
	HomeAccountID string `json:"home_account_id"`  // Provider cache key
	Name          string `json:"name,omitempty"`   // Display name
	Username      string `json:"username,omitempty"`
}

// Provider defines the identity provider operations the session relies on
type Provider interface {
	// Accounts returns the accounts in the provider's session cache
	Accounts(ctx context.Context) ([]Principal, error)

	// AcquireTokenSilent requests a token for account without user interaction
	AcquireTokenSilent(ctx context.Context, scopes []string, account Principal) (string, error)

	// Login signs the user in interactively and returns the new account
	Login(ctx context.Context, scopes []string) (Principal, error)
}

// HealthChecker reports the health of a backing store
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}
